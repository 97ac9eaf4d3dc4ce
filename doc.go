// SPDX-FileCopyrightText: 2022-2023 The go-mail Authors
// SPDX-FileCopyrightText: 2025 The rpki-client Authors
//
// SPDX-License-Identifier: MIT

// Package rpki implements the signed-object validation pipeline of an RPKI
// relying-party validator: it decodes and cryptographically verifies the CMS
// wrapped manifests and route origin authorizations, and the X.509 CA and
// end-entity certificates, that make up a repository publication point, and
// it provides a length-prefixed codec for shipping the parsed results across
// a process boundary.
//
// The package is a pure function of (bytes, parent certificate, expected
// content OID) to a validated typed result: it does no fetching, scheduling,
// or caching of its own. Callers construct a Validator to carry verbosity and
// logging, then call ParseTal, ParseCert, ParseMft, or ParseRoa.
package rpki

// Version is the module version reported by the CLI's "version" subcommand.
const Version = "0.1.0"
