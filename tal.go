// SPDX-FileCopyrightText: 2025 The rpki-client Authors
//
// SPDX-License-Identifier: MIT

package rpki

import (
	"bufio"
	"bytes"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
)

// errTalProfile is the sentinel wrapped by every TAL-profile rejection
var errTalProfile = errors.New("trust anchor locator violates RPKI profile")

// errAnchorMismatch is returned by VerifyAnchor when the fetched
// trust-anchor certificate's public key does not match the TAL
var errAnchorMismatch = errors.New("trust anchor certificate public key does not match TAL")

// Tal is the parsed result of a Trust Anchor Locator file: the ordered list
// of URIs the fetcher may try, in preference order, and the trust anchor's
// SubjectPublicKeyInfo, which VerifyAnchor uses to check the self-signed
// trust-anchor certificate once the fetcher has retrieved it.
type Tal struct {
	// File is the TAL's own source filename
	File string
	// URIs is the ordered, non-empty list of candidate fetch URIs
	URIs []string
	// SubjectPublicKeyInfo is the base64-decoded DER SubjectPublicKeyInfo
	SubjectPublicKeyInfo []byte
}

// ParseTal parses path as a TAL file (RFC 8630): one or more URI lines, a
// blank line, then a base64-encoded (optionally line-wrapped)
// SubjectPublicKeyInfo. Every URI must start with "rsync://" or "https://";
// the SubjectPublicKeyInfo must decode as a syntactically valid ASN.1
// SubjectPublicKeyInfo.
func ParseTal(v *Validator, path string) (*Tal, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, newFailure(FailureIO, path, err)
	}

	t := &Tal{File: path}
	scanner := bufio.NewScanner(bytes.NewReader(raw))

	var uris []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			break
		}
		if !strings.HasPrefix(line, "rsync://") && !strings.HasPrefix(line, "https://") {
			return nil, newFailure(FailureProfile, path,
				fmt.Errorf("%w: URI %q does not start with rsync:// or https://", errTalProfile, line))
		}
		uris = append(uris, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, newFailure(FailureIO, path, err)
	}
	if len(uris) == 0 {
		return nil, newFailure(FailureProfile, path, fmt.Errorf("%w: no URIs", errTalProfile))
	}
	t.URIs = uris

	var b64 strings.Builder
	for scanner.Scan() {
		b64.WriteString(strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, newFailure(FailureIO, path, err)
	}
	if b64.Len() == 0 {
		return nil, newFailure(FailureProfile, path, fmt.Errorf("%w: missing SubjectPublicKeyInfo", errTalProfile))
	}

	spki, err := base64.StdEncoding.DecodeString(b64.String())
	if err != nil {
		return nil, newFailure(FailureFormat, path, fmt.Errorf("SubjectPublicKeyInfo: %w", err))
	}
	if _, err := x509.ParsePKIXPublicKey(spki); err != nil {
		return nil, newFailure(FailureFormat, path, fmt.Errorf("SubjectPublicKeyInfo: %w", err))
	}
	t.SubjectPublicKeyInfo = spki

	if v != nil {
		v.debugf("tal: %s: %d URIs", path, len(t.URIs))
	}
	return t, nil
}

// VerifyAnchor checks that cert's SubjectPublicKeyInfo byte-for-byte equals
// the TAL's decoded key, per RFC 8630 / spec.md §4.4: "When the trust-anchor
// certificate is later fetched, its Subject Public Key Info DER must equal
// the TAL's decoded key bytes; otherwise the anchor is rejected." This is
// the only check VerifyAnchor performs: it does not itself fetch cert (the
// fetcher is out of scope, matching this package's "no fetching, scheduling,
// or caching of its own" boundary), and it does not re-validate cert's
// self-signature or any other certificate field.
func (t *Tal) VerifyAnchor(cert *x509.Certificate) error {
	if !bytes.Equal(cert.RawSubjectPublicKeyInfo, t.SubjectPublicKeyInfo) {
		return newFailure(FailureProfile, t.File, errAnchorMismatch)
	}
	return nil
}
