// SPDX-FileCopyrightText: 2025 The rpki-client Authors
//
// SPDX-License-Identifier: MIT

package rpki

import (
	"crypto/x509"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/cryptobyte"
)

// oidManifest is the CMS eContentType OID for a manifest (spec.md §8)
const oidManifest = "1.2.840.113549.1.9.16.1.26"

// FileAndHash is one entry of a manifest's fileList: a referenced filename
// together with the hash the fetcher layer uses to validate that file once
// retrieved.
type FileAndHash struct {
	// File is the referenced filename, verbatim, non-empty IA5String
	File string
	// Hash is the BIT STRING hash value recorded for File
	Hash []byte
}

// Mft is the parsed result of a manifest object (RFC 6486): the source
// filename it was parsed from and the ordered list of files it references.
type Mft struct {
	// File is the manifest's own source filename
	File string
	// ManifestNumber is the manifest's sequence number
	ManifestNumber *big.Int
	// Files is the ordered fileList, verbatim
	Files []FileAndHash
}

// ParseMft parses path as a manifest: it invokes ParseValidateCMS with the
// manifest eContentType OID and then decodes the eContent as a sequence of
// five or six elements per spec.md §4.5. The parentCA, if non-nil, anchors
// the CMS one-hop signature check.
func ParseMft(v *Validator, parentCA *x509.Certificate, path string, expectedSHA256 *[32]byte) (*Mft, error) {
	eContent, err := ParseValidateCMS(v, parentCA, path, oidManifest, expectedSHA256)
	if err != nil {
		return nil, err
	}

	m := &Mft{File: path}
	in := cryptobyte.String(eContent)
	seq, err := readSequence(&in)
	if err != nil {
		return nil, newFailure(FailureFormat, path, err)
	}

	elems, err := splitElements(&seq)
	if err != nil {
		return nil, newFailure(FailureFormat, path, err)
	}
	if len(elems) != 5 && len(elems) != 6 {
		return nil, newFailure(FailureProfile, path,
			fmt.Errorf("manifest eContent has %d elements, want 5 or 6", len(elems)))
	}

	i := 0
	if len(elems) == 6 {
		// optional version, defaults to 0; no further use of the value
		i++
	}

	n, err := readBigInt(&elems[i])
	if err != nil {
		return nil, newFailure(FailureFormat, path, fmt.Errorf("manifestNumber: %w", err))
	}
	m.ManifestNumber = n
	i++

	// thisUpdate, nextUpdate: GeneralizedTime, not otherwise validated here
	// (RFC 6486 §4.4 ordering checks are not performed by this package)
	i += 2

	// fileHashAlg: OID, not otherwise validated here
	i++

	files, err := parseFileList(elems[i])
	if err != nil {
		return nil, newFailure(FailureProfile, path, err)
	}
	m.Files = files

	if v != nil {
		v.debugf("mft: %s: %d files", path, len(m.Files))
	}
	return m, nil
}

// splitElements reads every top-level element of seq into a slice of
// cryptobyte.String, each one still holding its own tag and length
func splitElements(seq *cryptobyte.String) ([]cryptobyte.String, error) {
	var out []cryptobyte.String
	for !seq.Empty() {
		var elem cryptobyte.String
		if !seq.ReadAnyASN1Element(&elem, nil) {
			return nil, fmt.Errorf("%w: malformed element in sequence", errShape)
		}
		out = append(out, elem)
	}
	return out, nil
}

// parseFileList decodes the fileList SEQUENCE OF FileAndHash, where each
// FileAndHash is a two-element sequence (filename IA5String, hash BIT
// STRING). Path separators in filenames are rejected: manifest filenames
// name an entry in the same directory, never a path (RFC 6486 §4.2.2).
func parseFileList(raw cryptobyte.String) ([]FileAndHash, error) {
	seq, err := readSequence(&raw)
	if err != nil {
		return nil, fmt.Errorf("fileList: %w", err)
	}
	var out []FileAndHash
	for !seq.Empty() {
		entry, err := readSequence(&seq)
		if err != nil {
			return nil, fmt.Errorf("FileAndHash: %w", err)
		}
		name, err := readIA5String(&entry)
		if err != nil {
			return nil, fmt.Errorf("FileAndHash.file: %w", err)
		}
		if strings.ContainsAny(name, "/\\") {
			return nil, fmt.Errorf("%w: filename %q contains a path separator", errShape, name)
		}
		hash, unused, err := readBitStringField(&entry)
		if err != nil {
			return nil, fmt.Errorf("FileAndHash.hash: %w", err)
		}
		if unused != 0 {
			return nil, fmt.Errorf("%w: FileAndHash.hash has nonzero unused bits", errShape)
		}
		if !entry.Empty() {
			return nil, fmt.Errorf("%w: FileAndHash has more than two elements", errShape)
		}
		out = append(out, FileAndHash{File: name, Hash: hash})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty fileList", errShape)
	}
	return out, nil
}
