// SPDX-FileCopyrightText: 2025 The rpki-client Authors
//
// SPDX-License-Identifier: MIT

package rpki

import (
	encasn1 "encoding/asn1"
	"fmt"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	casn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// errShape is the sentinel wrapped by the shape-checking helpers below when
// a generic ASN.1 sequence does not have the shape a caller expected. This
// is distinct from errMalformedBitString: a shape error means the DER
// parsed fine but did not match the RPKI profile this package enforces.
var errShape = fmt.Errorf("unexpected ASN.1 shape")

// readSequence reads the SEQUENCE header off in and returns its contents as
// a fresh cryptobyte.String bounded to exactly that sequence's bytes, so
// that every subsequent read is bounds-checked against the sequence itself
// rather than the surrounding buffer (spec.md §9's "every sub-sequence
// decode receives an exact byte slice, not an offset into a larger buffer").
func readSequence(in *cryptobyte.String) (cryptobyte.String, error) {
	var seq cryptobyte.String
	if !in.ReadASN1(&seq, casn1.SEQUENCE) {
		return nil, fmt.Errorf("%w: expected SEQUENCE", errShape)
	}
	return seq, nil
}

// readOptionalTagged reads an explicitly or implicitly tagged context-class
// element if present, reporting whether it was found
func readOptionalTagged(in *cryptobyte.String, tag casn1.Tag) (cryptobyte.String, bool, error) {
	var out cryptobyte.String
	present := false
	if !in.ReadOptionalASN1(&out, &present, tag) {
		return nil, false, fmt.Errorf("%w: malformed optional tagged element", errShape)
	}
	return out, present, nil
}

// peekTag reports the tag of the next element in in without consuming it.
// in is passed by value: cryptobyte.String is a slice, so re-slicing the
// local copy during the probe read leaves the caller's String untouched.
func peekTag(in cryptobyte.String) (casn1.Tag, bool) {
	var elem cryptobyte.String
	var tag casn1.Tag
	if !in.ReadAnyASN1Element(&elem, &tag) {
		return 0, false
	}
	return tag, true
}

// readBigInt reads a generic ASN.1 INTEGER as a non-negative *big.Int, for
// fields (like a manifest number) that may legitimately exceed 64 bits
func readBigInt(in *cryptobyte.String) (*big.Int, error) {
	n := new(big.Int)
	if !in.ReadASN1Integer(n) {
		return nil, fmt.Errorf("%w: expected INTEGER", errShape)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative INTEGER not permitted here", errShape)
	}
	return n, nil
}

// readUint32 reads an ASN.1 INTEGER constrained to fit in a uint32, as used
// for AS numbers and manifest/ROA version fields
func readUint32(in *cryptobyte.String) (uint32, error) {
	n, err := readBigInt(in)
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() || n.Uint64() > 0xffffffff {
		return 0, fmt.Errorf("%w: INTEGER out of uint32 range", errShape)
	}
	return uint32(n.Uint64()), nil
}

// readIA5String reads an IA5String, rejects an empty value, and rejects any
// byte outside the 7-bit ASCII range the IA5String tag promises — the
// cryptobyte/casn1 tag check only confirms the DER tag octet, not that the
// content actually stays within IA5 (ITU T.50), matching the Mft filename
// invariant in spec.md §3: "Filenames are IA5 strings, non-empty."
func readIA5String(in *cryptobyte.String) (string, error) {
	var raw cryptobyte.String
	if !in.ReadASN1(&raw, casn1.IA5String) {
		return "", fmt.Errorf("%w: expected IA5String", errShape)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: empty IA5String", errShape)
	}
	for _, b := range raw {
		if b > 0x7f {
			return "", fmt.Errorf("%w: IA5String contains non-ASCII byte 0x%02x", errShape, b)
		}
	}
	return string(raw), nil
}

// readObjectIdentifier reads an OBJECT IDENTIFIER as a dotted-decimal string
func readObjectIdentifier(in *cryptobyte.String) (string, error) {
	var oid encasn1.ObjectIdentifier
	if !in.ReadASN1ObjectIdentifier(&oid) {
		return "", fmt.Errorf("%w: expected OBJECT IDENTIFIER", errShape)
	}
	return oid.String(), nil
}

// readBitStringField reads a BIT STRING and returns its content bytes
// together with the count of unused trailing bits, ready to hand to
// newIpAddr
func readBitStringField(in *cryptobyte.String) (bytes []byte, unused uint8, err error) {
	var bs cryptobyte.BitString
	if !in.ReadASN1BitString(&bs) {
		return nil, 0, fmt.Errorf("%w: expected BIT STRING", errShape)
	}
	totalBits := len(bs.Bytes) * 8
	if bs.BitLength < 0 || bs.BitLength > totalBits {
		return nil, 0, fmt.Errorf("%w: BIT STRING length inconsistent with content", errShape)
	}
	return bs.Bytes, uint8(totalBits - bs.BitLength), nil
}
