// SPDX-FileCopyrightText: 2025 The rpki-client Authors
//
// SPDX-License-Identifier: MIT

package rpki

import (
	"crypto/x509"
	"errors"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	casn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// oidROA is the CMS eContentType OID for a Route Origin Authorization
// (spec.md §8)
const oidROA = "1.2.840.113549.1.9.16.1.24"

// errROACoverage is the sentinel wrapped when a ROA claims a prefix its
// signing EE certificate was not delegated (RFC 6482's fundamental safety
// property: spec.md §4.6)
var errROACoverage = errors.New("ROA prefix not covered by EE certificate resources")

// RoaIPAddress is one (prefix, maxLength) entry of a ROA's ipAddrBlocks
type RoaIPAddress struct {
	// Prefix is the announced address prefix
	Prefix IpAddr
	// MaxLength is the maximum prefix length the origin AS may announce
	// under Prefix; when the wire encoding omits it, it equals the prefix
	// length (RFC 6482 §3.1)
	MaxLength int
}

// Roa is the parsed result of a Route Origin Authorization: the origin AS
// number and the prefixes it is authorized to originate
type Roa struct {
	// File is the ROA's own source filename
	File string
	// ASID is the authorized origin AS number
	ASID uint32
	// Entries is the ordered list of authorized (prefix, maxLength) pairs
	Entries []RoaIPAddress
}

// ParseRoa parses path as a ROA: it invokes ParseValidateCMS with the ROA
// eContentType OID, decodes the eContent as (version?, asID, ipAddrBlocks)
// per spec.md §4.6, and then checks that every resulting prefix is covered
// by an entry of eeResources. eeResources is the RFC 3779 IP delegation of
// the signing EE certificate (the IPs field of the Cert that ParseCert
// returns for it); passing nil skips the coverage check (for callers
// inspecting a ROA before its signer's own certificate has been validated).
func ParseRoa(v *Validator, parentCA *x509.Certificate, path string, expectedSHA256 *[32]byte, eeResources []CertIp) (*Roa, error) {
	eContent, err := ParseValidateCMS(v, parentCA, path, oidROA, expectedSHA256)
	if err != nil {
		return nil, err
	}

	r := &Roa{File: path}
	in := cryptobyte.String(eContent)
	seq, err := readSequence(&in)
	if err != nil {
		return nil, newFailure(FailureFormat, path, err)
	}

	// version is [0] EXPLICIT INTEGER DEFAULT 0 (RFC 6482 §3.1); consume and
	// discard it if present, it is not otherwise used
	versionTag := casn1.Tag(0).ContextSpecific().Constructed()
	versionRaw, hasVersion, err := readOptionalTagged(&seq, versionTag)
	if err != nil {
		return nil, newFailure(FailureFormat, path, fmt.Errorf("version: %w", err))
	}
	if hasVersion {
		if _, err := readUint32(&versionRaw); err != nil {
			return nil, newFailure(FailureFormat, path, fmt.Errorf("version: %w", err))
		}
	}

	asID, err := readUint32(&seq)
	if err != nil {
		return nil, newFailure(FailureFormat, path, fmt.Errorf("asID: %w", err))
	}
	r.ASID = asID

	blocks, err := readSequence(&seq)
	if err != nil {
		return nil, newFailure(FailureFormat, path, fmt.Errorf("ipAddrBlocks: %w", err))
	}
	entries, err := parseROAIPAddressFamilies(&blocks)
	if err != nil {
		return nil, newFailure(FailureFormat, path, err)
	}
	if len(entries) == 0 {
		return nil, newFailure(FailureProfile, path, fmt.Errorf("%w: ROA has no address entries", errShape))
	}
	r.Entries = entries

	if eeResources != nil {
		if err := checkROACoverage(r, eeResources); err != nil {
			return nil, newFailure(FailureProfile, path, err)
		}
	}

	if v != nil {
		v.debugf("roa: %s: AS%d, %d entries", path, r.ASID, len(r.Entries))
	}
	return r, nil
}

// parseROAIPAddressFamilies decodes the ipAddrBlocks SEQUENCE OF
// ROAIPAddressFamily, where each element is a SEQUENCE { addressFamily
// OCTET STRING, addresses SEQUENCE OF ROAIPAddress }, and each ROAIPAddress
// is SEQUENCE { address BIT STRING, maxLength INTEGER OPTIONAL }
func parseROAIPAddressFamilies(in *cryptobyte.String) ([]RoaIPAddress, error) {
	var out []RoaIPAddress
	for !in.Empty() {
		block, err := readSequence(in)
		if err != nil {
			return nil, fmt.Errorf("ROAIPAddressFamily: %w", err)
		}
		afi, err := readOctetString(&block)
		if err != nil {
			return nil, fmt.Errorf("addressFamily: %w", err)
		}
		family, err := decodeAFI(afi)
		if err != nil {
			return nil, err
		}
		addrs, err := readSequence(&block)
		if err != nil {
			return nil, fmt.Errorf("addresses: %w", err)
		}
		for !addrs.Empty() {
			entry, err := readSequence(&addrs)
			if err != nil {
				return nil, fmt.Errorf("ROAIPAddress: %w", err)
			}
			addrBytes, unused, err := readBitStringField(&entry)
			if err != nil {
				return nil, fmt.Errorf("ROAIPAddress.address: %w", err)
			}
			prefix, err := newIpAddr(family, addrBytes, unused)
			if err != nil {
				return nil, err
			}
			maxLength := prefix.PrefixLen()
			if !entry.Empty() {
				n, err := readUint32(&entry)
				if err != nil {
					return nil, fmt.Errorf("ROAIPAddress.maxLength: %w", err)
				}
				maxLength = int(n)
			}
			width := family.width() * 8
			if maxLength < prefix.PrefixLen() || maxLength > width {
				return nil, fmt.Errorf("%w: maxLength %d out of range [%d, %d] for prefix %s",
					errCertProfile, maxLength, prefix.PrefixLen(), width, prefix)
			}
			out = append(out, RoaIPAddress{Prefix: prefix, MaxLength: maxLength})
		}
	}
	return out, nil
}

// checkROACoverage verifies that every prefix in r is covered by an
// explicit (non-inherited) resource delegation in resources. A delegation
// covers a prefix when it shares the prefix's family and its address range
// is a superset of the prefix's own [first, last] range. An "inherit"
// delegation cannot be resolved without walking the certificate chain,
// which this package deliberately does not do (spec.md §4.2's rationale for
// one-hop verification applies equally here); a ROA whose coverage can only
// be established through an inherited entry is rejected rather than
// assumed valid.
func checkROACoverage(r *Roa, resources []CertIp) error {
	for _, entry := range r.Entries {
		if !prefixCovered(entry.Prefix, resources) {
			return fmt.Errorf("%w: %s not covered by any EE certificate resource", errROACoverage, entry.Prefix)
		}
	}
	return nil
}

func prefixCovered(p IpAddr, resources []CertIp) bool {
	first, last := addrRangeOf(p)
	for _, res := range resources {
		if res.Family != p.Family() {
			continue
		}
		switch res.Kind {
		case CertIpSingle:
			resFirst, resLast := addrRangeOf(res.Prefix)
			if compareAddrBytes(resFirst, first) <= 0 && compareAddrBytes(last, resLast) <= 0 {
				return true
			}
		case CertIpRangeKind:
			if compareAddrBytes(res.Range.Min, first) <= 0 && compareAddrBytes(last, res.Range.Max) <= 0 {
				return true
			}
		case CertIpInherit:
			continue
		}
	}
	return false
}

// addrRangeOf returns the first and last address covered by prefix a's
// range: the first is a's bytes as stored (already masked to zero in the
// unused trailing bits), the last is the same bytes with the unused
// trailing bits set to one and every byte beyond a's stored length — bytes
// the prefix says nothing about — set to 0xff, so a short prefix like
// 10.0.0.0/8 yields a last address of 10.255.255.255, not 10.0.0.0.
func addrRangeOf(a IpAddr) (first, last IpAddr) {
	width := a.Family().width()
	b := a.Bytes()
	first, _ = newIpAddr(a.Family(), b, a.Unused())

	lastBytes := make([]byte, width)
	copy(lastBytes, b)
	if a.Unused() > 0 && len(b) > 0 {
		mask := byte(0xff) >> (8 - a.Unused())
		lastBytes[len(b)-1] |= mask
	}
	for i := len(b); i < width; i++ {
		lastBytes[i] = 0xff
	}
	last, _ = newIpAddr(a.Family(), lastBytes, 0)
	return first, last
}
