// SPDX-FileCopyrightText: 2025 The rpki-client Authors
//
// SPDX-License-Identifier: MIT

package rpki

import (
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/cryptobyte"
	casn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// SIA access-method OIDs (spec.md §8)
const (
	oidSIACARepository = "1.3.6.1.5.5.7.48.5"
	oidSIAManifest     = "1.3.6.1.5.5.7.48.10"
)

// RFC 3779 resource extension OIDs (spec.md §8)
const (
	oidSBGPIPAddrBlock     = "1.3.6.1.5.5.7.1.7"
	oidSBGPAutonomousSysID = "1.3.6.1.5.5.7.1.8"
)

// errCertProfile is the sentinel wrapped by every RPKI certificate-profile
// rejection below, distinct from a bare X.509 parse failure
var errCertProfile = errors.New("certificate violates RPKI profile")

// CertIpKind tags the variant held by a CertIp
type CertIpKind int

const (
	// CertIpInherit means the parent's resources of this family apply
	CertIpInherit CertIpKind = iota
	// CertIpSingle means Prefix holds a single address/prefix
	CertIpSingle
	// CertIpRangeKind means Range holds an explicit min/max range
	CertIpRangeKind
)

// CertIp is one element of a certificate's RFC 3779 IP address delegation,
// either inherited from the parent, a single prefix, or an explicit range
type CertIp struct {
	Family Family
	Kind   CertIpKind
	Prefix IpAddr
	Range  IpAddrRange
}

// CertAsKind tags the variant held by a CertAs
type CertAsKind int

const (
	// CertAsInherit means the parent's AS resources apply
	CertAsInherit CertAsKind = iota
	// CertAsSingle means ID holds a single AS number
	CertAsSingle
	// CertAsRangeKind means Min/Max hold an explicit range
	CertAsRangeKind
)

// CertAs is one element of a certificate's RFC 3779 AS number delegation
type CertAs struct {
	Kind CertAsKind
	ID   uint32
	Min  uint32
	Max  uint32
}

// Cert is the parsed result of an RPKI end-entity or CA certificate: the SIA
// repository pointers and the RFC 3779 resource delegations. The raw X.509
// certificate itself is returned separately by ParseCert, since its lifetime
// is independent of this value (spec.md §4.3).
type Cert struct {
	// CARepository is the rsync/https URI an SIA access-method
	// 1.3.6.1.5.5.7.48.5 pointed at, if present
	CARepository string
	// Manifest is the rsync/https URI an SIA access-method
	// 1.3.6.1.5.5.7.48.10 pointed at, if present
	Manifest string
	// IPs is the certificate's RFC 3779 IP address delegation, one entry
	// per parsed per-family block element
	IPs []CertIp
	// ASes is the certificate's RFC 3779 AS number delegation
	ASes []CertAs
}

// ParseCert reads the DER-encoded X.509 certificate at path, optionally
// verifying it against expectedSHA256, parses its standard fields via
// crypto/x509, and then walks its SIA and RFC 3779 extensions per spec.md
// §4.3. The raw *x509.Certificate is returned alongside the parsed Cert so a
// caller can use it as a parent for a later CMS one-hop verification.
func ParseCert(v *Validator, path string, expectedSHA256 *[32]byte) (*Cert, *x509.Certificate, error) {
	raw, err := readAndHash(path, resolveExpectedDigest(v, expectedSHA256))
	if err != nil {
		return nil, nil, err
	}
	xc, err := x509.ParseCertificate(raw)
	if err != nil {
		return nil, nil, newFailure(FailureFormat, path, err)
	}

	c := &Cert{}
	if err := parseSIA(c, xc); err != nil {
		return nil, nil, newFailure(FailureProfile, path, err)
	}
	if err := parseResourceExtensions(v, c, xc); err != nil {
		return nil, nil, newFailure(FailureProfile, path, err)
	}
	for _, ext := range xc.Extensions {
		if ext.Critical && !isRecognizedCriticalExtension(ext.Id.String()) {
			return nil, nil, newFailure(FailureProfile, path,
				fmt.Errorf("%w: unknown critical extension %s", errCertProfile, ext.Id.String()))
		}
	}
	return c, xc, nil
}

// oidSubjectInfoAccess is the X.509 extension OID carrying the SIA
// AccessDescriptionSequence (RFC 5280 §4.2.2.2)
const oidSubjectInfoAccess = "1.3.6.1.5.5.7.1.11"

// isRecognizedCriticalExtension reports whether the RPKI profile allows
// a marked-critical extension with the given OID. Basic constraints, key
// usage, and the RFC 3779 resource extensions are routinely marked critical
// by RPKI CA software; anything else critical is a rejection per spec.md
// §4.3's "any unknown critical extension".
func isRecognizedCriticalExtension(oid string) bool {
	switch oid {
	case "2.5.29.19", // basicConstraints
		"2.5.29.15", // keyUsage
		oidSBGPIPAddrBlock,
		oidSBGPAutonomousSysID,
		"2.5.29.35", // authorityKeyIdentifier (rarely critical, but harmless)
		"2.5.29.14": // subjectKeyIdentifier
		return true
	}
	return false
}

// parseSIA scans xc's extensions for the subjectInfoAccess OID, decodes its
// AccessDescriptionSequence, and records the CA-repository and manifest URIs
func parseSIA(c *Cert, xc *x509.Certificate) error {
	for _, ext := range xc.Extensions {
		if ext.Id.String() != oidSubjectInfoAccess {
			continue
		}
		in := cryptobyte.String(ext.Value)
		seq, err := readSequence(&in)
		if err != nil {
			return fmt.Errorf("SIA: %w", err)
		}
		for !seq.Empty() {
			entry, err := readSequence(&seq)
			if err != nil {
				return fmt.Errorf("SIA AccessDescription: %w", err)
			}
			method, err := readObjectIdentifier(&entry)
			if err != nil {
				return fmt.Errorf("SIA accessMethod: %w", err)
			}
			uri, err := readGeneralNameURI(&entry)
			if err != nil {
				return fmt.Errorf("SIA accessLocation: %w", err)
			}
			switch method {
			case oidSIACARepository:
				if c.CARepository != "" {
					return fmt.Errorf("%w: duplicate SIA CA repository", errCertProfile)
				}
				c.CARepository = uri
			case oidSIAManifest:
				if c.Manifest != "" {
					return fmt.Errorf("%w: duplicate SIA manifest", errCertProfile)
				}
				c.Manifest = uri
			}
		}
	}
	return nil
}

// readGeneralNameURI reads a GeneralName and returns its value as a string,
// accepting only the [6] IA5String uniformResourceIdentifier choice used by
// SIA AccessDescription entries
func readGeneralNameURI(in *cryptobyte.String) (string, error) {
	uriTag := casn1.Tag(6).ContextSpecific()
	var raw cryptobyte.String
	if !in.ReadASN1(&raw, uriTag) {
		return "", fmt.Errorf("%w: expected [6] uniformResourceIdentifier", errShape)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: empty accessLocation URI", errShape)
	}
	return string(raw), nil
}

// parseResourceExtensions scans xc's extensions for sbgp-ipAddrBlock and
// sbgp-autonomousSysNum and decodes each into c.IPs / c.ASes
func parseResourceExtensions(v *Validator, c *Cert, xc *x509.Certificate) error {
	for _, ext := range xc.Extensions {
		switch ext.Id.String() {
		case oidSBGPIPAddrBlock:
			ips, err := decodeIPAddrBlocks(ext.Value)
			if err != nil {
				return fmt.Errorf("sbgp-ipAddrBlock: %w", err)
			}
			c.IPs = ips
		case oidSBGPAutonomousSysID:
			ases, err := decodeASIdentifiers(ext.Value)
			if err != nil {
				return fmt.Errorf("sbgp-autonomousSysNum: %w", err)
			}
			c.ASes = ases
		}
	}
	if v != nil {
		v.debugf("cert: parsed %d IP entries, %d AS entries", len(c.IPs), len(c.ASes))
	}
	return nil
}

// decodeIPAddrBlocks decodes the IPAddrBlocks SEQUENCE OF IPAddressFamily,
// where each IPAddressFamily is a SEQUENCE { addressFamily OCTET STRING,
// ipAddressChoice CHOICE { inherit NULL, addressesOrRanges SEQUENCE OF
// IPAddressOrRange } }
func decodeIPAddrBlocks(der []byte) ([]CertIp, error) {
	in := cryptobyte.String(der)
	top, err := readSequence(&in)
	if err != nil {
		return nil, err
	}
	var out []CertIp
	for !top.Empty() {
		block, err := readSequence(&top)
		if err != nil {
			return nil, fmt.Errorf("IPAddressFamily: %w", err)
		}
		afi, err := readOctetString(&block)
		if err != nil {
			return nil, fmt.Errorf("addressFamily: %w", err)
		}
		family, err := decodeAFI(afi)
		if err != nil {
			return nil, err
		}
		tag, ok := peekTag(block)
		if !ok {
			return nil, fmt.Errorf("%w: missing ipAddressChoice", errCertProfile)
		}
		if tag == casn1.NULL {
			var null cryptobyte.String
			if !block.ReadASN1(&null, casn1.NULL) {
				return nil, fmt.Errorf("%w: malformed inherit NULL", errShape)
			}
			out = append(out, CertIp{Family: family, Kind: CertIpInherit})
			continue
		}
		ranges, err := readSequence(&block)
		if err != nil {
			return nil, fmt.Errorf("addressesOrRanges: %w", err)
		}
		sawExplicit := false
		for !ranges.Empty() {
			entry, err := decodeIPAddressOrRange(family, &ranges)
			if err != nil {
				return nil, err
			}
			sawExplicit = true
			out = append(out, entry)
		}
		if !sawExplicit {
			return nil, fmt.Errorf("%w: empty addressesOrRanges block", errCertProfile)
		}
	}
	return out, nil
}

// decodeIPAddressOrRange decodes one IPAddressOrRange: either a bare
// BIT STRING (a single prefix) or a SEQUENCE of two BIT STRINGs (a range)
func decodeIPAddressOrRange(family Family, in *cryptobyte.String) (CertIp, error) {
	tag, ok := peekTag(*in)
	if !ok {
		return CertIp{}, fmt.Errorf("%w: empty IPAddressOrRange", errCertProfile)
	}
	if tag == casn1.BIT_STRING {
		bytes, unused, err := readBitStringField(in)
		if err != nil {
			return CertIp{}, err
		}
		addr, err := newIpAddr(family, bytes, unused)
		if err != nil {
			return CertIp{}, err
		}
		return CertIp{Family: family, Kind: CertIpSingle, Prefix: addr}, nil
	}
	seq, err := readSequence(in)
	if err != nil {
		return CertIp{}, fmt.Errorf("IPAddressRange: %w", err)
	}
	minBytes, minUnused, err := readBitStringField(&seq)
	if err != nil {
		return CertIp{}, fmt.Errorf("IPAddressRange.min: %w", err)
	}
	maxBytes, maxUnused, err := readBitStringField(&seq)
	if err != nil {
		return CertIp{}, fmt.Errorf("IPAddressRange.max: %w", err)
	}
	minAddr, err := newIpAddr(family, minBytes, minUnused)
	if err != nil {
		return CertIp{}, err
	}
	maxAddr, err := newIpAddr(family, maxBytes, maxUnused)
	if err != nil {
		return CertIp{}, err
	}
	r, err := NewIpAddrRange(minAddr, maxAddr)
	if err != nil {
		return CertIp{}, err
	}
	return CertIp{Family: family, Kind: CertIpRangeKind, Range: r}, nil
}

// decodeAFI validates a two-byte addressFamily OCTET STRING and returns the
// corresponding Family, rejecting any AFI other than 1 (IPv4) or 2 (IPv6)
func decodeAFI(afi []byte) (Family, error) {
	if len(afi) < 2 {
		return 0, fmt.Errorf("%w: addressFamily OCTET STRING too short", errCertProfile)
	}
	switch Family(afi[1]) {
	case FamilyIPv4:
		return FamilyIPv4, nil
	case FamilyIPv6:
		return FamilyIPv6, nil
	default:
		return 0, fmt.Errorf("%w: unrecognized AFI %d", errCertProfile, afi[1])
	}
}

// decodeASIdentifiers decodes ASIdentifiers ::= SEQUENCE {
//
//	asnum [0] EXPLICIT ASIdentifierChoice OPTIONAL,
//	rdi   [1] EXPLICIT ASIdentifierChoice OPTIONAL }
//
// only the asnum half is meaningful for this profile
func decodeASIdentifiers(der []byte) ([]CertAs, error) {
	in := cryptobyte.String(der)
	top, err := readSequence(&in)
	if err != nil {
		return nil, err
	}
	asnumTag := casn1.Tag(0).ContextSpecific().Constructed()
	asnum, present, err := readOptionalTagged(&top, asnumTag)
	if err != nil {
		return nil, fmt.Errorf("ASIdentifiers.asnum: %w", err)
	}
	if !present {
		return nil, nil
	}
	tag, ok := peekTag(asnum)
	if !ok {
		return nil, fmt.Errorf("%w: empty ASIdentifierChoice", errCertProfile)
	}
	if tag == casn1.NULL {
		var null cryptobyte.String
		if !asnum.ReadASN1(&null, casn1.NULL) {
			return nil, fmt.Errorf("%w: malformed inherit NULL", errShape)
		}
		return []CertAs{{Kind: CertAsInherit}}, nil
	}
	ranges, err := readSequence(&asnum)
	if err != nil {
		return nil, fmt.Errorf("ASIdsOrRanges: %w", err)
	}
	var out []CertAs
	for !ranges.Empty() {
		entry, err := decodeASIdOrRange(&ranges)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty ASIdsOrRanges block", errCertProfile)
	}
	return out, nil
}

// decodeASIdOrRange decodes one ASIdOrRange: either a bare INTEGER (a single
// AS number) or a SEQUENCE of two INTEGERs (min, max)
func decodeASIdOrRange(in *cryptobyte.String) (CertAs, error) {
	tag, ok := peekTag(*in)
	if !ok {
		return CertAs{}, fmt.Errorf("%w: empty ASIdOrRange", errCertProfile)
	}
	if tag == casn1.INTEGER {
		id, err := readUint32(in)
		if err != nil {
			return CertAs{}, err
		}
		return CertAs{Kind: CertAsSingle, ID: id}, nil
	}
	seq, err := readSequence(in)
	if err != nil {
		return CertAs{}, fmt.Errorf("ASRange: %w", err)
	}
	min, err := readUint32(&seq)
	if err != nil {
		return CertAs{}, fmt.Errorf("ASRange.min: %w", err)
	}
	max, err := readUint32(&seq)
	if err != nil {
		return CertAs{}, fmt.Errorf("ASRange.max: %w", err)
	}
	if min > max {
		return CertAs{}, fmt.Errorf("%w: AS range minimum %d exceeds maximum %d", errCertProfile, min, max)
	}
	return CertAs{Kind: CertAsRangeKind, Min: min, Max: max}, nil
}

// readOctetString reads a plain OCTET STRING
func readOctetString(in *cryptobyte.String) ([]byte, error) {
	var raw cryptobyte.String
	if !in.ReadASN1(&raw, casn1.OCTET_STRING) {
		return nil, fmt.Errorf("%w: expected OCTET STRING", errShape)
	}
	return []byte(raw), nil
}

// readAndHash reads the whole file at path, verifying it against
// expectedSHA256 if non-nil, matching the streaming-hash step shared by
// every file-backed parser (spec.md §4.2 step 1 and its CMS/Mft/ROA/Cert
// analogues).
func readAndHash(path string, expectedSHA256 *[32]byte) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, newFailure(FailureIO, path, err)
	}
	defer f.Close()

	h := sha256.New()
	raw, err := io.ReadAll(io.TeeReader(f, h))
	if err != nil {
		return nil, newFailure(FailureIO, path, err)
	}
	if expectedSHA256 != nil {
		var got [32]byte
		copy(got[:], h.Sum(nil))
		if got != *expectedSHA256 {
			return nil, newFailure(FailureCrypto, path, fmt.Errorf("digest mismatch: expected %x, got %x", *expectedSHA256, got))
		}
	}
	return raw, nil
}
