// SPDX-FileCopyrightText: 2025 The rpki-client Authors
//
// SPDX-License-Identifier: MIT

package rpki

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/cryptobyte"
)

// genSelfSigned builds a minimal self-signed certificate with the given
// extra extensions attached, for feeding to ParseCert
func genSelfSigned(t *testing.T, extra []pkix.Extension) (der []byte, path string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("ecdsa.GenerateKey() failed: %s", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		ExtraExtensions:       extra,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err = x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("x509.CreateCertificate() failed: %s", err)
	}
	dir := t.TempDir()
	path = filepath.Join(dir, "cert.der")
	if err := os.WriteFile(path, der, 0o600); err != nil {
		t.Fatalf("os.WriteFile() failed: %s", err)
	}
	return der, path
}

func siaExtension(t *testing.T, caRepo, mft string) pkix.Extension {
	t.Helper()
	type accessDescription struct {
		Method asn1.ObjectIdentifier
		Name   asn1.RawValue
	}
	var entries []accessDescription
	if caRepo != "" {
		entries = append(entries, accessDescription{
			Method: asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 5},
			Name:   asn1.RawValue{Class: 2, Tag: 6, Bytes: []byte(caRepo)},
		})
	}
	if mft != "" {
		entries = append(entries, accessDescription{
			Method: asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 10},
			Name:   asn1.RawValue{Class: 2, Tag: 6, Bytes: []byte(mft)},
		})
	}
	value, err := asn1.Marshal(entries)
	if err != nil {
		t.Fatalf("asn1.Marshal(SIA) failed: %s", err)
	}
	return pkix.Extension{
		Id:    asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 1, 11},
		Value: value,
	}
}

func TestParseCertSIA(t *testing.T) {
	ext := siaExtension(t, "rsync://example.test/repo/", "rsync://example.test/repo/manifest.mft")
	_, path := genSelfSigned(t, []pkix.Extension{ext})

	c, xc, err := ParseCert(nil, path, nil)
	if err != nil {
		t.Fatalf("ParseCert() failed: %s", err)
	}
	if xc == nil {
		t.Fatal("ParseCert() returned a nil raw certificate")
	}
	if c.CARepository != "rsync://example.test/repo/" {
		t.Errorf("CARepository = %q, want %q", c.CARepository, "rsync://example.test/repo/")
	}
	if c.Manifest != "rsync://example.test/repo/manifest.mft" {
		t.Errorf("Manifest = %q, want %q", c.Manifest, "rsync://example.test/repo/manifest.mft")
	}
}

func TestParseCertSIADuplicateRejected(t *testing.T) {
	type accessDescription struct {
		Method asn1.ObjectIdentifier
		Name   asn1.RawValue
	}
	entries := []accessDescription{
		{Method: asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 5}, Name: asn1.RawValue{Class: 2, Tag: 6, Bytes: []byte("rsync://a/")}},
		{Method: asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 5}, Name: asn1.RawValue{Class: 2, Tag: 6, Bytes: []byte("rsync://b/")}},
	}
	value, err := asn1.Marshal(entries)
	if err != nil {
		t.Fatalf("asn1.Marshal(SIA) failed: %s", err)
	}
	ext := pkix.Extension{Id: asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 1, 11}, Value: value}
	_, path := genSelfSigned(t, []pkix.Extension{ext})

	if _, _, err := ParseCert(nil, path, nil); err == nil {
		t.Fatal("expected rejection of duplicate SIA CA repository entries")
	}
}

func TestParseCertRejectsUnknownCriticalExtension(t *testing.T) {
	ext := pkix.Extension{
		Id:       asn1.ObjectIdentifier{1, 2, 3, 4, 5, 6, 7},
		Critical: true,
		Value:    []byte{0x05, 0x00},
	}
	_, path := genSelfSigned(t, []pkix.Extension{ext})

	if _, _, err := ParseCert(nil, path, nil); err == nil {
		t.Fatal("expected rejection of an unrecognized critical extension")
	}
}

func TestDecodeASIdentifiersInherit(t *testing.T) {
	type asIdentifiers struct {
		ASNum asn1.RawValue `asn1:"optional,explicit,tag:0"`
	}
	inner := asn1.RawValue{Tag: 5, Class: 0, Bytes: []byte{}} // NULL
	der, err := asn1.Marshal(asIdentifiers{ASNum: inner})
	if err != nil {
		t.Fatalf("asn1.Marshal() failed: %s", err)
	}
	ases, err := decodeASIdentifiers(der)
	if err != nil {
		t.Fatalf("decodeASIdentifiers() failed: %s", err)
	}
	if len(ases) != 1 || ases[0].Kind != CertAsInherit {
		t.Fatalf("decodeASIdentifiers() = %+v, want a single inherit entry", ases)
	}
}

func TestDecodeASIdOrRangeRejectsReversedRange(t *testing.T) {
	type asRange struct {
		Min int
		Max int
	}
	der, err := asn1.Marshal(asRange{Min: 200, Max: 100})
	if err != nil {
		t.Fatalf("asn1.Marshal() failed: %s", err)
	}
	in := cryptobyte.String(der)
	if _, err := decodeASIdOrRange(&in); err == nil {
		t.Fatal("expected rejection of an AS range with min > max")
	}
}

func TestDecodeAFIRejectsUnknown(t *testing.T) {
	if _, err := decodeAFI([]byte{0x00, 0x07}); err == nil {
		t.Fatal("expected rejection of an unrecognized AFI byte")
	}
}

// ipAddressFamilyFixture mirrors IPAddressFamily ::= SEQUENCE {
// addressFamily OCTET STRING, ipAddressChoice CHOICE { ... } }, with the
// CHOICE built by hand as a RawValue so a single Go type can stand in for
// either the inherit NULL or the addressesOrRanges SEQUENCE OF alternative.
type ipAddressFamilyFixture struct {
	AddressFamily []byte
	Choice        asn1.RawValue
}

// ipAddressRangeFixture mirrors IPAddressRange ::= SEQUENCE { min BIT
// STRING, max BIT STRING }
type ipAddressRangeFixture struct {
	Min asn1.BitString
	Max asn1.BitString
}

// seqOfEntries wraps the concatenated DER of one or more already-encoded
// IPAddressOrRange entries into a SEQUENCE OF, the way addressesOrRanges is
// encoded on the wire.
func seqOfEntries(t *testing.T, entries ...[]byte) asn1.RawValue {
	t.Helper()
	var content []byte
	for _, e := range entries {
		content = append(content, e...)
	}
	return asn1.RawValue{Class: 0, Tag: 16, IsCompound: true, Bytes: content}
}

func marshalEntry(t *testing.T, v interface{}) []byte {
	t.Helper()
	der, err := asn1.Marshal(v)
	if err != nil {
		t.Fatalf("asn1.Marshal() failed: %s", err)
	}
	return der
}

// ipAddrBlocksDER marshals a single IPAddressFamily block (the one family
// this module's fixtures ever need) into the IPAddrBlocks SEQUENCE OF
// IPAddressFamily shape that decodeIPAddrBlocks expects as input.
func ipAddrBlocksDER(t *testing.T, afi byte, choice asn1.RawValue) []byte {
	t.Helper()
	block := ipAddressFamilyFixture{AddressFamily: []byte{0x00, afi}, Choice: choice}
	der, err := asn1.Marshal([]ipAddressFamilyFixture{block})
	if err != nil {
		t.Fatalf("asn1.Marshal(IPAddrBlocks) failed: %s", err)
	}
	return der
}

func TestDecodeIPAddrBlocksIPv4SinglePrefix(t *testing.T) {
	// 192.0.2.0/24
	prefix := marshalEntry(t, asn1.BitString{Bytes: []byte{192, 0, 2}, BitLength: 24})
	der := ipAddrBlocksDER(t, 1, seqOfEntries(t, prefix))

	ips, err := decodeIPAddrBlocks(der)
	if err != nil {
		t.Fatalf("decodeIPAddrBlocks() failed: %s", err)
	}
	if len(ips) != 1 || ips[0].Kind != CertIpSingle || ips[0].Family != FamilyIPv4 {
		t.Fatalf("decodeIPAddrBlocks() = %+v, want a single IPv4 prefix entry", ips)
	}
	if got := ips[0].Prefix.String(); got != "192.0.2/24" {
		t.Errorf("Prefix = %q, want %q", got, "192.0.2/24")
	}
}

func TestDecodeIPAddrBlocksIPv4Range(t *testing.T) {
	entry := marshalEntry(t, ipAddressRangeFixture{
		Min: asn1.BitString{Bytes: []byte{192, 0, 2, 0}, BitLength: 32},
		Max: asn1.BitString{Bytes: []byte{192, 0, 2, 255}, BitLength: 32},
	})
	der := ipAddrBlocksDER(t, 1, seqOfEntries(t, entry))

	ips, err := decodeIPAddrBlocks(der)
	if err != nil {
		t.Fatalf("decodeIPAddrBlocks() failed: %s", err)
	}
	if len(ips) != 1 || ips[0].Kind != CertIpRangeKind || ips[0].Family != FamilyIPv4 {
		t.Fatalf("decodeIPAddrBlocks() = %+v, want a single IPv4 range entry", ips)
	}
	if got := ips[0].Range.String(); got != "192.0.2.0-192.0.2.255" {
		t.Errorf("Range = %q, want %q", got, "192.0.2.0-192.0.2.255")
	}
}

func TestDecodeIPAddrBlocksIPv6SinglePrefix(t *testing.T) {
	// 2001:db8::/32
	addr := []byte{0x20, 0x01, 0x0d, 0xb8}
	prefix := marshalEntry(t, asn1.BitString{Bytes: addr, BitLength: 32})
	der := ipAddrBlocksDER(t, 2, seqOfEntries(t, prefix))

	ips, err := decodeIPAddrBlocks(der)
	if err != nil {
		t.Fatalf("decodeIPAddrBlocks() failed: %s", err)
	}
	if len(ips) != 1 || ips[0].Kind != CertIpSingle || ips[0].Family != FamilyIPv6 {
		t.Fatalf("decodeIPAddrBlocks() = %+v, want a single IPv6 prefix entry", ips)
	}
	if got := ips[0].Prefix.String(); got != "2001:db8/32" {
		t.Errorf("Prefix = %q, want %q", got, "2001:db8/32")
	}
}

func TestDecodeIPAddrBlocksIPv6Range(t *testing.T) {
	entry := marshalEntry(t, ipAddressRangeFixture{
		Min: asn1.BitString{Bytes: []byte{0x20, 0x01, 0x0d, 0xb8, 0x00, 0x00}, BitLength: 48},
		Max: asn1.BitString{Bytes: []byte{0x20, 0x01, 0x0d, 0xb8, 0xff, 0xff}, BitLength: 48},
	})
	der := ipAddrBlocksDER(t, 2, seqOfEntries(t, entry))

	ips, err := decodeIPAddrBlocks(der)
	if err != nil {
		t.Fatalf("decodeIPAddrBlocks() failed: %s", err)
	}
	if len(ips) != 1 || ips[0].Kind != CertIpRangeKind || ips[0].Family != FamilyIPv6 {
		t.Fatalf("decodeIPAddrBlocks() = %+v, want a single IPv6 range entry", ips)
	}
	if got := ips[0].Range.String(); got != "2001:db8:0/48-2001:db8:ffff/48" {
		t.Errorf("Range = %q, want %q", got, "2001:db8:0/48-2001:db8:ffff/48")
	}
}

func TestDecodeIPAddrBlocksRejectsUnrecognizedAFI(t *testing.T) {
	prefix := marshalEntry(t, asn1.BitString{Bytes: []byte{192, 0, 2}, BitLength: 24})
	der := ipAddrBlocksDER(t, 7, seqOfEntries(t, prefix))

	if _, err := decodeIPAddrBlocks(der); err == nil {
		t.Fatal("expected rejection of an IPAddressFamily block with an unrecognized AFI")
	}
}

// TestDecodeIPAddrBlocksRejectsEmptyAddressesOrRanges covers an
// IPAddressFamily whose ipAddressChoice takes the addressesOrRanges branch
// (not inherit) but whose SEQUENCE OF is empty.
// RFC 3779 has no representation for "inherit nothing under an explicit
// choice", so an empty addressesOrRanges block is always a profile
// violation, never a valid way to encode "no resources of this family".
func TestDecodeIPAddrBlocksRejectsEmptyAddressesOrRanges(t *testing.T) {
	der := ipAddrBlocksDER(t, 1, seqOfEntries(t))

	if _, err := decodeIPAddrBlocks(der); err == nil {
		t.Fatal("expected rejection of an empty addressesOrRanges block")
	}
}

func TestDecodeIPAddressOrRangeRejectsUnrecognizedFamily(t *testing.T) {
	prefix := marshalEntry(t, asn1.BitString{Bytes: []byte{192, 0, 2}, BitLength: 24})
	in := cryptobyte.String(prefix)
	if _, err := decodeIPAddressOrRange(Family(7), &in); err == nil {
		t.Fatal("expected rejection of an IPAddressOrRange decoded against an unrecognized family")
	}
}
