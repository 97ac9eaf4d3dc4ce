// SPDX-FileCopyrightText: 2025 The rpki-client Authors
//
// SPDX-License-Identifier: MIT

package rpki

import (
	"crypto/x509"
	"encoding/asn1"
	"testing"
)

// oidROAASN1 is oidROA as an asn1.ObjectIdentifier, for building test
// fixtures that need to sign under the ROA eContentType
var oidROAASN1 = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 1, 24}

// buildROACMSFixture issues a CA and EE key pair, signs content with the
// ROA eContentType, and returns the outer CMS DER together with the CA
// certificate to use as parentCA.
func buildROACMSFixture(t *testing.T, content []byte) ([]byte, *x509.Certificate) {
	t.Helper()
	return buildCMSFixtureWithOID(t, content, oidROAASN1)
}

// buildROAEContent assembles a minimal RFC 6482 ROA eContent: an asID plus
// a single IPv4 ROAIPAddressFamily block holding one prefix.
func buildROAEContent(t *testing.T, asID int, prefixBits []byte, unused byte, maxLength *int) []byte {
	t.Helper()
	type roaIPAddress struct {
		Address   asn1.BitString
		MaxLength int `asn1:"optional"`
	}
	addr := roaIPAddress{Address: asn1.BitString{Bytes: prefixBits, BitLength: len(prefixBits)*8 - int(unused)}}
	if maxLength != nil {
		addr.MaxLength = *maxLength
	}
	type roaIPAddressFamily struct {
		AddressFamily []byte
		Addresses     []roaIPAddress
	}
	type roaContent struct {
		ASID         int
		IPAddrBlocks []roaIPAddressFamily
	}
	der, err := asn1.Marshal(roaContent{
		ASID: asID,
		IPAddrBlocks: []roaIPAddressFamily{
			{AddressFamily: []byte{0x00, 0x01}, Addresses: []roaIPAddress{addr}},
		},
	})
	if err != nil {
		t.Fatalf("asn1.Marshal() failed: %s", err)
	}
	return der
}

func mustIpAddr(t *testing.T, family Family, bytes []byte, unused uint8) IpAddr {
	t.Helper()
	a, err := newIpAddr(family, bytes, unused)
	if err != nil {
		t.Fatalf("newIpAddr() failed: %s", err)
	}
	return a
}

func TestParseRoaAcceptsCoveredPrefix(t *testing.T) {
	// 10/8
	content := buildROAEContent(t, 65000, []byte{0x0a}, 0, nil)
	der, caCert := buildROACMSFixture(t, content)
	path := writeTempFile(t, der)

	resources := []CertIp{
		{Family: FamilyIPv4, Kind: CertIpSingle, Prefix: mustIpAddr(t, FamilyIPv4, []byte{0x0a}, 0)},
	}
	roa, err := ParseRoa(nil, caCert, path, nil, resources)
	if err != nil {
		t.Fatalf("ParseRoa() failed: %s", err)
	}
	if roa.ASID != 65000 {
		t.Errorf("ASID = %d, want 65000", roa.ASID)
	}
	if len(roa.Entries) != 1 || roa.Entries[0].MaxLength != 8 {
		t.Errorf("Entries = %+v, want single /8 with default maxLength 8", roa.Entries)
	}
}

// TestParseRoaAcceptsSubPrefixOfShorterResource checks that a ROA prefix
// narrower than its covering EE resource is still accepted: 10.5/16 is
// covered by 10/8 even though the resource's stored bytes ([0x0a]) are
// shorter than the ROA prefix's ([0x0a, 0x05]).
func TestParseRoaAcceptsSubPrefixOfShorterResource(t *testing.T) {
	// 10.5/16
	content := buildROAEContent(t, 65000, []byte{0x0a, 0x05}, 0, nil)
	der, caCert := buildROACMSFixture(t, content)
	path := writeTempFile(t, der)

	resources := []CertIp{
		// 10/8
		{Family: FamilyIPv4, Kind: CertIpSingle, Prefix: mustIpAddr(t, FamilyIPv4, []byte{0x0a}, 0)},
	}
	if _, err := ParseRoa(nil, caCert, path, nil, resources); err != nil {
		t.Fatalf("ParseRoa() failed: %s, want 10.5/16 accepted as covered by 10/8", err)
	}
}

func TestParseRoaRejectsUncoveredPrefix(t *testing.T) {
	content := buildROAEContent(t, 65000, []byte{0x0a}, 0, nil)
	der, caCert := buildROACMSFixture(t, content)
	path := writeTempFile(t, der)

	resources := []CertIp{
		// 192.0.2/24, does not cover 10/8
		{Family: FamilyIPv4, Kind: CertIpSingle, Prefix: mustIpAddr(t, FamilyIPv4, []byte{0xc0, 0x00, 0x02}, 0)},
	}
	if _, err := ParseRoa(nil, caCert, path, nil, resources); err == nil {
		t.Fatal("expected rejection of a ROA prefix not covered by EE resources")
	}
}

func TestParseRoaRejectsMaxLengthBelowPrefix(t *testing.T) {
	bad := 4
	content := buildROAEContent(t, 65000, []byte{0x0a}, 0, &bad)
	der, caCert := buildROACMSFixture(t, content)
	path := writeTempFile(t, der)

	if _, err := ParseRoa(nil, caCert, path, nil, nil); err == nil {
		t.Fatal("expected rejection of a maxLength shorter than the prefix length")
	}
}

func TestParseRoaRejectsOIDMismatch(t *testing.T) {
	content := buildROAEContent(t, 65000, []byte{0x0a}, 0, nil)
	der, caCert := buildSignedCMS(t, content) // signed as generic "data", not ROA
	path := writeTempFile(t, der)

	if _, err := ParseRoa(nil, caCert, path, nil, nil); err == nil {
		t.Fatal("expected rejection of a ROA CMS with the wrong eContentType")
	}
}
