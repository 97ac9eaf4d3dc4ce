// SPDX-FileCopyrightText: 2025 The rpki-client Authors
//
// SPDX-License-Identifier: MIT

package rpki

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Family identifies an RFC 3779 address family. Only IPv4 and IPv6 are
// recognized; any other AFI is a profile violation.
type Family uint8

const (
	// FamilyIPv4 is AFI 1
	FamilyIPv4 Family = 1
	// FamilyIPv6 is AFI 2
	FamilyIPv6 Family = 2
)

// String implements the Stringer interface for Family
func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "IPv4"
	case FamilyIPv6:
		return "IPv6"
	}
	return "unknown"
}

// width returns the number of address bytes for the family, or 0 if unknown
func (f Family) width() int {
	switch f {
	case FamilyIPv4:
		return 4
	case FamilyIPv6:
		return 16
	}
	return 0
}

// errMalformedBitString is the sentinel wrapped by decode failures
var errMalformedBitString = errors.New("malformed RFC 3779 bit string")

// IpAddr is a decoded RFC 3779 IP address or address prefix: an address
// family, up to 16 address bytes, and a count of unused trailing bits in the
// final byte. It corresponds to the on-the-wire BIT STRING encoding: one
// leading byte giving unused (0..7), followed by the minimum number of bytes
// needed to cover the prefix.
type IpAddr struct {
	family Family
	bytes  [16]byte
	length int // number of significant bytes in bytes[:length]
	unused uint8
}

// Family returns the address family of the IpAddr
func (a IpAddr) Family() Family {
	return a.family
}

// Bytes returns the significant address bytes (0..16 of them), with the
// final byte's unused trailing bits already masked to zero
func (a IpAddr) Bytes() []byte {
	b := make([]byte, a.length)
	copy(b, a.bytes[:a.length])
	return b
}

// Unused returns the count of unused trailing bits in the final byte (0..7)
func (a IpAddr) Unused() uint8 {
	return a.unused
}

// PrefixLen returns the address's prefix length in bits: 8*length - unused
func (a IpAddr) PrefixLen() int {
	return a.length*8 - int(a.unused)
}

// newIpAddr validates and builds an IpAddr from already-split fields,
// rejecting an unused count above 7, an address byte count exceeding the
// family width, and nonzero bits below the unused-bit mask in the final byte.
func newIpAddr(family Family, addrBytes []byte, unused uint8) (IpAddr, error) {
	width := family.width()
	if width == 0 {
		return IpAddr{}, fmt.Errorf("%w: unrecognized address family %d", errMalformedBitString, family)
	}
	if unused > 7 {
		return IpAddr{}, fmt.Errorf("%w: unused bit count %d exceeds 7", errMalformedBitString, unused)
	}
	if len(addrBytes) > width {
		return IpAddr{}, fmt.Errorf("%w: %d address bytes exceeds %s width of %d", errMalformedBitString, len(addrBytes), family, width)
	}
	a := IpAddr{family: family, length: len(addrBytes), unused: unused}
	copy(a.bytes[:], addrBytes)
	if len(addrBytes) > 0 && unused > 0 {
		mask := byte(0xff) >> (8 - unused)
		last := a.bytes[len(addrBytes)-1]
		if last&mask != 0 {
			return IpAddr{}, fmt.Errorf("%w: masked trailing bits are nonzero in final byte", errMalformedBitString)
		}
	}
	return a, nil
}

// DecodeIpAddr decodes the RFC 3779 BIT STRING encoding of an IPv4 or IPv6
// address/prefix: a leading byte giving the number of unused trailing bits
// (0..7), followed by the minimum number of bytes needed to cover the
// prefix (zero bytes for the "0/0" / all-addresses case). raw is the
// complete BIT STRING content octets, exactly as decoded from DER; a buffer
// too short to contain even the leading unused-count byte is rejected, as is
// any buffer inconsistent with the rules above.
func DecodeIpAddr(family Family, raw []byte) (IpAddr, error) {
	if len(raw) == 0 {
		return IpAddr{}, fmt.Errorf("%w: empty bit string, missing unused-count byte", errMalformedBitString)
	}
	return newIpAddr(family, raw[1:], raw[0])
}

// String formats the IpAddr as a prefix: "a.b.c.d/len" for IPv4 (trailing
// zero octets beyond the prefix omitted, since only the covering bytes are
// stored), full "h:h:...:h" with last-group truncation plus "/len" for
// IPv6, and full-precision with no "/len" suffix when unused=0 and the byte
// count equals the family width (a fully specified address).
func (a IpAddr) String() string {
	switch a.family {
	case FamilyIPv4:
		return formatIPv4(a)
	case FamilyIPv6:
		return formatIPv6(a)
	default:
		return "invalid"
	}
}

func formatIPv4(a IpAddr) string {
	if a.length == 0 {
		return fmt.Sprintf("0/%d", a.PrefixLen())
	}
	octets := make([]string, a.length)
	for i := 0; i < a.length; i++ {
		octets[i] = strconv.Itoa(int(a.bytes[i]))
	}
	s := strings.Join(octets, ".")
	if a.unused == 0 && a.length == FamilyIPv4.width() {
		return s
	}
	return fmt.Sprintf("%s/%d", s, a.PrefixLen())
}

func formatIPv6(a IpAddr) string {
	if a.length == 0 {
		return fmt.Sprintf("0/%d", a.PrefixLen())
	}
	var groups [8]uint16
	for i := 0; i < a.length; i++ {
		groups[i/2] |= uint16(a.bytes[i]) << (8 * (1 - uint(i%2)))
	}
	full := a.unused == 0 && a.length == FamilyIPv6.width()
	numGroups := (a.length + 1) / 2
	if full {
		numGroups = 8
	}
	parts := make([]string, numGroups)
	for i := 0; i < numGroups; i++ {
		parts[i] = strconv.FormatUint(uint64(groups[i]), 16)
	}
	s := strings.Join(parts, ":")
	if full {
		return s
	}
	return fmt.Sprintf("%s/%d", s, a.PrefixLen())
}

// IpAddrRange is a range of IP addresses within a single family, expressed
// as a minimum and maximum endpoint. The minimum is formatted with its
// unused bits cleared; the maximum with its unused bits set, matching
// spec.md §4.1: "the low endpoint is formatted with unused bits cleared, the
// high endpoint with unused bits set."
type IpAddrRange struct {
	Min IpAddr
	Max IpAddr
}

// NewIpAddrRange validates that min and max share a family and that min is
// lexicographically no greater than max at full byte precision, per the
// CertIp invariant in spec.md §3.
func NewIpAddrRange(min, max IpAddr) (IpAddrRange, error) {
	if min.family != max.family {
		return IpAddrRange{}, fmt.Errorf("%w: range endpoints have different families (%s, %s)", errMalformedBitString, min.family, max.family)
	}
	if compareAddrBytes(min, max) > 0 {
		return IpAddrRange{}, fmt.Errorf("%w: range minimum is greater than maximum", errMalformedBitString)
	}
	return IpAddrRange{Min: min, Max: max}, nil
}

// compareAddrBytes compares two IpAddr values of the same family byte for
// byte up to the family width, treating missing trailing bytes as zero
func compareAddrBytes(a, b IpAddr) int {
	width := a.family.width()
	for i := 0; i < width; i++ {
		var av, bv byte
		if i < a.length {
			av = a.bytes[i]
		}
		if i < b.length {
			bv = b.bytes[i]
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

// String formats the range as "min-max", with the unused trailing bits of
// max's final byte set to one
func (r IpAddrRange) String() string {
	hi := r.Max
	if hi.length > 0 && hi.unused > 0 {
		hi.bytes[hi.length-1] |= byte(0xff) >> (8 - hi.unused)
	}
	return fmt.Sprintf("%s-%s", r.Min.String(), hi.String())
}
