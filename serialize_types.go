// SPDX-FileCopyrightText: 2025 The rpki-client Authors
//
// SPDX-License-Identifier: MIT

package rpki

import "fmt"

// MarshalFrame writes the IpAddr as: family uint8, unused uint8, str of
// address bytes
func (a IpAddr) MarshalFrame(w *FrameWriter) {
	w.WriteUint8(uint8(a.family))
	w.WriteUint8(a.unused)
	w.WriteBytes(a.Bytes())
}

// UnmarshalIpAddr reads back a value written by MarshalFrame
func UnmarshalIpAddr(r *FrameReader) (IpAddr, error) {
	familyByte, err := r.ReadUint8()
	if err != nil {
		return IpAddr{}, err
	}
	family := Family(familyByte)
	if family != FamilyIPv4 && family != FamilyIPv6 {
		return IpAddr{}, fmt.Errorf("%w: out-of-range address family tag %d", errFrame, familyByte)
	}
	unused, err := r.ReadUint8()
	if err != nil {
		return IpAddr{}, err
	}
	addrBytes, err := r.ReadBytes()
	if err != nil {
		return IpAddr{}, err
	}
	a, err := newIpAddr(family, addrBytes, unused)
	if err != nil {
		return IpAddr{}, fmt.Errorf("%w: %s", errFrame, err)
	}
	return a, nil
}

// MarshalFrame writes an IpAddrRange as two IpAddr values, min then max
func (r IpAddrRange) MarshalFrame(w *FrameWriter) {
	r.Min.MarshalFrame(w)
	r.Max.MarshalFrame(w)
}

// UnmarshalIpAddrRange reads back a value written by MarshalFrame
func UnmarshalIpAddrRange(fr *FrameReader) (IpAddrRange, error) {
	min, err := UnmarshalIpAddr(fr)
	if err != nil {
		return IpAddrRange{}, err
	}
	max, err := UnmarshalIpAddr(fr)
	if err != nil {
		return IpAddrRange{}, err
	}
	return NewIpAddrRange(min, max)
}

// MarshalFrame writes a CertIp as a family tag and a kind tag followed by
// whichever variant payload the kind calls for
func (c CertIp) MarshalFrame(w *FrameWriter) {
	w.WriteUint8(uint8(c.Family))
	w.WriteUint8(uint8(c.Kind))
	switch c.Kind {
	case CertIpSingle:
		c.Prefix.MarshalFrame(w)
	case CertIpRangeKind:
		c.Range.MarshalFrame(w)
	}
}

// UnmarshalCertIp reads back a value written by MarshalFrame
func UnmarshalCertIp(r *FrameReader) (CertIp, error) {
	familyByte, err := r.ReadUint8()
	if err != nil {
		return CertIp{}, err
	}
	family := Family(familyByte)
	if family != FamilyIPv4 && family != FamilyIPv6 {
		return CertIp{}, fmt.Errorf("%w: out-of-range address family tag %d", errFrame, familyByte)
	}
	kindByte, err := r.ReadUint8()
	if err != nil {
		return CertIp{}, err
	}
	kind := CertIpKind(kindByte)
	c := CertIp{Family: family, Kind: kind}
	switch kind {
	case CertIpInherit:
	case CertIpSingle:
		c.Prefix, err = UnmarshalIpAddr(r)
	case CertIpRangeKind:
		c.Range, err = UnmarshalIpAddrRange(r)
	default:
		return CertIp{}, fmt.Errorf("%w: out-of-range CertIpKind tag %d", errFrame, kindByte)
	}
	if err != nil {
		return CertIp{}, err
	}
	return c, nil
}

// MarshalFrame writes a CertAs as a kind tag followed by whichever variant
// payload the kind calls for
func (c CertAs) MarshalFrame(w *FrameWriter) {
	w.WriteUint8(uint8(c.Kind))
	switch c.Kind {
	case CertAsSingle:
		w.WriteUint32(c.ID)
	case CertAsRangeKind:
		w.WriteUint32(c.Min)
		w.WriteUint32(c.Max)
	}
}

// UnmarshalCertAs reads back a value written by MarshalFrame
func UnmarshalCertAs(r *FrameReader) (CertAs, error) {
	kindByte, err := r.ReadUint8()
	if err != nil {
		return CertAs{}, err
	}
	kind := CertAsKind(kindByte)
	c := CertAs{Kind: kind}
	switch kind {
	case CertAsInherit:
	case CertAsSingle:
		c.ID, err = r.ReadUint32()
	case CertAsRangeKind:
		if c.Min, err = r.ReadUint32(); err == nil {
			c.Max, err = r.ReadUint32()
		}
	default:
		return CertAs{}, fmt.Errorf("%w: out-of-range CertAsKind tag %d", errFrame, kindByte)
	}
	if err != nil {
		return CertAs{}, err
	}
	return c, nil
}

// MarshalFrame writes a Cert as its two SIA URIs followed by its IPs and
// ASes, each as a uint32 count followed by that many elements
func (c *Cert) MarshalFrame(w *FrameWriter) {
	w.WriteString(c.CARepository)
	w.WriteString(c.Manifest)
	w.WriteUint32(uint32(len(c.IPs)))
	for _, ip := range c.IPs {
		ip.MarshalFrame(w)
	}
	w.WriteUint32(uint32(len(c.ASes)))
	for _, as := range c.ASes {
		as.MarshalFrame(w)
	}
}

// UnmarshalCert reads back a value written by MarshalFrame
func UnmarshalCert(r *FrameReader) (*Cert, error) {
	c := &Cert{}
	var err error
	if c.CARepository, err = r.ReadString(); err != nil {
		return nil, err
	}
	if c.Manifest, err = r.ReadString(); err != nil {
		return nil, err
	}
	nIPs, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	c.IPs = make([]CertIp, nIPs)
	for i := range c.IPs {
		if c.IPs[i], err = UnmarshalCertIp(r); err != nil {
			return nil, err
		}
	}
	nASes, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	c.ASes = make([]CertAs, nASes)
	for i := range c.ASes {
		if c.ASes[i], err = UnmarshalCertAs(r); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MarshalFrame writes a FileAndHash as its filename str followed by its
// hash str
func (f FileAndHash) MarshalFrame(w *FrameWriter) {
	w.WriteString(f.File)
	w.WriteBytes(f.Hash)
}

// UnmarshalFileAndHash reads back a value written by MarshalFrame
func UnmarshalFileAndHash(r *FrameReader) (FileAndHash, error) {
	file, err := r.ReadString()
	if err != nil {
		return FileAndHash{}, err
	}
	hash, err := r.ReadBytes()
	if err != nil {
		return FileAndHash{}, err
	}
	return FileAndHash{File: file, Hash: hash}, nil
}

// MarshalFrame writes a Mft as its source filename, its manifestNumber, and
// its fileList, each element framed by FileAndHash.MarshalFrame
func (m *Mft) MarshalFrame(w *FrameWriter) {
	w.WriteString(m.File)
	w.WriteBigInt(m.ManifestNumber)
	w.WriteUint32(uint32(len(m.Files)))
	for _, f := range m.Files {
		f.MarshalFrame(w)
	}
}

// UnmarshalMft reads back a value written by MarshalFrame
func UnmarshalMft(r *FrameReader) (*Mft, error) {
	m := &Mft{}
	var err error
	if m.File, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.ManifestNumber, err = r.ReadBigInt(); err != nil {
		return nil, err
	}
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	m.Files = make([]FileAndHash, n)
	for i := range m.Files {
		if m.Files[i], err = UnmarshalFileAndHash(r); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MarshalFrame writes a RoaIPAddress as its prefix followed by a
// fixed-width maxLength
func (e RoaIPAddress) MarshalFrame(w *FrameWriter) {
	e.Prefix.MarshalFrame(w)
	w.WriteUint32(uint32(e.MaxLength))
}

// UnmarshalRoaIPAddress reads back a value written by MarshalFrame
func UnmarshalRoaIPAddress(r *FrameReader) (RoaIPAddress, error) {
	prefix, err := UnmarshalIpAddr(r)
	if err != nil {
		return RoaIPAddress{}, err
	}
	maxLength, err := r.ReadUint32()
	if err != nil {
		return RoaIPAddress{}, err
	}
	return RoaIPAddress{Prefix: prefix, MaxLength: int(maxLength)}, nil
}

// MarshalFrame writes a Roa as its source filename, its AS number, and its
// entries, each framed by RoaIPAddress.MarshalFrame
func (ro *Roa) MarshalFrame(w *FrameWriter) {
	w.WriteString(ro.File)
	w.WriteUint32(ro.ASID)
	w.WriteUint32(uint32(len(ro.Entries)))
	for _, e := range ro.Entries {
		e.MarshalFrame(w)
	}
}

// UnmarshalRoa reads back a value written by MarshalFrame
func UnmarshalRoa(r *FrameReader) (*Roa, error) {
	ro := &Roa{}
	var err error
	if ro.File, err = r.ReadString(); err != nil {
		return nil, err
	}
	if ro.ASID, err = r.ReadUint32(); err != nil {
		return nil, err
	}
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	ro.Entries = make([]RoaIPAddress, n)
	for i := range ro.Entries {
		if ro.Entries[i], err = UnmarshalRoaIPAddress(r); err != nil {
			return nil, err
		}
	}
	return ro, nil
}

// MarshalFrame writes a Tal as its source filename, its URIs, and its
// SubjectPublicKeyInfo
func (t *Tal) MarshalFrame(w *FrameWriter) {
	w.WriteString(t.File)
	w.WriteUint32(uint32(len(t.URIs)))
	for _, u := range t.URIs {
		w.WriteString(u)
	}
	w.WriteBytes(t.SubjectPublicKeyInfo)
}

// UnmarshalTal reads back a value written by MarshalFrame
func UnmarshalTal(r *FrameReader) (*Tal, error) {
	t := &Tal{}
	var err error
	if t.File, err = r.ReadString(); err != nil {
		return nil, err
	}
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	t.URIs = make([]string, n)
	for i := range t.URIs {
		if t.URIs[i], err = r.ReadString(); err != nil {
			return nil, err
		}
	}
	if t.SubjectPublicKeyInfo, err = r.ReadBytes(); err != nil {
		return nil, err
	}
	return t, nil
}
