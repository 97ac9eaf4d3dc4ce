// SPDX-FileCopyrightText: Copyright (c) 2015 Andrew Smith
// SPDX-FileCopyrightText: Copyright (c) 2017-2024 The mozilla services project (https://github.com/mozilla-services)
// SPDX-FileCopyrightText: Copyright (c) The go-mail Authors
// SPDX-FileCopyrightText: 2025 The rpki-client Authors
//
// Partially forked from https://github.com/mozilla-services/pkcs7, which in turn is also a fork
// of https://github.com/fullsailor/pkcs7.
// Use of the forked source code is, same as go-mail, governed by a MIT license.
//
// SPDX-License-Identifier: MIT

package pkcs7

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	_ "crypto/sha256" // for crypto.SHA256
	"crypto/x509"
	"encoding/asn1"
	"fmt"
)

// ContentTypeOID returns the eContentType OID carried by the outer
// EncapsulatedContentInfo, as a dotted-decimal string
func (p7 *PKCS7) ContentTypeOID() string {
	return p7.contentType.String()
}

// Parse decodes a BER/DER-encoded CMS ContentInfo wrapping a SignedData, as
// emitted by RPKI signed objects (manifests, ROAs). It does not verify any
// signature; call Verify for that.
func Parse(der []byte) (*PKCS7, error) {
	var ci contentInfo
	rest, err := asn1.Unmarshal(der, &ci)
	if err != nil {
		return nil, fmt.Errorf("pkcs7: malformed ContentInfo: %w", err)
	}
	if len(bytes.TrimRight(rest, "\x00")) != 0 {
		return nil, fmt.Errorf("pkcs7: %d trailing bytes after ContentInfo", len(rest))
	}
	if !ci.ContentType.Equal(OIDSignedData) {
		return nil, fmt.Errorf("pkcs7: unexpected outer contentType %s, want SignedData", ci.ContentType)
	}

	var sd signedData
	// ci.Content.Bytes holds the complete inner element (its own tag and
	// length included): the asn1 package does not descend into RawValue
	// fields tagged "explicit", so the SignedData SEQUENCE header is still
	// present and Unmarshal needs it.
	if _, err := asn1.Unmarshal(ci.Content.Bytes, &sd); err != nil {
		return nil, fmt.Errorf("pkcs7: malformed SignedData: %w", err)
	}
	if len(sd.SignerInfos) != 1 {
		return nil, fmt.Errorf("pkcs7: expected exactly one signerInfo, got %d", len(sd.SignerInfos))
	}
	if len(sd.CRLs) != 0 {
		return nil, fmt.Errorf("pkcs7: crls field must be absent in an RPKI signed object, got %d", len(sd.CRLs))
	}
	certs, err := sd.Certificates.Parse()
	if err != nil {
		return nil, fmt.Errorf("pkcs7: malformed certificates: %w", err)
	}

	if len(sd.ContentInfo.Content.Bytes) == 0 {
		return nil, fmt.Errorf("pkcs7: missing eContent (detached signatures are not a valid RPKI signed object)")
	}
	// sd.ContentInfo.Content.Bytes is, by the same rule, the complete
	// OCTET STRING TLV carrying eContent; unmarshal it to recover the raw
	// octets rather than the OCTET STRING's own tag and length.
	var eContent []byte
	if _, err := asn1.Unmarshal(sd.ContentInfo.Content.Bytes, &eContent); err != nil {
		return nil, fmt.Errorf("pkcs7: malformed eContent: %w", err)
	}

	p7 := &PKCS7{
		Content:      eContent,
		contentType:  sd.ContentInfo.ContentType,
		Certificates: certs,
		Signers:      sd.SignerInfos,
	}
	return p7, nil
}

// Verify checks that the PKCS7 carries exactly one signer, that the signer
// certificate's signature was produced by parent (a direct, one-hop check:
// no chain building, no trust-store lookup, matching the RPKI profile's
// externally-delivered trust model), and that the signed message-digest
// attribute matches the SHA-256 of the embedded content. Fails
// closed on any ambiguity.
func (p7 *PKCS7) Verify(parent *x509.Certificate) error {
	if len(p7.Signers) != 1 {
		return fmt.Errorf("pkcs7: expected exactly one signerInfo, got %d", len(p7.Signers))
	}
	if len(p7.Certificates) != 1 {
		return fmt.Errorf("pkcs7: expected exactly one embedded signer certificate, got %d", len(p7.Certificates))
	}
	signer := p7.Certificates[0]
	if err := signer.CheckSignatureFrom(parent); err != nil {
		return fmt.Errorf("pkcs7: signer certificate was not issued by the supplied parent: %w", err)
	}

	si := p7.Signers[0]
	digest, err := si.messageDigestAttribute()
	if err != nil {
		return err
	}
	h := crypto.SHA256.New()
	h.Write(p7.Content)
	computed := h.Sum(nil)
	if !bytes.Equal(digest, computed) {
		return &MessageDigestMismatchError{ExpectedDigest: digest, ActualDigest: computed}
	}

	signedAttrBytes, err := marshalAttributesForVerification(si.AuthenticatedAttributes)
	if err != nil {
		return err
	}
	return verifySignerSignature(signer, si, signedAttrBytes)
}

// messageDigestAttribute extracts the authenticated messageDigest attribute
func (si signerInfo) messageDigestAttribute() ([]byte, error) {
	for _, attr := range si.AuthenticatedAttributes {
		if !attr.Type.Equal(OIDAttributeMessageDigest) {
			continue
		}
		var digest []byte
		if _, err := asn1.Unmarshal(attr.Value.Bytes, &digest); err != nil {
			return nil, fmt.Errorf("pkcs7: malformed messageDigest attribute: %w", err)
		}
		return digest, nil
	}
	return nil, fmt.Errorf("pkcs7: signerInfo has no messageDigest attribute")
}

// marshalAttributesForVerification re-encodes the authenticated attributes
// as a SET OF for hashing, matching the encoding used when they were signed
func marshalAttributesForVerification(attrs []attribute) ([]byte, error) {
	return marshalAttributes(attrs)
}

// verifySignerSignature verifies si.EncryptedDigest against the hash of
// signedAttrBytes using signer's public key
func verifySignerSignature(signer *x509.Certificate, si signerInfo, signedAttrBytes []byte) error {
	h := crypto.SHA256.New()
	h.Write(signedAttrBytes)
	hashed := h.Sum(nil)

	switch pub := signer.PublicKey.(type) {
	case *rsa.PublicKey:
		if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, hashed, si.EncryptedDigest); err != nil {
			return fmt.Errorf("pkcs7: RSA signature verification failed: %w", err)
		}
		return nil
	case *ecdsa.PublicKey:
		if !ecdsa.VerifyASN1(pub, hashed, si.EncryptedDigest) {
			return fmt.Errorf("pkcs7: ECDSA signature verification failed")
		}
		return nil
	default:
		return fmt.Errorf("pkcs7: unsupported signer public key type %T", pub)
	}
}
