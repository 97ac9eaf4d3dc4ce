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

	"github.com/robert-scheck/rpki-client/internal/pkcs7"
)

// buildSignedCMS issues a CA key pair and an EE key pair signed by the CA,
// signs content with the EE key, and returns the outer CMS DER together with
// the CA certificate to use as parentCA.
func buildSignedCMS(t *testing.T, content []byte) ([]byte, *x509.Certificate) {
	t.Helper()
	return buildCMSFixtureWithOID(t, content, pkcs7.OIDData)
}

// buildCMSFixtureWithOID issues a CA key pair and an EE key pair signed by
// the CA, signs content under the given eContentType OID, and returns the
// outer CMS DER together with the CA certificate to use as parentCA. It
// backs buildSignedCMS and the manifest/ROA fixtures that need a
// non-generic eContentType.
func buildCMSFixtureWithOID(t *testing.T, content []byte, oid asn1.ObjectIdentifier) ([]byte, *x509.Certificate) {
	t.Helper()
	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("ecdsa.GenerateKey(ca) failed: %s", err)
	}
	caTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		BasicConstraintsValid: true,
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &caKey.PublicKey, caKey)
	if err != nil {
		t.Fatalf("x509.CreateCertificate(ca) failed: %s", err)
	}
	caCert, err := x509.ParseCertificate(caDER)
	if err != nil {
		t.Fatalf("x509.ParseCertificate(ca) failed: %s", err)
	}

	eeKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("ecdsa.GenerateKey(ee) failed: %s", err)
	}
	eeTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "ee"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	eeDER, err := x509.CreateCertificate(rand.Reader, eeTmpl, caTmpl, &eeKey.PublicKey, caKey)
	if err != nil {
		t.Fatalf("x509.CreateCertificate(ee) failed: %s", err)
	}
	eeCert, err := x509.ParseCertificate(eeDER)
	if err != nil {
		t.Fatalf("x509.ParseCertificate(ee) failed: %s", err)
	}

	sd, err := pkcs7.NewSignedDataWithContentType(content, oid)
	if err != nil {
		t.Fatalf("pkcs7.NewSignedDataWithContentType() failed: %s", err)
	}
	if err := sd.AddSigner(eeCert, eeKey, pkcs7.SignerInfoConfig{}); err != nil {
		t.Fatalf("AddSigner() failed: %s", err)
	}
	der, err := sd.Finish()
	if err != nil {
		t.Fatalf("Finish() failed: %s", err)
	}
	return der, caCert
}

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "object.ber")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("os.WriteFile() failed: %s", err)
	}
	return path
}

func TestParseValidateCMSOneHop(t *testing.T) {
	content := []byte("hello rpki")
	der, caCert := buildSignedCMS(t, content)
	path := writeTempFile(t, der)

	eContent, err := ParseValidateCMS(nil, caCert, path, pkcs7.OIDData.String(), nil)
	if err != nil {
		t.Fatalf("ParseValidateCMS() failed: %s", err)
	}
	if string(eContent) != string(content) {
		t.Errorf("eContent = %q, want %q", eContent, content)
	}
}

func TestParseValidateCMSRejectsOIDMismatch(t *testing.T) {
	der, caCert := buildSignedCMS(t, []byte("x"))
	path := writeTempFile(t, der)

	_, err := ParseValidateCMS(nil, caCert, path, "1.2.840.113549.1.9.16.1.24", nil)
	if err == nil {
		t.Fatal("expected rejection of eContentType mismatch")
	}
}

func TestParseValidateCMSRejectsWrongParent(t *testing.T) {
	der, _ := buildSignedCMS(t, []byte("x"))
	path := writeTempFile(t, der)

	otherKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("ecdsa.GenerateKey() failed: %s", err)
	}
	otherTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(9),
		Subject:               pkix.Name{CommonName: "unrelated"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	otherDER, err := x509.CreateCertificate(rand.Reader, otherTmpl, otherTmpl, &otherKey.PublicKey, otherKey)
	if err != nil {
		t.Fatalf("x509.CreateCertificate() failed: %s", err)
	}
	otherCert, err := x509.ParseCertificate(otherDER)
	if err != nil {
		t.Fatalf("x509.ParseCertificate() failed: %s", err)
	}

	_, err = ParseValidateCMS(nil, otherCert, path, pkcs7.OIDData.String(), nil)
	if err == nil {
		t.Fatal("expected rejection of a CMS signed by a certificate not issued by the supplied parent")
	}
}

func TestParseValidateCMSNoParentSkipsVerification(t *testing.T) {
	content := []byte("unverified")
	der, _ := buildSignedCMS(t, content)
	path := writeTempFile(t, der)

	eContent, err := ParseValidateCMS(nil, nil, path, pkcs7.OIDData.String(), nil)
	if err != nil {
		t.Fatalf("ParseValidateCMS() with nil parentCA failed: %s", err)
	}
	if string(eContent) != string(content) {
		t.Errorf("eContent = %q, want %q", eContent, content)
	}
}
