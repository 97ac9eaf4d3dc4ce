// SPDX-FileCopyrightText: 2025 The rpki-client Authors
//
// SPDX-License-Identifier: MIT

package rpki

import (
	"crypto/x509"
	"fmt"

	"github.com/pkg/errors"

	"github.com/robert-scheck/rpki-client/internal/pkcs7"
)

// ParseValidateCMS reads the file at path, optionally verifying it against
// expectedSHA256, decodes the outer CMS SignedData, checks that its declared
// eContentType equals expectedContentOID, and, if parentCA is non-nil,
// performs a one-hop signature check of the embedded signer certificate
// against parentCA's public key. It does not consult any trust store and
// does not build a certificate chain: the RPKI trust model delivers the
// chain externally via manifest traversal, so a library-level chain check
// would be redundant and would spuriously fail on intermediate issuers the
// CMS library has never heard of (spec.md §4.2).
//
// On success it returns the eContent octet string.
func ParseValidateCMS(v *Validator, parentCA *x509.Certificate, path, expectedContentOID string, expectedSHA256 *[32]byte) ([]byte, error) {
	raw, err := readAndHash(path, resolveExpectedDigest(v, expectedSHA256))
	if err != nil {
		return nil, err
	}

	p7, err := pkcs7.Parse(raw)
	if err != nil {
		return nil, newFailure(FailureFormat, path, errors.WithMessage(err, "CMS ContentInfo"))
	}
	if p7.ContentTypeOID() != expectedContentOID {
		return nil, newFailure(FailureProfile, path,
			fmt.Errorf("eContentType %s does not match expected %s", p7.ContentTypeOID(), expectedContentOID))
	}

	if parentCA != nil {
		if len(p7.Signers) != 1 {
			return nil, newFailure(FailureCrypto, path,
				fmt.Errorf("expected exactly one signer, got %d", len(p7.Signers)))
		}
		if err := p7.Verify(parentCA); err != nil {
			return nil, newFailure(FailureCrypto, path, errors.WithMessage(err, "signature verification"))
		}
		if v != nil {
			v.debugf("cms: %s: one-hop signature verified against supplied parent", path)
		}
	}

	return p7.Content, nil
}
