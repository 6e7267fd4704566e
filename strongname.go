// Copyright 2024 The clrmeta Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

package clrmeta

import (
	"crypto/sha1" //nolint:gosec // ECMA-335 strong-name hashing is defined over SHA-1/SHA-256; SHA-1 is the legacy, still-required algorithm.
	"crypto/sha256"

	"go.mozilla.org/pkcs7"

	"github.com/dotnetmd/clrmeta/errs"
)

// Strong-name hash algorithm identifiers, ECMA §II.23.1.1 / CorHdr.h
// AssemblyHashAlgorithm.
const (
	HashAlgorithmNone   = 0x0000
	HashAlgorithmSHA1   = 0x8004
	HashAlgorithmSHA256 = 0x800c
)

// HashAssembly computes the strong-name hash of data (a built Directory's
// bytes, or a full PE image with its strong-name signature slot zeroed)
// under algorithm, matching AssemblyDefinition.HashAlgorithm.
func HashAssembly(algorithm uint32, data []byte) ([]byte, error) {
	switch algorithm {
	case HashAlgorithmSHA1:
		sum := sha1.Sum(data) //nolint:gosec
		return sum[:], nil
	case HashAlgorithmSHA256:
		sum := sha256.Sum256(data)
		return sum[:], nil
	default:
		return nil, errs.New(errs.InvalidSignature, algorithm, "unsupported assembly hash algorithm")
	}
}

// SignStrongName produces a detached PKCS#7 SignedData envelope over hash,
// using a signer the caller has already attached a certificate and key to
// via pkcs7.NewSignedData(hash) and AddSigner. Actual RSA key-pair strong
// naming (the CLR's own sn.exe scheme) is out of scope; this is for
// depositing an externally verifiable signature alongside a built
// directory, the way a side-by-side Authenticode catalog does for a PE.
func SignStrongName(signer *pkcs7.SignedData) ([]byte, error) {
	der, err := signer.Finish()
	if err != nil {
		return nil, errs.Wrap(err, errs.InvalidSignature, "finishing strong-name signature")
	}
	return der, nil
}

// NewStrongNameSigner starts a detached PKCS#7 SignedData envelope over
// hash; the caller must still call AddSigner with its certificate and key
// before passing the result to SignStrongName.
func NewStrongNameSigner(hash []byte) (*pkcs7.SignedData, error) {
	sd, err := pkcs7.NewSignedData(hash)
	if err != nil {
		return nil, errs.Wrap(err, errs.InvalidSignature, "initializing strong-name signer")
	}
	sd.Detach()
	return sd, nil
}
