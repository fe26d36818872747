package pay

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Credential file names expected under the credentials directory. The merchant
// key is required; the platform public key is only needed to verify callbacks.
const (
	merchantKeyFile       = "apiclient_key.pem"
	platformPublicKeyFile = "wechatpay_public_key.pem"
)

// LoadMerchantKey reads the merchant's RSA private key from dir. Both PKCS#8
// and PKCS#1 encodings are accepted.
func LoadMerchantKey(dir string) (*rsa.PrivateKey, error) {
	path := filepath.Join(dir, merchantKeyFile)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading merchant key: %w", err)
	}
	return ParsePrivateKey(raw)
}

// ParsePrivateKey decodes a PEM-encoded RSA private key.
func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block in private key material")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is %T, want RSA", key)
		}
		return rsaKey, nil
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return key, nil
}

// LoadPlatformPublicKey reads the provider's public key from dir. A missing
// file is not an error: the client can still sign requests, it just cannot
// verify callbacks.
func LoadPlatformPublicKey(dir string) (*rsa.PublicKey, error) {
	path := filepath.Join(dir, platformPublicKeyFile)
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading platform public key: %w", err)
	}
	return ParsePublicKey(raw)
}

// ParsePublicKey decodes a PEM-encoded RSA public key, accepting either a
// bare PUBLIC KEY block or an X.509 certificate.
func ParsePublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block in public key material")
	}

	if block.Type == "CERTIFICATE" {
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parsing certificate: %w", err)
		}
		rsaKey, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("certificate key is %T, want RSA", cert.PublicKey)
		}
		return rsaKey, nil
	}

	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is %T, want RSA", key)
	}
	return rsaKey, nil
}
