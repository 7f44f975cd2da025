// internal/auth/assertion.go
package auth

import (
	"crypto"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"golang.org/x/crypto/pkcs12"

	"graphplane/pkg/tenants"
)

// assertionLifetime bounds how long a signed client assertion stays valid.
const assertionLifetime = 10 * time.Minute

// loadCertificate reads the tenant's certificate material. Password-protected
// PKCS#12 bundles (.pfx/.p12) and plain PEM files are both accepted. The file
// is read in one scoped pass; any I/O failure surfaces with the attempted
// path attached.
func loadCertificate(ac tenants.CertificateAuth) (crypto.PrivateKey, *x509.Certificate, error) {
	data, err := os.ReadFile(ac.CertificatePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read certificate at %s: %w", ac.CertificatePath, err)
	}

	password := ""
	if ac.CertificatePassword != nil && !ac.CertificatePassword.IsZero() {
		password, err = ac.CertificatePassword.Resolve()
		if err != nil {
			return nil, nil, fmt.Errorf("resolve certificate password for %s: %w", ac.CertificatePath, err)
		}
	}

	lower := strings.ToLower(ac.CertificatePath)
	if strings.HasSuffix(lower, ".pfx") || strings.HasSuffix(lower, ".p12") {
		key, cert, err := pkcs12.Decode(data, password)
		if err != nil {
			return nil, nil, fmt.Errorf("decode PKCS#12 bundle at %s: %w", ac.CertificatePath, err)
		}
		return key, cert, nil
	}
	return parsePEM(data, ac.CertificatePath)
}

func parsePEM(data []byte, path string) (crypto.PrivateKey, *x509.Certificate, error) {
	var key crypto.PrivateKey
	var cert *x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		switch block.Type {
		case "CERTIFICATE":
			if cert == nil {
				c, err := x509.ParseCertificate(block.Bytes)
				if err != nil {
					return nil, nil, fmt.Errorf("parse certificate in %s: %w", path, err)
				}
				cert = c
			}
		case "PRIVATE KEY", "RSA PRIVATE KEY", "EC PRIVATE KEY":
			k, err := parsePrivateKey(block)
			if err != nil {
				return nil, nil, fmt.Errorf("parse private key in %s: %w", path, err)
			}
			key = k
		}
	}
	if key == nil {
		return nil, nil, fmt.Errorf("no private key found in %s", path)
	}
	return key, cert, nil
}

func parsePrivateKey(block *pem.Block) (crypto.PrivateKey, error) {
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	default:
		return x509.ParsePKCS8PrivateKey(block.Bytes)
	}
}

// signClientAssertion builds the private_key_jwt assertion the token endpoint
// expects from certificate clients. The x5t header carries the certificate
// thumbprint when a certificate accompanies the key.
func signClientAssertion(clientID, audience string, key crypto.PrivateKey, cert *x509.Certificate, now time.Time) (string, error) {
	tok, err := jwt.NewBuilder().
		Issuer(clientID).
		Subject(clientID).
		Audience([]string{audience}).
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(assertionLifetime)).
		JwtID(uuid.NewString()).
		Build()
	if err != nil {
		return "", fmt.Errorf("build client assertion: %w", err)
	}

	hdrs := jws.NewHeaders()
	if cert != nil {
		sum := sha1.Sum(cert.Raw)
		if err := hdrs.Set("x5t", base64.RawURLEncoding.EncodeToString(sum[:])); err != nil {
			return "", err
		}
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, key, jws.WithProtectedHeaders(hdrs)))
	if err != nil {
		return "", fmt.Errorf("sign client assertion: %w", err)
	}
	return string(signed), nil
}
