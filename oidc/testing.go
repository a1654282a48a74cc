package oidc

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"
)

// TestGenerateRSAKeys will generate a test RSA pub/priv key pair wrapped as
// JSON web keys sharing the given key id.
func TestGenerateRSAKeys(t *testing.T, keyId string) (pub, priv jose.JSONWebKey) {
	t.Helper()
	require := require.New(t)
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(err)
	priv = jose.JSONWebKey{
		Key:       privateKey,
		KeyID:     keyId,
		Algorithm: "RS256",
		Use:       "sig",
	}
	pub = priv.Public()
	return pub, priv
}

// TestGenerateECKeys will generate a test ECDSA P-256 pub/priv key pair
// wrapped as JSON web keys sharing the given key id.
func TestGenerateECKeys(t *testing.T, keyId string) (pub, priv jose.JSONWebKey) {
	t.Helper()
	require := require.New(t)
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(err)
	priv = jose.JSONWebKey{
		Key:       privateKey,
		KeyID:     keyId,
		Algorithm: "ES256",
		Use:       "sig",
	}
	pub = priv.Public()
	return pub, priv
}

// TestSignJWT will bundle the provided claims into a test signed JWT.
func TestSignJWT(t *testing.T, key jose.JSONWebKey, alg string, claims jwt.Claims, privateClaims interface{}) string {
	t.Helper()
	require := require.New(t)

	sig, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.SignatureAlgorithm(alg), Key: key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(err)

	builder := jwt.Signed(sig).Claims(claims)
	if privateClaims != nil {
		builder = builder.Claims(privateClaims)
	}
	raw, err := builder.Serialize()
	require.NoError(err)

	return raw
}

// testDefaultJWT is internally helpful, but for now we won't export it.
func testDefaultJWT(t *testing.T, key jose.JSONWebKey, alg string, nonce string, additionalClaims map[string]interface{}) string {
	t.Helper()
	now := jwt.NewNumericDate(time.Now())
	claims := jwt.Claims{
		Issuer:    "https://example.com/",
		IssuedAt:  now,
		NotBefore: now,
		Expiry:    jwt.NewNumericDate(time.Now().Add(time.Minute)),
		Audience:  []string{"www.example.com"},
		Subject:   "alice@example.com",
	}
	privateClaims := map[string]interface{}{}
	if nonce != "" {
		privateClaims["nonce"] = nonce
	}
	for k, v := range additionalClaims {
		privateClaims[k] = v
	}
	return TestSignJWT(t, key, alg, claims, privateClaims)
}

// TestGenerateCA will generate a test x509 CA cert encoded in a PEM format.
func TestGenerateCA(t *testing.T, hosts []string) string {
	t.Helper()
	require := require.New(t)

	priv, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(err)

	// ECDSA, ED25519 and RSA subject keys should have the DigitalSignature
	// KeyUsage bits set in the x509.Certificate template
	keyUsage := x509.KeyUsageDigitalSignature

	validFor := 2 * time.Minute
	notBefore := time.Now()
	notAfter := notBefore.Add(validFor)

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	require.NoError(err)

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"Acme Co"},
		},
		NotBefore: notBefore,
		NotAfter:  notAfter,

		KeyUsage:              keyUsage,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	template.IsCA = true
	template.KeyUsage |= x509.KeyUsageCertSign

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	require.NoError(err)

	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: derBytes}))
}
