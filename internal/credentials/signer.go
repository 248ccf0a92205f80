package credentials

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var vcContext = []string{"https://www.w3.org/2018/credentials/v1"}

// VCClaims is the JWT payload of a verifiable credential.
type VCClaims struct {
	VC VCBody `json:"vc"`
	jwt.RegisteredClaims
}

// VCBody follows the W3C VC data model's JWT encoding.
type VCBody struct {
	Context           []string `json:"@context"`
	Type              []string `json:"type"`
	CredentialSubject Subject  `json:"credentialSubject"`
}

// Signer signs and verifies credentials with an Ed25519 key.
type Signer struct {
	issuer string
	key    ed25519.PrivateKey
	pub    ed25519.PublicKey
}

// NewSigner derives the signing key from a 32 byte seed.
func NewSigner(seed []byte, issuerDID string) (*Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("credentials: seed must be %d bytes", ed25519.SeedSize)
	}
	if issuerDID == "" {
		return nil, errors.New("credentials: issuer did required")
	}
	key := ed25519.NewKeyFromSeed(seed)
	return &Signer{issuer: issuerDID, key: key, pub: key.Public().(ed25519.PublicKey)}, nil
}

// Issuer returns the DID placed in the iss claim.
func (s *Signer) Issuer() string { return s.issuer }

// Sign produces a compact EdDSA JWT for the credential.
func (s *Signer) Sign(id string, subject Subject, at time.Time) (string, error) {
	claims := VCClaims{
		VC: VCBody{
			Context:           vcContext,
			Type:              []string{"VerifiableCredential", "CertificateCredential"},
			CredentialSubject: subject,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "urn:uuid:" + id,
			Issuer:    s.issuer,
			Subject:   subject.StudentID.String(),
			IssuedAt:  jwt.NewNumericDate(at),
			NotBefore: jwt.NewNumericDate(at),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["typ"] = "JWT"
	return token.SignedString(s.key)
}

// Verify checks the signature and issuer of a credential token.
func (s *Signer) Verify(raw string) (VCClaims, error) {
	var claims VCClaims
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return s.pub, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return VCClaims{}, err
	}
	if !parsed.Valid {
		return VCClaims{}, errors.New("credentials: invalid token")
	}
	return claims, nil
}
