// Package signer produces the authorization credential attached to
// authenticated backend requests.
//
// Three strategies share the Signer interface:
//
//   - Bearer: the credential is the session token itself.
//   - HMAC:   base64(JSON{email, hash}) where hash is the hex HMAC-SHA256 of
//     the request body keyed by the session token.
//   - JWT:    an HS256 token keyed by the session token carrying the email and
//     the SHA-256 of the request body.
//
// The strategy is a configuration choice; see New.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoToken is returned when signing is attempted without a session.
	ErrNoToken = errors.New("no session token")

	ErrUnknownStrategy = errors.New("unknown signer strategy")

	ErrBadCredential = errors.New("credential does not match session")
)

// Signer builds a credential for email/token over payload. payload may be
// nil; it is then signed as the empty string.
type Signer interface {
	Sign(email, token string, payload []byte) (string, error)
}

const (
	StrategyBearer = "bearer"
	StrategyHMAC   = "hmac"
	StrategyJWT    = "jwt"
)

// New returns the signer for a strategy name.
func New(strategy string) (Signer, error) {
	switch strategy {
	case "", StrategyBearer:
		return Bearer{}, nil
	case StrategyHMAC:
		return HMAC{}, nil
	case StrategyJWT:
		return JWT{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

type Bearer struct{}

func (Bearer) Sign(_, token string, _ []byte) (string, error) {
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

type HMAC struct{}

type hmacEnvelope struct {
	Email string `json:"email"`
	Hash  string `json:"hash"`
}

func (HMAC) Sign(email, token string, payload []byte) (string, error) {
	if token == "" {
		return "", ErrNoToken
	}

	mac := hmac.New(sha256.New, []byte(token))
	mac.Write(payload)

	b, err := json.Marshal(hmacEnvelope{Email: email, Hash: hex.EncodeToString(mac.Sum(nil))})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// JWT signs short-lived HS256 tokens. Now defaults to time.Now.
type JWT struct {
	Now      func() time.Time
	Validity time.Duration
}

// Claims carried by JWT credentials.
type Claims struct {
	jwt.RegisteredClaims
	BodyHash string `json:"body_sha256"`
}

func (j JWT) Sign(email, token string, payload []byte) (string, error) {
	if token == "" {
		return "", ErrNoToken
	}

	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	validity := j.Validity
	if validity <= 0 {
		validity = time.Minute
	}

	sum := sha256.Sum256(payload)
	issued := now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(validity)),
		},
		BodyHash: hex.EncodeToString(sum[:]),
	})

	return t.SignedString([]byte(token))
}

// ParseJWT validates a JWT credential against the session token and returns
// its claims.
func ParseJWT(credential, token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(credential, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(token), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// Verify checks that credential is what s would produce for email/token over
// payload. JWT credentials are validated by signature and claims since they
// embed the issue time.
func Verify(s Signer, email, token string, payload []byte, credential string) error {
	if token == "" {
		return ErrNoToken
	}

	switch s.(type) {
	case JWT, *JWT:
		claims, err := ParseJWT(credential, token)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadCredential, err)
		}
		sum := sha256.Sum256(payload)
		if claims.Subject != email || claims.BodyHash != hex.EncodeToString(sum[:]) {
			return ErrBadCredential
		}
		return nil
	}

	want, err := s.Sign(email, token, payload)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(want), []byte(credential)) {
		return ErrBadCredential
	}
	return nil
}
