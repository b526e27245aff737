// Package jwt issues and verifies HS256 session tokens for dashboard users.
//
// Tokens carry the user id in "sub" and the account email in "email". The
// middleware verifies the bearer token and stores the Claims in the request
// context where handlers read them with FromContext.
package jwt

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	headerType      = "JWT"
	headerAlgorithm = "HS256"
)

type header struct {
	Type      string `json:"typ"`
	Algorithm string `json:"alg"`
}

// Claims is the payload of a dashboard session token.
type Claims struct {
	Subject   string `json:"sub"`
	Email     string `json:"email,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	NotBefore int64  `json:"nbf,omitempty"`
}

func (c Claims) validAt(now time.Time) error {
	if c.Subject == "" {
		return ErrMissingSubject
	}
	unix := now.Unix()
	if c.ExpiresAt > 0 && unix > c.ExpiresAt {
		return ErrExpiredToken
	}
	if c.NotBefore > 0 && unix < c.NotBefore {
		return ErrInvalidToken
	}
	return nil
}

// Service signs and parses tokens with a shared secret.
type Service struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithTTL sets the lifetime of issued tokens. Zero disables expiry.
func WithTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) { s.ttl = ttl }
}

// WithClock overrides the time source used for issuing and validation.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(secret string, opts ...ServiceOption) (*Service, error) {
	if secret == "" {
		return nil, ErrMissingSigningKey
	}
	s := &Service{key: []byte(secret), ttl: 24 * time.Hour, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a token for the given subject and email.
func (s *Service) Issue(subject, email string) (string, error) {
	if subject == "" {
		return "", ErrMissingSubject
	}
	now := s.now()
	c := Claims{Subject: subject, Email: email, IssuedAt: now.Unix()}
	if s.ttl > 0 {
		c.ExpiresAt = now.Add(s.ttl).Unix()
	}
	return s.Generate(c)
}

// Generate signs arbitrary claims.
func (s *Service) Generate(c Claims) (string, error) {
	h, err := json.Marshal(header{Type: headerType, Algorithm: headerAlgorithm})
	if err != nil {
		return "", fmt.Errorf("jwt: marshal header: %w", err)
	}
	body, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("jwt: marshal claims: %w", err)
	}
	payload := encode(h) + "." + encode(body)
	return payload + "." + s.sign(payload), nil
}

// Parse verifies the signature, algorithm and time bounds of token.
func (s *Service) Parse(token string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Claims{}, ErrInvalidToken
	}

	payload := parts[0] + "." + parts[1]
	if subtle.ConstantTimeCompare([]byte(parts[2]), []byte(s.sign(payload))) != 1 {
		return Claims{}, ErrInvalidSignature
	}

	raw, err := decode(parts[0])
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	var h header
	if err := json.Unmarshal(raw, &h); err != nil {
		return Claims{}, ErrInvalidToken
	}
	if h.Algorithm != headerAlgorithm {
		return Claims{}, ErrUnexpectedSigningMethod
	}

	raw, err = decode(parts[1])
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	var c Claims
	if err := json.Unmarshal(raw, &c); err != nil {
		return Claims{}, ErrInvalidToken
	}
	if err := c.validAt(s.now()); err != nil {
		return Claims{}, err
	}
	return c, nil
}

func (s *Service) sign(payload string) string {
	m := hmac.New(sha256.New, s.key)
	m.Write([]byte(payload))
	return encode(m.Sum(nil))
}

func encode(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

func decode(s string) ([]byte, error) { return base64.RawURLEncoding.DecodeString(s) }
