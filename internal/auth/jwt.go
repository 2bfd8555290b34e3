// Package auth turns bearer tokens into user ids.
package auth

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"os"
	"strings"

	"github.com/chepyr/go-todo-tracker/shared/models"
	"github.com/golang-jwt/jwt/v5"
)

// Authenticator resolves a bearer token to the id of the user it was issued to.
// Failures wrap models.ErrUnauthorized.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (userID string, err error)
}

// JWTAuthenticator verifies tokens issued by the identity provider.
type JWTAuthenticator struct {
	key  any
	opts []jwt.ParserOption
}

func parserOptions(method, audience, issuer string) []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method}),
		jwt.WithExpirationRequired(),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return opts
}

// NewHMAC verifies HS256 tokens signed with a shared secret.
func NewHMAC(secret []byte, audience, issuer string) *JWTAuthenticator {
	return &JWTAuthenticator{
		key:  secret,
		opts: parserOptions(jwt.SigningMethodHS256.Alg(), audience, issuer),
	}
}

// NewEd25519 verifies EdDSA tokens against the provider's public key.
func NewEd25519(pub ed25519.PublicKey, audience, issuer string) *JWTAuthenticator {
	return &JWTAuthenticator{
		key:  pub,
		opts: parserOptions(jwt.SigningMethodEdDSA.Alg(), audience, issuer),
	}
}

// LoadEd25519PublicKey reads a PEM encoded Ed25519 public key.
func LoadEd25519PublicKey(path string) (ed25519.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}
	key, err := jwt.ParseEdPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	pub, ok := key.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key in %s is not ed25519", path)
	}
	return pub, nil
}

func (a *JWTAuthenticator) Authenticate(_ context.Context, token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.key, nil
	}, a.opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}
	if !parsed.Valid {
		return "", fmt.Errorf("%w: invalid token", models.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", models.ErrUnauthorized)
	}
	return claims.Subject, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
