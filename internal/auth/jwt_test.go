package auth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chepyr/go-todo-tracker/shared/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "super_secret_for_tests_at_least_32_chars"

func signHS(t *testing.T, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestHMAC_Authenticate(t *testing.T) {
	a := NewHMAC([]byte(testSecret), "", "")
	ctx := context.Background()
	future := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name    string
		token   string
		wantSub string
	}{
		{
			name:    "valid",
			token:   signHS(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1", "exp": future}),
			wantSub: "user-1",
		},
		{
			name:  "expired",
			token: signHS(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(-time.Minute).Unix()}),
		},
		{
			name:  "missing exp",
			token: signHS(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"}),
		},
		{
			name:  "missing sub",
			token: signHS(t, jwt.SigningMethodHS256, jwt.MapClaims{"exp": future}),
		},
		{
			name:  "unexpected algorithm",
			token: signHS(t, jwt.SigningMethodHS512, jwt.MapClaims{"sub": "user-1", "exp": future}),
		},
		{
			name:  "garbage",
			token: "obviously.invalid.token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := a.Authenticate(ctx, tt.token)
			if tt.wantSub == "" {
				assert.ErrorIs(t, err, models.ErrUnauthorized)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSub, sub)
		})
	}
}

func TestHMAC_WrongSecret(t *testing.T) {
	a := NewHMAC([]byte("a_completely_different_secret_value"), "", "")
	token := signHS(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix()})

	_, err := a.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestHMAC_AudienceAndIssuer(t *testing.T) {
	a := NewHMAC([]byte(testSecret), "todo-api", "https://id.example")
	exp := time.Now().Add(time.Hour).Unix()

	good := signHS(t, jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1", "exp": exp, "aud": "todo-api", "iss": "https://id.example",
	})
	sub, err := a.Authenticate(context.Background(), good)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)

	wrongAud := signHS(t, jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1", "exp": exp, "aud": "other", "iss": "https://id.example",
	})
	_, err = a.Authenticate(context.Background(), wrongAud)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	wrongIss := signHS(t, jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1", "exp": exp, "aud": "todo-api", "iss": "https://evil.example",
	})
	_, err = a.Authenticate(context.Background(), wrongIss)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestEd25519_FromPEM(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "idp.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600))

	loaded, err := LoadEd25519PublicKey(path)
	require.NoError(t, err)
	a := NewEd25519(loaded, "", "")

	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
		"sub": "user-9", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(priv)
	require.NoError(t, err)

	sub, err := a.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-9", sub)

	hsToken := signHS(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-9", "exp": time.Now().Add(time.Hour).Unix()})
	_, err = a.Authenticate(context.Background(), hsToken)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestLoadEd25519PublicKey_Missing(t *testing.T) {
	_, err := LoadEd25519PublicKey(filepath.Join(t.TempDir(), "nope.pem"))
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", tok)

	tok, ok = BearerToken("bearer   abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	for _, bad := range []string{"", "Bearer", "Bearer ", "Basic abc", "abc.def"} {
		_, ok := BearerToken(bad)
		assert.False(t, ok, bad)
	}
}

func TestIssueHMAC_RoundTrip(t *testing.T) {
	token, err := IssueHMAC([]byte(testSecret), "user-7", time.Hour, "todo-api", "dev")
	require.NoError(t, err)

	sub, err := NewHMAC([]byte(testSecret), "todo-api", "dev").Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-7", sub)

	expired, err := IssueHMAC([]byte(testSecret), "user-7", -time.Minute, "", "")
	require.NoError(t, err)
	_, err = NewHMAC([]byte(testSecret), "", "").Authenticate(context.Background(), expired)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = IssueHMAC([]byte(testSecret), "", time.Hour, "", "")
	assert.Error(t, err)
}
