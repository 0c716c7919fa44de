package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coreos/go-oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// mockKeySet satisfies oidc.KeySet to bypass signature verification in
// tests, the same way the rest of this codebase's OIDC tests do.
type mockKeySet struct{}

func (mockKeySet) VerifySignature(ctx context.Context, jwtToken string) ([]byte, error) {
	parts := strings.Split(jwtToken, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed jwt")
	}
	return base64.RawURLEncoding.DecodeString(parts[1])
}

func fakeToken(t *testing.T, issuer, clientID, subject string) string {
	t.Helper()
	claims := map[string]any{
		"iss": issuer,
		"aud": clientID,
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Add(-time.Minute).Unix(),
	}
	header := map[string]any{"alg": "RS256", "typ": "JWT", "kid": "test-key"}

	headerBytes, err := json.Marshal(header)
	require.NoError(t, err)
	payloadBytes, err := json.Marshal(claims)
	require.NoError(t, err)

	encodedHeader := base64.RawURLEncoding.EncodeToString(headerBytes)
	encodedPayload := base64.RawURLEncoding.EncodeToString(payloadBytes)
	encodedSignature := base64.RawURLEncoding.EncodeToString([]byte("fakesignature"))
	return encodedHeader + "." + encodedPayload + "." + encodedSignature
}

func TestRequireAuth_BearerToken_ResolvesPrincipal(t *testing.T) {
	issuer := "https://test-issuer.example"
	clientID := "test-client"

	verifier := oidc.NewVerifier(issuer, mockKeySet{}, &oidc.Config{
		ClientID:          clientID,
		SkipClientIDCheck: true,
	})

	a := &Auth{apiVerifier: verifier, logger: noopLogger{}}

	token := fakeToken(t, issuer, clientID, "operator-7")
	req := httptest.NewRequest(http.MethodPost, "/v1/workflows", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	wantPrincipal := PrincipalFromSubject("operator-7")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		assert.True(t, ok)
		assert.Equal(t, wantPrincipal, p)
		w.WriteHeader(http.StatusOK)
	})

	a.RequireAuth(next).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuth_MissingBearer_Rejected(t *testing.T) {
	a := &Auth{}
	req := httptest.NewRequest(http.MethodPost, "/v1/workflows", nil)
	rec := httptest.NewRecorder()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler should not run without a bearer token")
	})

	a.RequireAuth(next).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_DevModeBypass(t *testing.T) {
	devPrincipal := PrincipalFromSubject("dev")
	a := &Auth{cfg: Config{DevModeBypass: true, DevPrincipal: devPrincipal}}

	req := httptest.NewRequest(http.MethodPost, "/v1/workflows", nil)
	rec := httptest.NewRecorder()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		assert.True(t, ok)
		assert.Equal(t, devPrincipal, p)
		w.WriteHeader(http.StatusOK)
	})

	a.RequireAuth(next).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
