package services

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type oidcServer struct {
	srv       *httptest.Server
	key       *rsa.PrivateKey
	kid       string
	discovery atomic.Int32
	failFirst atomic.Bool
	jwksFetch atomic.Int32
}

func newOIDCServer(t *testing.T) *oidcServer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	idp := &oidcServer{key: key, kid: "k1"}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		idp.discovery.Add(1)
		if idp.failFirst.CompareAndSwap(true, false) {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":   "https://accounts.google.com",
			"jwks_uri": idp.srv.URL + "/jwks",
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		idp.jwksFetch.Add(1)
		pub := idp.key.PublicKey
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": idp.kid,
				"alg": "RS256",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			}},
		})
	})
	idp.srv = httptest.NewServer(mux)
	t.Cleanup(idp.srv.Close)
	return idp
}

func (idp *oidcServer) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = idp.kid
	s, err := tok.SignedString(idp.key)
	require.NoError(t, err)
	return s
}

func validClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":            "https://accounts.google.com",
		"aud":            "client-123",
		"sub":            "sub-1",
		"email":          "stu@school.edu",
		"email_verified": "true",
		"hd":             "school.edu",
		"given_name":     "Stu",
		"family_name":    "Dent",
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
}

func newTestVerifier(t *testing.T, idp *oidcServer) OIDCVerifier {
	t.Helper()
	v, err := NewOIDCVerifier(idp.srv.Client(), OIDCConfig{
		GoogleClientID: "client-123",
		DiscoveryURL:   idp.srv.URL + "/.well-known/openid-configuration",
	})
	require.NoError(t, err)
	return v
}

func TestOIDCVerifierAcceptsValidToken(t *testing.T) {
	idp := newOIDCServer(t)
	v := newTestVerifier(t, idp)

	ident, err := v.VerifyGoogleIDToken(context.Background(), idp.sign(t, validClaims()))
	require.NoError(t, err)
	require.Equal(t, &ExternalIdentity{
		Provider:      "google",
		Sub:           "sub-1",
		Email:         "stu@school.edu",
		EmailVerified: true,
		Name:          "Stu Dent",
		HostedDomain:  "school.edu",
	}, ident)

	_, err = v.VerifyGoogleIDToken(context.Background(), idp.sign(t, validClaims()))
	require.NoError(t, err)
	require.EqualValues(t, 1, idp.discovery.Load(), "discovery is cached")
	require.EqualValues(t, 1, idp.jwksFetch.Load(), "keys are cached")
}

func TestOIDCVerifierRejects(t *testing.T) {
	idp := newOIDCServer(t)
	v := newTestVerifier(t, idp)

	cases := map[string]func(jwt.MapClaims){
		"wrong audience": func(c jwt.MapClaims) { c["aud"] = "someone-else" },
		"wrong issuer":   func(c jwt.MapClaims) { c["iss"] = "https://evil.example.com" },
		"expired":        func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() },
		"missing sub":    func(c jwt.MapClaims) { delete(c, "sub") },
		"missing exp":    func(c jwt.MapClaims) { delete(c, "exp") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := validClaims()
			mutate(c)
			_, err := v.VerifyGoogleIDToken(context.Background(), idp.sign(t, c))
			require.Error(t, err)
		})
	}

	t.Run("unknown kid", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims())
		tok.Header["kid"] = "nope"
		s, err := tok.SignedString(idp.key)
		require.NoError(t, err)
		_, err = v.VerifyGoogleIDToken(context.Background(), s)
		require.Error(t, err)
	})

	t.Run("hmac token", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
		tok.Header["kid"] = idp.kid
		s, err := tok.SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = v.VerifyGoogleIDToken(context.Background(), s)
		require.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := v.VerifyGoogleIDToken(context.Background(), "")
		require.Error(t, err)
	})
}

func TestOIDCVerifierRetriesDiscovery(t *testing.T) {
	idp := newOIDCServer(t)
	idp.failFirst.Store(true)
	v := newTestVerifier(t, idp)

	_, err := v.VerifyGoogleIDToken(context.Background(), idp.sign(t, validClaims()))
	require.Error(t, err)

	_, err = v.VerifyGoogleIDToken(context.Background(), idp.sign(t, validClaims()))
	require.NoError(t, err)
	require.EqualValues(t, 2, idp.discovery.Load())
}

func TestNewOIDCVerifierRequiresClientID(t *testing.T) {
	_, err := NewOIDCVerifier(nil, OIDCConfig{})
	require.Error(t, err)
}
