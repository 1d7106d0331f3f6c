package services

import (
	"context"
	"crypto/rsa"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	GoogleDiscoveryURL = "https://accounts.google.com/.well-known/openid-configuration"
)

var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// ExternalIdentity is what a verified ID token says about its subject.
type ExternalIdentity struct {
	Provider      string
	Sub           string
	Email         string
	EmailVerified bool
	Name          string
	HostedDomain  string
}

type OIDCVerifier interface {
	VerifyGoogleIDToken(ctx context.Context, idToken string) (*ExternalIdentity, error)
}

type OIDCConfig struct {
	GoogleClientID string
	// DiscoveryURL and Issuers default to Google's.
	DiscoveryURL string
	Issuers      []string
}

type oidcVerifier struct {
	google *providerVerifier
}

func NewOIDCVerifier(httpClient *http.Client, cfg OIDCConfig) (OIDCVerifier, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if strings.TrimSpace(cfg.GoogleClientID) == "" {
		return nil, fmt.Errorf("GOOGLE_OIDC_CLIENT_ID is required")
	}
	if cfg.DiscoveryURL == "" {
		cfg.DiscoveryURL = GoogleDiscoveryURL
	}
	if len(cfg.Issuers) == 0 {
		cfg.Issuers = googleIssuers
	}
	return &oidcVerifier{
		google: newProviderVerifier(httpClient, cfg.DiscoveryURL, cfg.Issuers, strings.TrimSpace(cfg.GoogleClientID), []string{"RS256"}),
	}, nil
}

func (v *oidcVerifier) VerifyGoogleIDToken(ctx context.Context, idToken string) (*ExternalIdentity, error) {
	claims, err := v.google.verify(ctx, idToken)
	if err != nil {
		return nil, err
	}
	return claimsToExternal("google", claims), nil
}

func constantTimeEq(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ----- internals -----

type oidcDiscovery struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

type providerVerifier struct {
	httpClient   *http.Client
	discoveryURL string
	allowedIss   []string
	requiredAud  string
	algAllow     []string

	jwks *jwksCache

	// discovery is retried until it succeeds once
	discoveryMu sync.Mutex
	discovered  bool
}

func newProviderVerifier(httpClient *http.Client, discoveryURL string, allowedIss []string, requiredAud string, algAllow []string) *providerVerifier {
	return &providerVerifier{
		httpClient:   httpClient,
		discoveryURL: discoveryURL,
		allowedIss:   allowedIss,
		requiredAud:  requiredAud,
		algAllow:     algAllow,
		jwks:         newJWKSCache(httpClient),
	}
}

func (p *providerVerifier) ensureDiscovery(ctx context.Context) error {
	p.discoveryMu.Lock()
	defer p.discoveryMu.Unlock()
	if p.discovered {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.discoveryURL, nil)
	if err != nil {
		return err
	}
	res, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("discovery request failed: %s", res.Status)
	}

	var d oidcDiscovery
	if err := json.NewDecoder(res.Body).Decode(&d); err != nil {
		return err
	}
	if strings.TrimSpace(d.JWKSURI) == "" {
		return fmt.Errorf("discovery missing jwks_uri")
	}
	p.jwks.setURL(d.JWKSURI)
	p.discovered = true
	return nil
}

func (p *providerVerifier) verify(ctx context.Context, tokenString string) (jwt.MapClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("id_token is empty")
	}
	if err := p.ensureDiscovery(ctx); err != nil {
		return nil, fmt.Errorf("oidc discovery error: %w", err)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(p.algAllow),
		jwt.WithAudience(p.requiredAud),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(30*time.Second),
	)
	claims := jwt.MapClaims{}

	tok, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if strings.TrimSpace(kid) == "" {
			return nil, fmt.Errorf("missing kid")
		}
		return p.jwks.getKey(ctx, kid)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid id_token: %w", err)
	}
	if tok == nil || !tok.Valid {
		return nil, fmt.Errorf("invalid id_token")
	}

	iss, _ := claims["iss"].(string)
	if !containsIssuer(p.allowedIss, iss) {
		return nil, fmt.Errorf("issuer mismatch: %q", iss)
	}

	sub, _ := claims["sub"].(string)
	if strings.TrimSpace(sub) == "" {
		return nil, fmt.Errorf("missing sub")
	}

	return claims, nil
}

func containsIssuer(list []string, iss string) bool {
	for _, v := range list {
		if constantTimeEq(v, iss) {
			return true
		}
	}
	return false
}

func claimsToExternal(provider string, c jwt.MapClaims) *ExternalIdentity {
	out := &ExternalIdentity{Provider: provider}
	out.Sub, _ = c["sub"].(string)
	out.Email, _ = c["email"].(string)
	out.EmailVerified = parseBool(c["email_verified"])
	out.HostedDomain, _ = c["hd"].(string)

	if n, _ := c["name"].(string); strings.TrimSpace(n) != "" {
		out.Name = strings.TrimSpace(n)
	} else {
		gn, _ := c["given_name"].(string)
		fn, _ := c["family_name"].(string)
		out.Name = strings.TrimSpace(gn + " " + fn)
	}
	return out
}

func parseBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return strings.EqualFold(x, "true") || x == "1"
	case float64:
		return x != 0
	default:
		return false
	}
}

// ----- JWKS cache (RSA) -----

type jwksCache struct {
	httpClient *http.Client

	mu      sync.RWMutex
	jwksURL string
	keys    map[string]*rsa.PublicKey

	fetchedAt time.Time
	ttl       time.Duration
}

func newJWKSCache(httpClient *http.Client) *jwksCache {
	return &jwksCache{
		httpClient: httpClient,
		keys:       map[string]*rsa.PublicKey{},
		ttl:        6 * time.Hour,
	}
}

func (j *jwksCache) setURL(url string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jwksURL = url
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (j *jwksCache) getKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	j.mu.RLock()
	key := j.keys[kid]
	stale := time.Since(j.fetchedAt) > j.ttl
	url := j.jwksURL
	j.mu.RUnlock()

	if key != nil && !stale {
		return key, nil
	}
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("jwks url not set")
	}

	if err := j.refresh(ctx, url); err != nil {
		// a stale key beats no key
		if key != nil {
			return key, nil
		}
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	key = j.keys[kid]
	if key == nil {
		return nil, fmt.Errorf("kid not found in jwks: %s", kid)
	}
	return key, nil
}

func (j *jwksCache) refresh(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	res, err := j.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("jwks fetch failed: %s", res.Status)
	}

	var set jwkSet
	if err := json.NewDecoder(res.Body).Decode(&set); err != nil {
		return err
	}

	next := map[string]*rsa.PublicKey{}
	for _, k := range set.Keys {
		if strings.TrimSpace(k.Kid) == "" || k.Kty != "RSA" {
			continue
		}
		if pub, err := rsaFromModExp(k.N, k.E); err == nil {
			next[k.Kid] = pub
		}
	}
	if len(next) == 0 {
		return fmt.Errorf("jwks contained no usable keys")
	}

	j.mu.Lock()
	j.keys = next
	j.fetchedAt = time.Now()
	j.mu.Unlock()
	return nil
}

func rsaFromModExp(nB64, eB64 string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(nB64)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(eB64)
	if err != nil {
		return nil, err
	}

	n := new(big.Int).SetBytes(nb)
	e := 0
	for _, b := range eb {
		e = e<<8 + int(b)
	}
	if e == 0 {
		return nil, fmt.Errorf("invalid exponent")
	}
	return &rsa.PublicKey{N: n, E: e}, nil
}
