package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
)

const tokenCacheKey = "sheets:bearer_token"

// expirySkew is subtracted from the token lifetime so a token is refreshed
// before the API starts rejecting it.
const expirySkew = 60 * time.Second

// ServiceTokenProvider exchanges a signed JWT assertion for a bearer token at
// the provider's token endpoint and caches it until shortly before expiry.
// It replaces any module-level token state: expiry lives inside the provider
// and is testable.
type ServiceTokenProvider struct {
	client        *http.Client
	tokenEndpoint string
	email         string
	signingKey    interface{}
	scope         string
	tokens        *cache.Cache

	mu sync.Mutex
}

// NewServiceTokenProvider builds a provider from a service-account email and
// its PEM-encoded RSA private key.
func NewServiceTokenProvider(tokenEndpoint, email, privateKeyPEM string) (*ServiceTokenProvider, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account key: %w", err)
	}

	return &ServiceTokenProvider{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		tokenEndpoint: tokenEndpoint,
		email:         email,
		signingKey:    key,
		scope:         "https://www.googleapis.com/auth/spreadsheets",
		tokens:        cache.New(cache.NoExpiration, 10*time.Minute),
	}, nil
}

var _ TokenProvider = (*ServiceTokenProvider)(nil)

// Token returns a cached bearer token, exchanging a fresh assertion when the
// cached one is missing or about to expire. Safe for concurrent use; the
// mutex keeps parallel callers from racing duplicate exchanges.
func (p *ServiceTokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cached, found := p.tokens.Get(tokenCacheKey); found {
		return cached.(string), nil
	}

	token, ttl, err := p.exchange(ctx)
	if err != nil {
		return "", err
	}

	if ttl > expirySkew {
		p.tokens.Set(tokenCacheKey, token, ttl-expirySkew)
	}
	return token, nil
}

// exchange signs a JWT assertion and posts it to the token endpoint
func (p *ServiceTokenProvider) exchange(ctx context.Context) (string, time.Duration, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   p.email,
		"scope": p.scope,
		"aud":   p.tokenEndpoint,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}

	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.signingKey)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign assertion: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, "POST", p.tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", 0, fmt.Errorf("token endpoint returned HTTP %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", 0, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", 0, fmt.Errorf("token endpoint returned no access_token")
	}

	return tokenResp.AccessToken, time.Duration(tokenResp.ExpiresIn) * time.Second, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// StaticTokenProvider returns a fixed token; used by tests and by operators
// running against an API emulator.
type StaticTokenProvider struct {
	Value string
}

func (p *StaticTokenProvider) Token(ctx context.Context) (string, error) {
	if p.Value == "" {
		return "", fmt.Errorf("no token configured")
	}
	return p.Value, nil
}
