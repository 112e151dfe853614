package fsm

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
	"golang.org/x/sync/singleflight"
)

// tokens are treated as stale slightly before their real expiry so a
// request never goes out with a token about to lapse mid-flight.
const tokenExpirySlack = 30 * time.Second

// TokenProvider caches the backend access token and refreshes it on demand.
// Concurrent callers during a refresh share one in-flight request instead of
// each hitting the auth endpoint.
type TokenProvider struct {
	hc           *http.Client
	tokenURL     string
	clientID     string
	clientSecret string

	group singleflight.Group

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func NewTokenProvider(tokenURL, clientID, clientSecret string, timeout time.Duration) *TokenProvider {
	return &TokenProvider{
		hc:           &http.Client{Timeout: timeout},
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.token != "" && time.Now().Before(p.expiry.Add(-tokenExpirySlack)) {
		token := p.token
		p.mu.Unlock()
		return token, nil
	}
	p.mu.Unlock()

	v, err, _ := p.group.Do("refresh", func() (interface{}, error) {
		return p.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (p *TokenProvider) refresh(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", p.clientID)
	form.Set("client_secret", p.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned an empty access token")
	}

	expiry := tokenExpiry(tr.AccessToken, tr.ExpiresIn)

	p.mu.Lock()
	p.token = tr.AccessToken
	p.expiry = expiry
	p.mu.Unlock()

	return tr.AccessToken, nil
}

// tokenExpiry prefers the exp claim when the access token is a JWT; the
// claim is read without signature verification since the token is only
// inspected, never trusted locally. expires_in is the fallback.
func tokenExpiry(token string, expiresIn int64) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err == nil {
		if claims.ExpiresAt != nil {
			return claims.ExpiresAt.Time
		}
	}
	if expiresIn > 0 {
		return time.Now().Add(time.Duration(expiresIn) * time.Second)
	}
	return time.Now().Add(5 * time.Minute)
}
