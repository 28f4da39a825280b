package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/mkalas/centavo/internal/common"
)

// SessionConfig carries the credentials issued by the identity provider.
// Authentication flows themselves are external; the client only consumes
// the resulting tokens.
type SessionConfig struct {
	// TokenURL is the identity provider's token refresh endpoint.
	TokenURL string
	// AccessToken is the current bearer token (a JWT).
	AccessToken string
	// RefreshToken, when present, lets the session renew itself.
	RefreshToken string
}

// TokenSession implements service.Session on top of an oauth2 token source.
// Validity is judged from the access token's JWT expiry claim; the signature
// is the server's to verify.
type TokenSession struct {
	source      oauth2.TokenSource
	mu          sync.Mutex
	userID      string
	expiry      time.Time
	token       string
	refreshable bool
}

// NewTokenSession builds a session from stored credentials. An empty access
// token yields a session that is never valid (local-only mode).
func NewTokenSession(ctx context.Context, cfg SessionConfig) *TokenSession {
	s := &TokenSession{token: cfg.AccessToken}
	if cfg.AccessToken == "" {
		return s
	}

	s.userID, s.expiry = parseClaims(cfg.AccessToken)

	tok := &oauth2.Token{
		AccessToken:  cfg.AccessToken,
		RefreshToken: cfg.RefreshToken,
		Expiry:       s.expiry,
	}
	if cfg.TokenURL != "" && cfg.RefreshToken != "" {
		conf := &oauth2.Config{
			Endpoint: oauth2.Endpoint{TokenURL: cfg.TokenURL},
		}
		s.source = conf.TokenSource(ctx, tok)
		s.refreshable = true
	} else {
		s.source = oauth2.StaticTokenSource(tok)
	}
	return s
}

// Valid reports whether a usable session exists: a token is present and
// either unexpired or refreshable.
func (s *TokenSession) Valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" {
		return false
	}
	if s.expiry.IsZero() || time.Now().Before(s.expiry) {
		return true
	}
	// Expired access token; a refreshing source can still recover.
	return s.refreshable && s.refreshLocked() == nil
}

// Token returns the current bearer token, refreshing it when necessary.
func (s *TokenSession) Token(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" {
		return "", common.ErrAuthRequired
	}
	if !s.expiry.IsZero() && !time.Now().Before(s.expiry) {
		if err := s.refreshLocked(); err != nil {
			return "", fmt.Errorf("%w: %v", common.ErrAuthRequired, err)
		}
	}
	return s.token, nil
}

// UserID returns the subject claim of the access token.
func (s *TokenSession) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *TokenSession) refreshLocked() error {
	if s.source == nil {
		return common.ErrAuthRequired
	}
	tok, err := s.source.Token()
	if err != nil {
		return err
	}
	s.token = tok.AccessToken
	s.userID, s.expiry = parseClaims(tok.AccessToken)
	if !tok.Expiry.IsZero() {
		s.expiry = tok.Expiry
	}
	return nil
}

// parseClaims extracts the subject and expiry from a JWT without verifying
// its signature.
func parseClaims(token string) (subject string, expiry time.Time) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return "", time.Time{}
	}
	if sub, err := claims.GetSubject(); err == nil {
		subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiry = exp.Time
	}
	return subject, expiry
}
