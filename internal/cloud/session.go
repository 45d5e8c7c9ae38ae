package cloud

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"pumpsync/internal/model"
)

// refreshMargin is how much remaining lifetime a cached session needs
// before it is considered due for refresh.
const refreshMargin = 2 * time.Minute

// LoginAPI is the slice of the vendor client the session provider needs.
type LoginAPI interface {
	Login(ctx context.Context) (string, error)
}

// SessionProvider owns the vendor session: it caches the token, tracks
// expiry, and refreshes on demand. Concurrent callers observe at most
// one in-flight login.
type SessionProvider struct {
	api         LoginAPI
	fallbackTTL time.Duration
	log         *zap.Logger

	mu     sync.Mutex
	cached model.Session
	sf     singleflight.Group
}

// NewSessionProvider constructs a provider. fallbackTTL bounds the
// session lifetime when the vendor token carries no parseable expiry.
func NewSessionProvider(api LoginAPI, fallbackTTL time.Duration, log *zap.Logger) *SessionProvider {
	return &SessionProvider{api: api, fallbackTTL: fallbackTTL, log: log}
}

// GetValidSession returns the cached session while it has more than the
// refresh margin left; otherwise it performs the login exchange. Bad
// credentials surface as errs.ErrBadCredentials without retry; transient
// failures propagate as retryable transport errors.
func (p *SessionProvider) GetValidSession(ctx context.Context) (model.Session, error) {
	if s, ok := p.cachedValid(); ok {
		return s, nil
	}

	v, err, _ := p.sf.Do("login", func() (any, error) {
		// A concurrent caller may have refreshed while we waited.
		if s, ok := p.cachedValid(); ok {
			return s, nil
		}
		token, err := p.api.Login(ctx)
		if err != nil {
			return model.Session{}, err
		}
		s := p.sessionFromToken(token)
		p.mu.Lock()
		p.cached = s
		p.mu.Unlock()
		p.log.Info("vendor session refreshed", zap.Time("expires_at", s.ExpiresAt))
		return s, nil
	})
	if err != nil {
		return model.Session{}, err
	}
	return v.(model.Session), nil
}

// Invalidate discards the cached session. Called when the vendor
// rejects a token that looked valid locally; the token is never retried
// blindly.
func (p *SessionProvider) Invalidate() {
	p.mu.Lock()
	p.cached = model.Session{}
	p.mu.Unlock()
}

func (p *SessionProvider) cachedValid() (model.Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached.Valid(time.Now(), refreshMargin) {
		return p.cached, true
	}
	return model.Session{}, false
}

// sessionFromToken derives the session expiry from the token's JWT exp
// claim when the token parses as a JWT; opaque tokens get the
// configured fallback TTL. The signature is the vendor's concern, not
// ours, so the claims are read unverified.
func (p *SessionProvider) sessionFromToken(token string) model.Session {
	now := time.Now()
	s := model.Session{Token: token, IssuedAt: now, ExpiresAt: now.Add(p.fallbackTTL)}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return s
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil || !exp.After(now) {
		return s
	}
	s.ExpiresAt = exp.Time
	return s
}
