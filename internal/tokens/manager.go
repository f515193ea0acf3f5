// Package tokens manages the OAuth token lifecycle for external fitness
// providers: authorization, code exchange, expiry tracking, refresh and
// authenticated resource calls with a single refresh-and-retry on 401.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"fitdash/internal/model"
)

const (
	// DefaultRefreshMargin is how long before expiry a token is refreshed.
	DefaultRefreshMargin = 5 * time.Minute
	// DefaultStateTTL bounds how long an issued authorize state stays valid.
	DefaultStateTTL = 10 * time.Minute
)

// Manager owns the token records of one provider. All reads and writes of
// those records go through it.
type Manager struct {
	adapter ProviderAdapter
	store   Store
	states  StateStore
	client  *http.Client
	log     *zap.Logger

	margin   time.Duration
	stateTTL time.Duration
	now      func() time.Time

	// refreshes collapses concurrent refreshes for the same user into one
	// provider call, so a rotating refresh token is never spent twice.
	refreshes singleflight.Group
}

type Option func(*Manager)

func WithRefreshMargin(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.margin = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithHTTPClient sets the client used for resource calls.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.client = c }
}

// WithStateStore overrides the state store. By default the token store is
// used when it also implements StateStore.
func WithStateStore(s StateStore) Option {
	return func(m *Manager) { m.states = s }
}

func WithStateTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.stateTTL = d
		}
	}
}

func NewManager(adapter ProviderAdapter, store Store, opts ...Option) *Manager {
	m := &Manager{
		adapter:  adapter,
		store:    store,
		log:      zap.NewNop(),
		margin:   DefaultRefreshMargin,
		stateTTL: DefaultStateTTL,
		now:      time.Now,
	}
	if ss, ok := store.(StateStore); ok {
		m.states = ss
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.client == nil {
		m.client = NewHTTPClient(DefaultHTTPTimeout)
	}
	m.log = m.log.With(zap.String("provider", string(adapter.Provider())))
	return m
}

func (m *Manager) Provider() model.Provider { return m.adapter.Provider() }

// Authorize returns the provider consent URL for userID. For providers that
// use an anti-forgery state, a fresh state is recorded for ExchangeCode.
func (m *Manager) Authorize(ctx context.Context, userID string) (string, error) {
	p := m.Provider()
	if err := m.adapter.Configured(); err != nil {
		m.log.Error("authorize: provider not configured", zap.Error(err))
		return "", newError(ErrConfiguration, p, err)
	}

	var state string
	if m.adapter.UsesState() {
		if m.states == nil {
			return "", newError(ErrConfiguration, p, errors.New("no state store"))
		}
		state = uuid.NewString()
		if err := m.states.SaveState(ctx, state, userID, p, m.now().Add(m.stateTTL)); err != nil {
			return "", newError(ErrStorage, p, fmt.Errorf("save state: %w", err))
		}
	}

	authURL, err := m.adapter.BuildAuthURL(state)
	if err != nil {
		return "", newError(ErrConfiguration, p, err)
	}
	return authURL, nil
}

// ExchangeCode trades an authorization code for a token pair and stores it.
func (m *Manager) ExchangeCode(ctx context.Context, userID, code, state string) (rec *model.TokenRecord, err error) {
	p := m.Provider()
	defer func() { exchangesTotal.WithLabelValues(string(p), result(err)).Inc() }()

	if err := m.adapter.Configured(); err != nil {
		return nil, newError(ErrConfiguration, p, err)
	}
	if code == "" {
		return nil, &Error{Kind: ErrTokenExchange, Provider: p, Message: "missing authorization code"}
	}

	if m.adapter.UsesState() {
		if err := m.checkState(ctx, userID, state); err != nil {
			return nil, err
		}
	}

	resp, err := m.adapter.Exchange(ctx, code)
	if err != nil {
		m.log.Warn("code exchange failed", zap.String("user_id", userID), zap.Error(err))
		return nil, classify(ErrTokenExchange, p, err)
	}

	rec, err = m.buildRecord(userID, resp, nil)
	if err != nil {
		return nil, classify(ErrTokenExchange, p, err)
	}

	if err := m.store.Set(ctx, rec); err != nil {
		return nil, newError(ErrTokenExchange, p, fmt.Errorf("store token: %w", err))
	}

	m.log.Info("provider connected", zap.String("user_id", userID), zap.Time("expires_at", rec.ExpiresAt))
	return rec, nil
}

func (m *Manager) checkState(ctx context.Context, userID, state string) error {
	p := m.Provider()
	if m.states == nil {
		return newError(ErrConfiguration, p, errors.New("no state store"))
	}
	if state == "" {
		return &Error{Kind: ErrTokenExchange, Provider: p, Message: "missing state"}
	}
	owner, sp, ok, err := m.states.ConsumeState(ctx, state, m.now())
	if err != nil {
		return newError(ErrTokenExchange, p, fmt.Errorf("consume state: %w", err))
	}
	if !ok || owner != userID || sp != p {
		m.log.Warn("rejected authorize state", zap.String("user_id", userID))
		return &Error{Kind: ErrTokenExchange, Provider: p, Message: "invalid state"}
	}
	return nil
}

// GetValidAccessToken returns a token that is valid for longer than the
// refresh margin, refreshing first when needed. No network call is made while
// the stored token is outside the margin.
func (m *Manager) GetValidAccessToken(ctx context.Context, userID string) (string, error) {
	p := m.Provider()
	rec, err := m.store.Get(ctx, userID, p)
	if err != nil {
		return "", newError(ErrStorage, p, err)
	}
	if rec == nil {
		return "", newError(ErrUnauthenticated, p, nil)
	}
	if !rec.ExpiresWithin(m.now(), m.margin) {
		return rec.AccessToken, nil
	}

	rec, err = m.refresh(ctx, userID, rec.AccessToken)
	if err != nil {
		return "", unauthenticated(p, err)
	}
	return rec.AccessToken, nil
}

// Refresh unconditionally mints a new access token from the stored refresh
// token. Any refresh failure deletes the stored record.
func (m *Manager) Refresh(ctx context.Context, userID string) (*model.TokenRecord, error) {
	return m.refresh(ctx, userID, "")
}

// refresh runs at most one provider refresh per user at a time. When stale
// is set and the stored token has already moved past it, the stored token is
// returned without another refresh.
//
// The shared refresh is detached from the caller's cancellation and bounded by
// refreshTimeout instead, so one caller going away neither fails the others
// nor discards the record. A cancelled caller stops waiting on its own.
func (m *Manager) refresh(ctx context.Context, userID, stale string) (*model.TokenRecord, error) {
	work := context.WithoutCancel(ctx)
	ch := m.refreshes.DoChan(userID, func() (any, error) {
		wctx, cancel := context.WithTimeout(work, m.refreshTimeout())
		defer cancel()
		return m.doRefresh(wctx, userID, stale)
	})

	select {
	case <-ctx.Done():
		return nil, newError(ErrRefresh, m.Provider(), ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		rec := *res.Val.(*model.TokenRecord)
		return &rec, nil
	}
}

// refreshTimeout leaves room for the token call plus the store round trips.
func (m *Manager) refreshTimeout() time.Duration {
	timeout := DefaultHTTPTimeout
	if m.client != nil && m.client.Timeout > 0 {
		timeout = m.client.Timeout
	}
	return 2 * timeout
}

func (m *Manager) doRefresh(ctx context.Context, userID, stale string) (rec *model.TokenRecord, err error) {
	p := m.Provider()

	cur, err := m.store.Get(ctx, userID, p)
	if err != nil {
		return nil, newError(ErrStorage, p, err)
	}
	if cur == nil {
		return nil, newError(ErrUnauthenticated, p, nil)
	}
	if stale != "" && cur.AccessToken != stale && !cur.ExpiresWithin(m.now(), m.margin) {
		return cur, nil
	}

	defer func() {
		refreshesTotal.WithLabelValues(string(p), result(err)).Inc()
		if err != nil && !errors.Is(err, context.Canceled) {
			m.discard(ctx, userID)
		}
	}()

	if !cur.CanRefresh() {
		return nil, &Error{Kind: ErrRefresh, Provider: p, Message: "no refresh token stored"}
	}
	if err := m.adapter.Configured(); err != nil {
		return nil, newError(ErrRefresh, p, err)
	}

	resp, err := m.adapter.Refresh(ctx, cur.RefreshToken)
	if err != nil {
		m.log.Warn("token refresh rejected", zap.String("user_id", userID), zap.Error(err))
		return nil, classify(ErrRefresh, p, err)
	}

	rec, err = m.buildRecord(userID, resp, cur)
	if err != nil {
		return nil, classify(ErrRefresh, p, err)
	}
	if err := m.store.Set(ctx, rec); err != nil {
		return nil, newError(ErrRefresh, p, fmt.Errorf("store token: %w", err))
	}

	m.log.Debug("token refreshed", zap.String("user_id", userID), zap.Time("expires_at", rec.ExpiresAt))
	return rec, nil
}

// discard drops a record that can no longer produce a valid token.
// It may run after the refresh deadline, so it gets a deadline of its own.
func (m *Manager) discard(ctx context.Context, userID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := m.store.Delete(ctx, userID, m.Provider()); err != nil {
		m.log.Error("delete stale token", zap.String("user_id", userID), zap.Error(err))
	}
}

// buildRecord turns a token reply into a full record. A refresh reply that
// omits refresh_token keeps the previous one, as not every provider rotates.
func (m *Manager) buildRecord(userID string, resp *TokenResponse, prev *model.TokenRecord) (*model.TokenRecord, error) {
	if resp.AccessToken == "" {
		return nil, errMissingAccessToken
	}

	expiresAt, err := m.adapter.ParseExpiry(resp, m.now())
	if err != nil {
		return nil, err
	}

	rec := &model.TokenRecord{
		UserID:         userID,
		Provider:       m.Provider(),
		AccessToken:    resp.AccessToken,
		RefreshToken:   resp.RefreshToken,
		ExpiresAt:      expiresAt,
		Scope:          resp.Scope,
		ProviderUserID: resp.ProviderUserID,
		UpdatedAt:      m.now(),
	}
	if prev != nil {
		if rec.RefreshToken == "" {
			rec.RefreshToken = prev.RefreshToken
		}
		if rec.Scope == "" {
			rec.Scope = prev.Scope
		}
		if rec.ProviderUserID == "" {
			rec.ProviderUserID = prev.ProviderUserID
		}
	}
	if rec.RefreshToken == "" {
		return nil, errors.New("response missing refresh_token")
	}
	return rec, nil
}

// Disconnect deletes the stored record. Deleting an absent record is not an error.
func (m *Manager) Disconnect(ctx context.Context, userID string) error {
	if err := m.store.Delete(ctx, userID, m.Provider()); err != nil {
		return newError(ErrStorage, m.Provider(), err)
	}
	m.log.Info("provider disconnected", zap.String("user_id", userID))
	return nil
}

// Status reports whether userID has a stored record, without refreshing it.
func (m *Manager) Status(ctx context.Context, userID string) (model.Connection, error) {
	conn := model.Connection{Provider: m.Provider()}
	rec, err := m.store.Get(ctx, userID, m.Provider())
	if err != nil {
		return conn, newError(ErrStorage, m.Provider(), err)
	}
	if rec != nil {
		conn.Connected = true
		conn.ExpiresAt = rec.ExpiresAt
		conn.ProviderUserID = rec.ProviderUserID
	}
	return conn, nil
}

// ProviderUserID returns the provider-side account id stored with the token.
func (m *Manager) ProviderUserID(ctx context.Context, userID string) (string, error) {
	conn, err := m.Status(ctx, userID)
	if err != nil {
		return "", err
	}
	if !conn.Connected {
		return "", newError(ErrUnauthenticated, m.Provider(), nil)
	}
	return conn.ProviderUserID, nil
}

// classify wraps an adapter failure into kind, keeping the provider's
// status and message when the endpoint answered.
func classify(kind error, p model.Provider, err error) *Error {
	e := newError(kind, p, err)
	var ee *endpointError
	if errors.As(err, &ee) {
		e.Status = ee.Status
		e.Message = ee.Message
	}
	return e
}

// unauthenticated reports a failed refresh as ErrUnauthenticated while
// keeping the refresh error in the chain. Storage failures pass through.
func unauthenticated(p model.Provider, err error) error {
	if errors.Is(err, ErrStorage) || errors.Is(err, ErrUnauthenticated) {
		return err
	}
	return newError(ErrUnauthenticated, p, err)
}
