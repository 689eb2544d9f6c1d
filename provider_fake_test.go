package goSession

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/clock"
	"github.com/MrEthical07/goSession/internal/broadcast"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type refreshResult struct {
	sess *Session
	err  error
}

type authChange struct {
	event AuthEvent
	sess  *Session
}

// fakeProvider scripts provider responses. RefreshSession pops results in order and
// repeats the last one once the script is exhausted.
type fakeProvider struct {
	mu sync.Mutex

	initial    *Session
	initialErr error

	refreshResults []refreshResult
	refreshCalls   int
	refreshCtxs    []context.Context
	onRefresh      func()

	signOutErr   error
	signOutCalls int

	subscribeErr error
	changes      broadcast.Broadcaster[authChange]
}

func (p *fakeProvider) GetSession(context.Context) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initial, p.initialErr
}

func (p *fakeProvider) OnAuthStateChange(fn AuthStateFunc) (Subscription, error) {
	p.mu.Lock()
	err := p.subscribeErr
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return p.changes.Subscribe(func(c authChange) {
		fn(c.event, c.sess)
	}), nil
}

func (p *fakeProvider) RefreshSession(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	p.refreshCalls++
	p.refreshCtxs = append(p.refreshCtxs, ctx)
	hook := p.onRefresh
	var res refreshResult
	if len(p.refreshResults) > 0 {
		res = p.refreshResults[0]
		if len(p.refreshResults) > 1 {
			p.refreshResults = p.refreshResults[1:]
		}
	}
	p.mu.Unlock()

	if hook != nil {
		hook()
	}
	return res.sess, res.err
}

func (p *fakeProvider) SignOut(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signOutCalls++
	return p.signOutErr
}

func (p *fakeProvider) emit(event AuthEvent, sess *Session) {
	p.changes.Publish(authChange{event: event, sess: sess})
}

func (p *fakeProvider) setRefresh(results ...refreshResult) {
	p.mu.Lock()
	p.refreshResults = results
	p.mu.Unlock()
}

func (p *fakeProvider) RefreshCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshCalls
}

func sessionExpiringIn(clk *clock.Manual, d time.Duration, user string) *Session {
	return &Session{
		AccessToken:  "access-" + user,
		RefreshToken: "refresh-" + user,
		TokenType:    "bearer",
		ExpiresAt:    clk.Now().Add(d),
		UserID:       user,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type managerOption func(*Builder)

func newTestManager(t *testing.T, p Provider, opts ...managerOption) (*Manager, *clock.Manual) {
	t.Helper()

	clk := clock.NewManual(testEpoch)
	b := New().
		WithProvider(p).
		WithClock(clk).
		WithLogger(discardLogger())
	for _, opt := range opts {
		opt(b)
	}
	m, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(m.Close)
	return m, clk
}

func withConfig(mutate func(*Config)) managerOption {
	return func(b *Builder) {
		cfg := DefaultConfig()
		mutate(&cfg)
		b.WithConfig(cfg)
	}
}

func withInvalidation(h InvalidationHandler) managerOption {
	return func(b *Builder) {
		b.WithInvalidationHandler(h)
	}
}
