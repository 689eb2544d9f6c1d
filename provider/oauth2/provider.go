package oauth2

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/broadcast"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
	xoauth2 "golang.org/x/oauth2"
)

// DefaultStorageKey is the storage key used when Config.StorageKey is empty.
const DefaultStorageKey = "oauth2.session"

var (
	// ErrConfigRequired is returned by New without an oauth2.Config.
	ErrConfigRequired = errors.New("oauth2 config required")
	// ErrStorageRequired is returned by New without a Storage.
	ErrStorageRequired = errors.New("oauth2 storage required")
	// ErrRevocationFailed wraps a non-200 revocation response.
	ErrRevocationFailed = errors.New("token revocation failed")
)

// Config configures a [Provider].
type Config struct {
	OAuth2 *xoauth2.Config
	// RevocationURL enables RFC 7009 revocation of the refresh token on SignOut.
	RevocationURL string
	StorageKey    string
	// PersistTTL bounds how long a stored session is retained. Zero keeps it until deleted.
	PersistTTL time.Duration
	// HTTPClient is used for token, exchange and revocation requests.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type stateChange struct {
	event goSession.AuthEvent
	sess  *session.Session
}

// Provider implements [goSession.Provider] over an OAuth 2.0 token endpoint.
type Provider struct {
	oauth         *xoauth2.Config
	revocationURL string
	storageKey    string
	persistTTL    time.Duration
	http          *http.Client
	logger        *slog.Logger
	storage       session.Storage
	idTokens      *jwt.Inspector

	changes broadcast.Broadcaster[stateChange]
}

var _ goSession.Provider = (*Provider)(nil)

// New returns a Provider persisting its session in storage.
func New(cfg Config, storage session.Storage) (*Provider, error) {
	if cfg.OAuth2 == nil {
		return nil, ErrConfigRequired
	}
	if storage == nil {
		return nil, ErrStorageRequired
	}
	idTokens, err := jwt.NewInspector(jwt.Config{SigningMethod: jwt.MethodUnverified})
	if err != nil {
		return nil, err
	}

	p := &Provider{
		oauth:         cfg.OAuth2,
		revocationURL: cfg.RevocationURL,
		storageKey:    cfg.StorageKey,
		persistTTL:    cfg.PersistTTL,
		http:          cfg.HTTPClient,
		logger:        cfg.Logger,
		storage:       storage,
		idTokens:      idTokens,
	}
	if p.storageKey == "" {
		p.storageKey = DefaultStorageKey
	}
	if p.http == nil {
		p.http = &http.Client{Timeout: 30 * time.Second}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p, nil
}

// AuthCodeURL returns the authorization URL for state and a fresh PKCE verifier. Keep
// the verifier until the callback and pass it to Exchange.
func (p *Provider) AuthCodeURL(state string) (authURL, verifier string) {
	verifier = xoauth2.GenerateVerifier()
	authURL = p.oauth.AuthCodeURL(state, xoauth2.AccessTypeOffline, xoauth2.S256ChallengeOption(verifier))
	return authURL, verifier
}

// Exchange redeems an authorization code, stores the session and broadcasts SIGNED_IN.
func (p *Provider) Exchange(ctx context.Context, code, verifier string) (*session.Session, error) {
	tok, err := p.oauth.Exchange(p.clientContext(ctx), code, xoauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("oauth2: exchange: %w", err)
	}
	return p.persist(ctx, p.sessionFromToken(tok, nil), goSession.EventSignedIn)
}

// GetSession returns the stored session.
func (p *Provider) GetSession(ctx context.Context) (*session.Session, error) {
	sess, err := p.storage.Load(ctx, p.storageKey)
	if err != nil {
		return nil, fmt.Errorf("oauth2: load session: %w", err)
	}
	return sess, nil
}

// OnAuthStateChange registers fn for changes made through this provider.
func (p *Provider) OnAuthStateChange(fn goSession.AuthStateFunc) (goSession.Subscription, error) {
	if fn == nil {
		return nil, errors.New("oauth2: nil auth state callback")
	}
	return p.changes.Subscribe(func(ch stateChange) {
		fn(ch.event, ch.sess)
	}), nil
}

// RefreshSession runs a refresh_token grant for the stored session. It returns
// (nil, nil) when nothing refreshable is stored. A grant rejected by the server clears
// the stored session and broadcasts SIGNED_OUT.
func (p *Provider) RefreshSession(ctx context.Context) (*session.Session, error) {
	stored, err := p.storage.Load(ctx, p.storageKey)
	if err != nil {
		return nil, fmt.Errorf("oauth2: load session: %w", err)
	}
	if stored == nil || stored.RefreshToken == "" {
		return nil, nil
	}

	// An access-token-less token forces the source to hit the token endpoint.
	src := p.oauth.TokenSource(p.clientContext(ctx), &xoauth2.Token{RefreshToken: stored.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		var retrieve *xoauth2.RetrieveError
		if errors.As(err, &retrieve) && retrieve.Response != nil &&
			retrieve.Response.StatusCode >= 400 && retrieve.Response.StatusCode < 500 {
			p.logger.Warn("goSession: oauth2 refresh grant rejected, clearing session",
				"status", retrieve.Response.StatusCode, "error_code", retrieve.ErrorCode)
			if derr := p.storage.Delete(ctx, p.storageKey); derr != nil {
				p.logger.Error("goSession: oauth2 delete session failed", "error", derr)
			}
			p.changes.Publish(stateChange{event: goSession.EventSignedOut})
		}
		return nil, fmt.Errorf("oauth2: refresh: %w", err)
	}

	return p.persist(ctx, p.sessionFromToken(tok, stored), goSession.EventTokenRefreshed)
}

// SignOut revokes the refresh token when a revocation endpoint is configured, then
// removes the stored session and broadcasts SIGNED_OUT.
func (p *Provider) SignOut(ctx context.Context) error {
	stored, err := p.storage.Load(ctx, p.storageKey)
	if err != nil {
		return fmt.Errorf("oauth2: load session: %w", err)
	}
	if stored != nil && p.revocationURL != "" {
		if err := p.revoke(ctx, stored); err != nil {
			return err
		}
	}
	if err := p.storage.Delete(ctx, p.storageKey); err != nil {
		return fmt.Errorf("oauth2: delete session: %w", err)
	}
	p.changes.Publish(stateChange{event: goSession.EventSignedOut})
	return nil
}

func (p *Provider) revoke(ctx context.Context, stored *session.Session) error {
	token, hint := stored.RefreshToken, "refresh_token"
	if token == "" {
		token, hint = stored.AccessToken, "access_token"
	}
	if token == "" {
		return nil
	}

	form := url.Values{"token": {token}, "token_type_hint": {hint}}
	if p.oauth.Endpoint.AuthStyle == xoauth2.AuthStyleInParams {
		form.Set("client_id", p.oauth.ClientID)
		if p.oauth.ClientSecret != "" {
			form.Set("client_secret", p.oauth.ClientSecret)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revocationURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("oauth2: build revocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if p.oauth.Endpoint.AuthStyle != xoauth2.AuthStyleInParams {
		req.SetBasicAuth(url.QueryEscape(p.oauth.ClientID), url.QueryEscape(p.oauth.ClientSecret))
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("oauth2: revoke: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrRevocationFailed, resp.StatusCode)
	}
	return nil
}

// persist stores sess and broadcasts event. When storage already holds a later session
// for the same user, that session is broadcast and returned instead.
func (p *Provider) persist(ctx context.Context, sess *session.Session, event goSession.AuthEvent) (*session.Session, error) {
	if err := p.storage.Save(ctx, p.storageKey, sess, p.persistTTL); err != nil {
		if !errors.Is(err, session.ErrStaleWrite) {
			return nil, fmt.Errorf("oauth2: save session: %w", err)
		}
		stored, lerr := p.storage.Load(ctx, p.storageKey)
		if lerr != nil {
			return nil, fmt.Errorf("oauth2: load session: %w", lerr)
		}
		if stored != nil {
			p.logger.Warn("goSession: oauth2 stored session is newer, keeping it", "event", event)
			sess = stored
		}
	}
	p.changes.Publish(stateChange{event: event, sess: sess})
	return sess, nil
}

// sessionFromToken maps tok to a Session. User identity comes from the id_token when
// the server returns one, otherwise from prev. The refresh token of prev is kept when
// the server does not rotate. prev may be nil.
func (p *Provider) sessionFromToken(tok *xoauth2.Token, prev *session.Session) *session.Session {
	sess := &session.Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.Type(),
		ExpiresAt:    tok.Expiry,
	}
	if sess.RefreshToken == "" && prev != nil {
		sess.RefreshToken = prev.RefreshToken
	}

	if raw, ok := tok.Extra("id_token").(string); ok && raw != "" {
		claims, err := p.idTokens.Inspect(raw)
		if err != nil {
			p.logger.Debug("goSession: oauth2 id_token unreadable", "error", err)
		} else {
			sess.UserID = claims.Subject
			sess.Email = claims.Email
			sess.Payload = []byte(raw)
			return sess
		}
	}
	if prev != nil {
		sess.UserID = prev.UserID
		sess.Email = prev.Email
		sess.Payload = append([]byte(nil), prev.Payload...)
	}
	return sess
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, xoauth2.HTTPClient, p.http)
}
