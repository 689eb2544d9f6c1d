package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/broadcast"
	"github.com/MrEthical07/goSession/session"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultStorageKey is the storage key used when Config.StorageKey is empty.
	DefaultStorageKey = "supabase.auth.token"
	// DefaultExpiryMargin is how close to expiry a stored session is refreshed by GetSession.
	DefaultExpiryMargin = 10 * time.Second

	authPath   = "/auth/v1"
	clientInfo = "gosession-gotrue"
)

// Config configures a [Client].
type Config struct {
	// URL is the project URL, for example https://xyzcompany.supabase.co.
	URL string
	// APIKey is the anon or service key sent as the apikey header.
	APIKey string
	// StorageKey names the persisted session. Defaults to DefaultStorageKey.
	StorageKey string
	// PersistTTL bounds how long a stored session is retained. Zero keeps it until deleted.
	PersistTTL time.Duration
	// ExpiryMargin is how close to expiry GetSession refreshes instead of returning the
	// stored session. Defaults to DefaultExpiryMargin; negative disables it.
	ExpiryMargin time.Duration
	// EmitInitialSession delivers INITIAL_SESSION with the stored session to each new
	// subscriber.
	EmitInitialSession bool
	HTTPClient         *http.Client
	Logger             *slog.Logger
	Now                func() time.Time
}

type stateChange struct {
	event goSession.AuthEvent
	sess  *session.Session
}

// Client talks to a GoTrue server and implements [goSession.Provider].
type Client struct {
	authURL      string
	apiKey       string
	storageKey   string
	persistTTL   time.Duration
	expiryMargin time.Duration
	emitInitial  bool
	http         *http.Client
	logger       *slog.Logger
	now          func() time.Time
	storage      session.Storage

	changes broadcast.Broadcaster[stateChange]
	refresh singleflight.Group
}

var _ goSession.Provider = (*Client)(nil)

// New validates cfg and returns a Client persisting its session in storage.
func New(cfg Config, storage session.Storage) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, ErrURLRequired
	}
	if storage == nil {
		return nil, ErrStorageRequired
	}
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("gotrue: invalid url %q", cfg.URL)
	}

	c := &Client{
		authURL:      base.String() + authPath,
		apiKey:       cfg.APIKey,
		storageKey:   cfg.StorageKey,
		persistTTL:   cfg.PersistTTL,
		expiryMargin: cfg.ExpiryMargin,
		emitInitial:  cfg.EmitInitialSession,
		http:         cfg.HTTPClient,
		logger:       cfg.Logger,
		now:          cfg.Now,
		storage:      storage,
	}
	if c.storageKey == "" {
		c.storageKey = DefaultStorageKey
	}
	if c.expiryMargin == 0 {
		c.expiryMargin = DefaultExpiryMargin
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

/*
====================================
PROVIDER
====================================
*/

// GetSession returns the stored session. A session that has expired, or expires within
// the expiry margin, is refreshed first.
func (c *Client) GetSession(ctx context.Context) (*session.Session, error) {
	sess, err := c.storage.Load(ctx, c.storageKey)
	if err != nil {
		return nil, fmt.Errorf("gotrue: load session: %w", err)
	}
	if sess == nil {
		return nil, nil
	}
	if c.expiryMargin >= 0 && !sess.ExpiresAt.IsZero() && sess.ExpiresIn(c.now()) <= c.expiryMargin {
		return c.RefreshSession(ctx)
	}
	return sess, nil
}

// OnAuthStateChange registers fn for auth-state changes made through this client.
func (c *Client) OnAuthStateChange(fn goSession.AuthStateFunc) (goSession.Subscription, error) {
	if fn == nil {
		return nil, errors.New("gotrue: nil auth state callback")
	}
	sub := c.changes.Subscribe(func(ch stateChange) {
		fn(ch.event, ch.sess)
	})
	if !c.emitInitial {
		return sub, nil
	}

	sess, err := c.storage.Load(context.Background(), c.storageKey)
	if err != nil {
		sub.Unsubscribe()
		return nil, fmt.Errorf("gotrue: load session: %w", err)
	}
	fn(goSession.EventInitialSession, sess)
	return sub, nil
}

// RefreshSession exchanges the stored refresh token for a new session. Concurrent calls
// share one request. It returns (nil, nil) when no session is stored. When the server
// rejects the refresh token the stored session is removed and SIGNED_OUT is broadcast.
func (c *Client) RefreshSession(ctx context.Context) (*session.Session, error) {
	v, err, shared := c.refresh.Do("refresh", func() (interface{}, error) {
		return c.refreshStored(ctx)
	})
	if shared {
		c.logger.Debug("goSession: gotrue refresh shared with concurrent caller")
	}
	if err != nil {
		return nil, err
	}
	sess, _ := v.(*session.Session)
	return sess, nil
}

func (c *Client) refreshStored(ctx context.Context) (*session.Session, error) {
	stored, err := c.storage.Load(ctx, c.storageKey)
	if err != nil {
		return nil, fmt.Errorf("gotrue: load session: %w", err)
	}
	if stored == nil || stored.RefreshToken == "" {
		return nil, nil
	}

	var tok tokenResponse
	err = c.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"refresh_token"}}, "",
		refreshGrant{RefreshToken: stored.RefreshToken}, &tok)
	if err != nil {
		if isClientError(err) {
			c.logger.Warn("goSession: gotrue refresh token rejected, clearing session", "error", err)
			c.clear(ctx, goSession.EventSignedOut)
		}
		return nil, err
	}

	return c.install(ctx, &tok, goSession.EventTokenRefreshed)
}

// SignOut revokes the session at the server, removes it from storage and broadcasts
// SIGNED_OUT. A token the server no longer knows (401 or 404) counts as signed out.
func (c *Client) SignOut(ctx context.Context) error {
	stored, err := c.storage.Load(ctx, c.storageKey)
	if err != nil {
		return fmt.Errorf("gotrue: load session: %w", err)
	}

	if stored != nil && stored.AccessToken != "" {
		err := c.do(ctx, http.MethodPost, "/logout", url.Values{"scope": {"global"}}, stored.AccessToken, nil, nil)
		if err != nil && !isStatus(err, http.StatusUnauthorized, http.StatusNotFound) {
			return err
		}
	}

	if err := c.storage.Delete(ctx, c.storageKey); err != nil {
		return fmt.Errorf("gotrue: delete session: %w", err)
	}
	c.changes.Publish(stateChange{event: goSession.EventSignedOut})
	return nil
}

/*
====================================
SIGN-IN FLOWS
====================================
*/

// SignInWithPassword validates the credentials locally, then signs in.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*session.Session, error) {
	email = strings.TrimSpace(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	var tok tokenResponse
	err := c.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"password"}}, "",
		passwordGrant{Email: email, Password: password}, &tok)
	if err != nil {
		return nil, err
	}
	return c.install(ctx, &tok, goSession.EventSignedIn)
}

// IDTokenCredentials is an ID token issued by an external identity provider.
type IDTokenCredentials struct {
	// Provider is the external provider name, for example "google".
	Provider    string
	Token       string
	AccessToken string
	Nonce       string
}

// SignInWithIDToken exchanges an external provider's ID token for a session.
func (c *Client) SignInWithIDToken(ctx context.Context, creds IDTokenCredentials) (*session.Session, error) {
	if creds.Provider == "" || creds.Token == "" {
		return nil, errors.New("gotrue: provider and token are required")
	}

	var tok tokenResponse
	err := c.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"id_token"}}, "",
		idTokenGrant{
			Provider:    creds.Provider,
			IDToken:     creds.Token,
			AccessToken: creds.AccessToken,
			Nonce:       creds.Nonce,
		}, &tok)
	if err != nil {
		return nil, err
	}
	return c.install(ctx, &tok, goSession.EventSignedIn)
}

// ResetPasswordForEmail sends a recovery email. redirectTo may be empty.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	email = strings.TrimSpace(email)
	if err := ValidateEmail(email); err != nil {
		return err
	}
	var query url.Values
	if redirectTo != "" {
		query = url.Values{"redirect_to": {redirectTo}}
	}
	return c.do(ctx, http.MethodPost, "/recover", query, "", recoverRequest{Email: email}, nil)
}

// GetUser fetches the user that owns accessToken.
func (c *Client) GetUser(ctx context.Context, accessToken string) (User, error) {
	if accessToken == "" {
		return User{}, ErrNoSession
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/user", nil, accessToken, nil, &raw); err != nil {
		return User{}, err
	}
	return parseUser(raw)
}

/*
====================================
INTERNALS
====================================
*/

// install persists the session in tok and broadcasts event.
func (c *Client) install(ctx context.Context, tok *tokenResponse, event goSession.AuthEvent) (*session.Session, error) {
	if tok.AccessToken == "" {
		return nil, errors.New("gotrue: token response without access_token")
	}
	sess, err := tok.session(c.now())
	if err != nil {
		return nil, fmt.Errorf("gotrue: decode user: %w", err)
	}
	return c.persist(ctx, sess, event)
}

// persist stores sess and broadcasts event. When storage already holds a later session
// for the same user, that session is broadcast and returned instead.
func (c *Client) persist(ctx context.Context, sess *session.Session, event goSession.AuthEvent) (*session.Session, error) {
	if err := c.storage.Save(ctx, c.storageKey, sess, c.persistTTL); err != nil {
		if !errors.Is(err, session.ErrStaleWrite) {
			return nil, fmt.Errorf("gotrue: save session: %w", err)
		}
		stored, lerr := c.storage.Load(ctx, c.storageKey)
		if lerr != nil {
			return nil, fmt.Errorf("gotrue: load session: %w", lerr)
		}
		if stored != nil {
			c.logger.Warn("goSession: gotrue stored session is newer, keeping it", "event", event)
			sess = stored
		}
	}
	c.changes.Publish(stateChange{event: event, sess: sess})
	return sess, nil
}

func (c *Client) clear(ctx context.Context, event goSession.AuthEvent) {
	if err := c.storage.Delete(ctx, c.storageKey); err != nil {
		c.logger.Error("goSession: gotrue delete session failed", "error", err)
	}
	c.changes.Publish(stateChange{event: event})
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, bearer string, body, out any) error {
	endpoint := c.authURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gotrue: encode request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, payload)
	if err != nil {
		return fmt.Errorf("gotrue: build request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Client-Info", clientInfo)
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	switch {
	case bearer != "":
		req.Header.Set("Authorization", "Bearer "+bearer)
	case c.apiKey != "":
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gotrue: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("gotrue: decode %s response: %w", path, err)
	}
	return nil
}
