package gotrue

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/session"
)

const maxErrorBody = 64 << 10

type tokenResponse struct {
	AccessToken  string          `json:"access_token"`
	TokenType    string          `json:"token_type"`
	ExpiresIn    int64           `json:"expires_in"`
	ExpiresAt    int64           `json:"expires_at"`
	RefreshToken string          `json:"refresh_token"`
	User         json.RawMessage `json:"user"`
}

// User is the subset of the auth server's user object the client reads. Raw holds the
// full JSON.
type User struct {
	ID    string          `json:"id"`
	Email string          `json:"email"`
	Raw   json.RawMessage `json:"-"`
}

type passwordGrant struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshGrant struct {
	RefreshToken string `json:"refresh_token"`
}

type idTokenGrant struct {
	Provider    string `json:"provider"`
	IDToken     string `json:"id_token"`
	AccessToken string `json:"access_token,omitempty"`
	Nonce       string `json:"nonce,omitempty"`
}

type recoverRequest struct {
	Email string `json:"email"`
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func parseUser(raw json.RawMessage) (User, error) {
	var u User
	if len(raw) == 0 || string(raw) == "null" {
		return u, nil
	}
	if err := json.Unmarshal(raw, &u); err != nil {
		return u, err
	}
	u.Raw = append(json.RawMessage(nil), raw...)
	return u, nil
}

func (t *tokenResponse) session(now time.Time) (*session.Session, error) {
	u, err := parseUser(t.User)
	if err != nil {
		return nil, err
	}
	s := &session.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		ExpiresAt:    expiry(now, t.ExpiresAt, t.ExpiresIn),
		UserID:       u.ID,
		Email:        u.Email,
		Payload:      u.Raw,
	}
	return s, nil
}

// expiry prefers the absolute expires_at and falls back to expires_in. Zero means
// unknown.
func expiry(now time.Time, expiresAt, expiresIn int64) time.Time {
	switch {
	case expiresAt > 0:
		return time.Unix(expiresAt, 0).UTC()
	case expiresIn > 0:
		return now.Add(time.Duration(expiresIn) * time.Second).UTC()
	default:
		return time.Time{}
	}
}

func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return apiErr
	}
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
		return apiErr
	}

	apiErr.Code = firstNonEmpty(body.ErrorCode, body.Error)
	if msg := firstNonEmpty(body.ErrorDescription, body.Msg, body.Message); msg != "" {
		apiErr.Message = msg
	}
	return apiErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
