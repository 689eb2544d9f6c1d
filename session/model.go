package session

import "time"

// Session is an authentication session issued by an identity provider.
//
// Session values are treated as immutable: a refresh produces a new Session instead of
// updating the previous one.
type Session struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
	UserID       string
	Email        string

	// Payload is opaque provider data (usually the user JSON) forwarded untouched.
	Payload []byte
}

// ExpiresIn returns the time left until ExpiresAt, measured from now. It returns zero
// when ExpiresAt is unknown.
func (s *Session) ExpiresIn(now time.Time) time.Duration {
	if s == nil || s.ExpiresAt.IsZero() {
		return 0
	}
	return s.ExpiresAt.Sub(now)
}

// Expired reports whether the session has a known expiry at or before now.
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return !s.ExpiresAt.After(now)
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Payload != nil {
		out.Payload = append([]byte(nil), s.Payload...)
	}
	return &out
}
