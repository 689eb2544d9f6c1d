package middleware

import (
	"errors"
	"net/http"
	"strings"
)

// ErrNoSession is returned by [Transport] when no session is available to authorize a
// request.
var ErrNoSession = errors.New("no active session")

type transport struct {
	src  SessionSource
	base http.RoundTripper
}

// Transport returns a RoundTripper that sets "Authorization: <type> <access token>" from
// src on each request that does not already carry an Authorization header. Requests fail
// with ErrNoSession while src holds no session. A nil base uses http.DefaultTransport.
func Transport(src SessionSource, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &transport{src: src, base: base}
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Authorization") != "" {
		return t.base.RoundTrip(req)
	}

	sess := t.src.Current()
	if sess == nil || sess.AccessToken == "" {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, ErrNoSession
	}

	out := req.Clone(req.Context())
	out.Header.Set("Authorization", authScheme(sess.TokenType)+" "+sess.AccessToken)
	return t.base.RoundTrip(out)
}

func authScheme(tokenType string) string {
	if tokenType == "" || strings.EqualFold(tokenType, "bearer") {
		return "Bearer"
	}
	return tokenType
}
