package session

import (
	"testing"
	"time"
)

// FuzzSessionDecode exercises the binary session decoder with arbitrary inputs.
// Decoding must never panic; accepted input must re-encode.
func FuzzSessionDecode(f *testing.F) {
	sess := &Session{
		AccessToken:  "header.payload.sig",
		RefreshToken: "refresh-fuzz",
		TokenType:    "bearer",
		ExpiresAt:    time.UnixMilli(1700003600000),
		UserID:       "user1",
		Email:        "fuzz@example.com",
		Payload:      []byte(`{"id":"user1"}`),
	}
	encoded, err := Encode(sess)
	if err == nil {
		f.Add(encoded)
	}

	f.Add([]byte{})
	f.Add([]byte{0})
	f.Add([]byte{formatVersionCurrent})
	f.Add([]byte{255, 255, 255})

	if len(encoded) > 10 {
		f.Add(encoded[:10])
	}
	if len(encoded) > 30 {
		f.Add(encoded[:30])
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		s, err := Decode(data)
		if err != nil {
			return
		}
		if _, err := Encode(s); err != nil {
			t.Fatalf("decoded session failed to encode: %v", err)
		}
	})
}
