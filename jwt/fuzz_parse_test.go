package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

// FuzzInspectorExpiry exercises token parsing with arbitrary strings.
// Goal: no panics; a verifying inspector never accepts unsigned garbage.
func FuzzInspectorExpiry(f *testing.F) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		f.Fatal(err)
	}
	verifying, err := NewInspector(Config{SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		f.Fatal(err)
	}
	unverified, err := NewInspector(Config{})
	if err != nil {
		f.Fatal(err)
	}

	valid, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, Claims{
		RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(priv)
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJub25lIn0.eyJleHAiOjF9.")
	f.Add(valid[:len(valid)/2])

	f.Fuzz(func(t *testing.T, token string) {
		_, _ = unverified.Expiry(token)
		if _, err := verifying.Expiry(token); err == nil && token != valid {
			if _, err := verifying.Inspect(token); err != nil {
				t.Fatalf("inconsistent verification result for %q", token)
			}
		}
	})
}
