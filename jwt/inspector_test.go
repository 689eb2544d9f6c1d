package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func sign(t *testing.T, method gjwt.SigningMethod, key interface{}, claims gjwt.Claims) string {
	t.Helper()
	token, err := gjwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestUnverifiedExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := sign(t, gjwt.SigningMethodHS256, []byte("any-secret-any-secret"), Claims{
		Email:            "a@example.com",
		RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(exp), Subject: "u-1"},
	})

	i, err := NewInspector(Config{})
	if err != nil {
		t.Fatalf("new inspector: %v", err)
	}
	if i.Verifies() {
		t.Fatal("unverified inspector must not report verification")
	}
	got, err := i.Expiry(token)
	if err != nil {
		t.Fatalf("expiry: %v", err)
	}
	if !got.Equal(exp) {
		t.Fatalf("expected %v, got %v", exp, got)
	}
	claims, err := i.Inspect(token)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if claims.Subject != "u-1" || claims.Email != "a@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestHS256AcceptsExpiredButRejectsWrongSecret(t *testing.T) {
	secret := []byte("secret-secret-secret-secret")
	exp := time.Now().Add(-time.Hour).Truncate(time.Second)
	token := sign(t, gjwt.SigningMethodHS256, secret, Claims{
		RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(exp)},
	})

	i, err := NewInspector(Config{SigningMethod: MethodHS256, Secret: secret})
	if err != nil {
		t.Fatalf("new inspector: %v", err)
	}
	got, err := i.Expiry(token)
	if err != nil {
		t.Fatalf("expired token must still yield its expiry: %v", err)
	}
	if !got.Equal(exp) {
		t.Fatalf("expected %v, got %v", exp, got)
	}

	other, err := NewInspector(Config{SigningMethod: MethodHS256, Secret: []byte("another-secret-another")})
	if err != nil {
		t.Fatalf("new inspector: %v", err)
	}
	if _, err := other.Expiry(token); err == nil {
		t.Fatal("expected wrong secret to be rejected")
	}
}

func TestEd25519RejectsWrongAlgorithm(t *testing.T) {
	pub, priv := newEdKeys(t)
	i, err := NewInspector(Config{SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new inspector: %v", err)
	}

	good := sign(t, gjwt.SigningMethodEdDSA, priv, Claims{
		RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))},
	})
	if _, err := i.Expiry(good); err != nil {
		t.Fatalf("expected ed25519 token to verify: %v", err)
	}

	hs := sign(t, gjwt.SigningMethodHS256, []byte("secret-secret-secret-secret"), Claims{
		RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))},
	})
	if _, err := i.Expiry(hs); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestExpiryMissingClaim(t *testing.T) {
	token := sign(t, gjwt.SigningMethodHS256, []byte("secret-secret-secret-secret"), Claims{Email: "x@example.com"})
	i, _ := NewInspector(Config{})
	if _, err := i.Expiry(token); !errors.Is(err, ErrNoExpiry) {
		t.Fatalf("expected ErrNoExpiry, got %v", err)
	}
}

func TestNewInspectorValidation(t *testing.T) {
	if _, err := NewInspector(Config{SigningMethod: MethodHS256}); err == nil {
		t.Fatal("expected hs256 without secret to fail")
	}
	if _, err := NewInspector(Config{SigningMethod: MethodEd25519, PublicKey: []byte("short")}); err == nil {
		t.Fatal("expected invalid ed25519 key to fail")
	}
	if _, err := NewInspector(Config{SigningMethod: "rs512"}); err == nil {
		t.Fatal("expected unsupported method to fail")
	}
}
