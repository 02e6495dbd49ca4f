package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAuthService_RegisterAndLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	resp, err := e.auth.Register(ctx, RegisterInput{
		Email: " alice@example.com ", Username: "alice", DisplayName: "Alice", Password: "password123",
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.User.Email != "alice@example.com" || resp.User.PasswordHash == "password123" {
		t.Fatalf("registered user = %+v", resp.User)
	}

	token, err := jwt.Parse(resp.AccessToken, func(*jwt.Token) (any, error) { return []byte("test-secret"), nil })
	if err != nil || !token.Valid {
		t.Fatalf("token invalid: %v", err)
	}
	if sub, _ := token.Claims.GetSubject(); sub != resp.User.ID.String() {
		t.Fatalf("sub = %q", sub)
	}

	if _, err := e.auth.Register(ctx, RegisterInput{Email: "ALICE@example.com", Username: "other", Password: "password123"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate email = %v", err)
	}
	if _, err := e.auth.Register(ctx, RegisterInput{Email: "x@example.com", Username: "alice", Password: "password123"}); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("duplicate username = %v", err)
	}

	if _, err := e.auth.Login(ctx, LoginInput{Email: "alice@example.com", Password: "wrong"}); !errors.Is(err, ErrInvalidCreds) {
		t.Fatalf("bad password = %v", err)
	}
	login, err := e.auth.Login(ctx, LoginInput{Email: "alice@example.com", Password: "password123"})
	if err != nil || login.User.ID != resp.User.ID {
		t.Fatalf("Login = %+v, %v", login, err)
	}

	user, err := e.auth.GetUser(ctx, resp.User.ID)
	if err != nil || user.Username != "alice" {
		t.Fatalf("GetUser = %+v, %v", user, err)
	}
}

func TestAuthService_EmailIsCaseInsensitive(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	resp, err := e.auth.Register(ctx, RegisterInput{Email: "Bob@Example.COM", Username: "bob", Password: "password123"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.User.Email != "bob@example.com" {
		t.Fatalf("stored email = %q", resp.User.Email)
	}
	if _, err := e.auth.Login(ctx, LoginInput{Email: "BOB@example.com", Password: "password123"}); err != nil {
		t.Fatalf("login with different case: %v", err)
	}
}

func TestAuthService_TokenClaims(t *testing.T) {
	e := newEnv(t)
	issued := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	e.auth.now = func() time.Time { return issued }

	resp, err := e.auth.Register(context.Background(), RegisterInput{Email: "c@example.com", Username: "carol", Password: "password123"})
	if err != nil {
		t.Fatal(err)
	}

	var claims jwt.RegisteredClaims
	if _, err := jwt.ParseWithClaims(resp.AccessToken, &claims, func(*jwt.Token) (any, error) {
		return []byte("test-secret"), nil
	}); err != nil {
		t.Fatal(err)
	}
	if claims.Issuer != tokenIssuer || claims.Subject != resp.User.ID.String() {
		t.Fatalf("claims = %+v", claims)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != defaultTokenTTL {
		t.Fatalf("token lifetime = %v", got)
	}
}

func TestVerifyPassword(t *testing.T) {
	hash, err := hashParams.hash("s3cret")
	if err != nil {
		t.Fatal(err)
	}
	// Cheaper parameters recorded in the hash must still verify.
	cheap, _ := argonParams{memory: 1024, iterations: 1, threads: 1, saltLen: 8, keyLen: 16}.hash("s3cret")

	tests := []struct {
		name     string
		password string
		encoded  string
		want     bool
	}{
		{"match", "s3cret", hash, true},
		{"wrong password", "s3cret!", hash, false},
		{"own parameters", "s3cret", cheap, true},
		{"not phc", "s3cret", "c2FsdA:aGFzaA", false},
		{"other algorithm", "s3cret", strings.Replace(hash, "argon2id", "argon2i", 1), false},
		{"empty", "s3cret", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := verifyPassword(tt.password, tt.encoded); got != tt.want {
				t.Fatalf("verifyPassword = %v, want %v", got, tt.want)
			}
		})
	}
}
