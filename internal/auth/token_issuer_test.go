package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenIssuerIssuesTenantTokens(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("super-secret"),
		Issuer:        "eryxon-auth",
		Audience:      "eryxon-sync",
		TokenTTL:      30 * time.Minute,
	})

	tokenString, expiresIn, err := issuer.IssueTenantToken(context.Background(), "tenant-123")
	if err != nil {
		t.Fatalf("expected successful issuance: %v", err)
	}
	if expiresIn <= 0 {
		t.Fatalf("expected positive expiry seconds, got %d", expiresIn)
	}

	parser := jwt.NewParser()
	claims := &jwt.RegisteredClaims{}
	_, err = parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("super-secret"), nil
	})
	if err != nil {
		t.Fatalf("failed to parse generated token: %v", err)
	}

	if claims.Subject != "tenant-123" {
		t.Fatalf("unexpected subject %s", claims.Subject)
	}
	if claims.Issuer != "eryxon-auth" {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
	if len(claims.Audience) == 0 || claims.Audience[0] != "eryxon-sync" {
		t.Fatalf("unexpected audience %#v", claims.Audience)
	}
}

func TestTokenIssuerValidatesItsOwnTokens(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("super-secret"),
		Issuer:        "eryxon-auth",
		Audience:      "eryxon-sync",
	})

	tokenString, _, err := issuer.IssueTenantToken(context.Background(), "tenant-abc")
	if err != nil {
		t.Fatalf("unexpected issuance error: %v", err)
	}

	subject, err := issuer.ValidateToken(tokenString)
	if err != nil {
		t.Fatalf("expected round-trip validation: %v", err)
	}
	if subject != "tenant-abc" {
		t.Fatalf("unexpected subject %s", subject)
	}
}

func TestTokenIssuerRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("secret-a"),
		Issuer:        "eryxon-auth",
		Audience:      "eryxon-sync",
	})
	other := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("secret-b"),
		Issuer:        "eryxon-auth",
		Audience:      "eryxon-sync",
	})

	tokenString, _, err := issuer.IssueTenantToken(context.Background(), "tenant-abc")
	if err != nil {
		t.Fatalf("unexpected issuance error: %v", err)
	}
	if _, err := other.ValidateToken(tokenString); err == nil {
		t.Fatalf("expected validation failure for wrong secret")
	}
}

func TestTokenIssuerRejectsExpiredTokens(t *testing.T) {
	issuedAt := time.Unix(1760000000, 0).UTC()
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("super-secret"),
		Issuer:        "eryxon-auth",
		Audience:      "eryxon-sync",
		TokenTTL:      time.Minute,
		Clock:         func() time.Time { return issuedAt },
	})

	tokenString, _, err := issuer.IssueTenantToken(context.Background(), "tenant-abc")
	if err != nil {
		t.Fatalf("unexpected issuance error: %v", err)
	}

	validator := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("super-secret"),
		Issuer:        "eryxon-auth",
		Audience:      "eryxon-sync",
		Clock:         func() time.Time { return issuedAt.Add(2 * time.Minute) },
	})
	_, err = validator.ValidateToken(tokenString)
	if err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
	if !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected expiry error, got %v", err)
	}
}

func TestTokenIssuerRequiresTenantSubject(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("super-secret"),
		Issuer:        "eryxon-auth",
		Audience:      "eryxon-sync",
	})
	if _, _, err := issuer.IssueTenantToken(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty tenant subject")
	}
}
