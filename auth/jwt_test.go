package auth

import (
	"testing"
	"time"

	"github.com/castledepotsmail-cyber/castle-depots/config"
)

func testConfig() *config.JWTConfig {
	return &config.JWTConfig{
		Secret:     "test-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}
}

func TestGenerateAndParseTokenPair(t *testing.T) {
	cfg := testConfig()

	pair, err := GenerateTokenPair(cfg, "user-1", "user@example.com", true)
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}

	claims, err := ParseToken(cfg, pair.Access, TokenTypeAccess)
	if err != nil {
		t.Fatalf("ParseToken failed on access token: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("Expected user ID user-1, got %s", claims.UserID)
	}
	if claims.Email != "user@example.com" {
		t.Errorf("Expected email user@example.com, got %s", claims.Email)
	}
	if !claims.IsStaff {
		t.Error("Expected is_staff claim to survive the round trip")
	}

	if _, err := ParseToken(cfg, pair.Refresh, TokenTypeRefresh); err != nil {
		t.Errorf("ParseToken failed on refresh token: %v", err)
	}
}

func TestParseToken_RejectsWrongType(t *testing.T) {
	cfg := testConfig()

	pair, err := GenerateTokenPair(cfg, "user-1", "user@example.com", false)
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}

	if _, err := ParseToken(cfg, pair.Refresh, TokenTypeAccess); err == nil {
		t.Error("Expected refresh token to be rejected where an access token is required")
	}
	if _, err := ParseToken(cfg, pair.Access, TokenTypeRefresh); err == nil {
		t.Error("Expected access token to be rejected where a refresh token is required")
	}
}

func TestParseToken_RejectsWrongSecret(t *testing.T) {
	pair, err := GenerateTokenPair(testConfig(), "user-1", "user@example.com", false)
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}

	other := &config.JWTConfig{Secret: "different-secret", AccessTTL: time.Hour, RefreshTTL: time.Hour}
	if _, err := ParseToken(other, pair.Access, TokenTypeAccess); err == nil {
		t.Error("Expected token signed with another secret to be rejected")
	}
}

func TestParseToken_RejectsExpired(t *testing.T) {
	cfg := &config.JWTConfig{
		Secret:     "test-secret",
		AccessTTL:  -time.Minute,
		RefreshTTL: time.Hour,
	}

	pair, err := GenerateTokenPair(cfg, "user-1", "user@example.com", false)
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}

	if _, err := ParseToken(cfg, pair.Access, TokenTypeAccess); err == nil {
		t.Error("Expected expired token to be rejected")
	}
}
