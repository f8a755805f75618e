package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func setSecret(t *testing.T) {
	t.Helper()
	t.Setenv("GATEHOUSE_AUTH_SECRET", "auth-test-secret-0123456789abcd")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)
}

func TestTokenRoundTrip(t *testing.T) {
	setSecret(t)

	token, err := GenerateToken("adm1", "org1", RoleAdmin, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	actor := ActorFromClaims(claims)
	if actor.Type != ActorAdmin || actor.ID != "adm1" || actor.OrganizationID != "org1" {
		t.Fatalf("actor = %+v", actor)
	}
	if !actor.Is(ActorAdmin, ActorSecurity) {
		t.Fatal("Is should match one of the listed types")
	}
	if actor.Is(ActorSecurity) {
		t.Fatal("Is matched a type the actor does not have")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	setSecret(t)

	secretBytes, err := loadSecret()
	if err != nil {
		t.Fatalf("load secret: %v", err)
	}
	past := time.Now().UTC().Add(-2 * time.Hour)
	claims := Claims{
		Role:           RoleAdmin,
		OrganizationID: "org1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "adm1",
			IssuedAt:  jwt.NewNumericDate(past),
			ExpiresAt: jwt.NewNumericDate(past.Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secretBytes)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token: got %v, want ErrInvalidToken", err)
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	setSecret(t)

	token, err := GenerateToken("adm1", "org1", RoleSecurity, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseAndValidate(token + "x"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("tampered token: got %v, want ErrInvalidToken", err)
	}
}

func TestSecurityRoleMapsToSecurityActor(t *testing.T) {
	setSecret(t)

	token, err := GenerateToken("sec1", "org1", RoleSecurity, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if actor := ActorFromClaims(claims); actor.Type != ActorSecurity {
		t.Fatalf("actor type = %s, want SECURITY", actor.Type)
	}
}

func TestPasswordHashAndVerify(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatal("hash stored in the clear")
	}
	if err := VerifyPassword(hash, "correct horse battery staple"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := VerifyPassword(hash, "wrong"); err == nil {
		t.Fatal("wrong password accepted")
	}
}

func TestAdminStoreUniqueEmail(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryAdmins()

	if err := store.CreateAdmin(ctx, &Admin{
		OrganizationID: "org1",
		Email:          "Admin@Acme.Test",
		PasswordHash:   "x",
		Role:           RoleAdmin,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := store.CreateAdmin(ctx, &Admin{
		OrganizationID: "org1",
		Email:          "admin@acme.test",
		PasswordHash:   "x",
		Role:           RoleAdmin,
	})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("duplicate email: got %v, want ErrAlreadyExists", err)
	}

	found, err := store.FindAdminByEmail(ctx, "ADMIN@acme.test")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !found.IsActive {
		t.Fatal("created admin should be active")
	}
}

func TestActorContext(t *testing.T) {
	ctx := ContextWithActor(context.Background(), Actor{Type: ActorKiosk, ID: "k1"})
	if got := ActorFromContext(ctx); got.Type != ActorKiosk || got.ID != "k1" {
		t.Fatalf("actor from context = %+v", got)
	}
	if got := ActorFromContext(context.Background()); got.Type != ActorAnonymous {
		t.Fatalf("empty context actor = %+v, want anonymous", got)
	}
}
