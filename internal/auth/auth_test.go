package auth

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fortunehq/portfolio-api/internal/types"
)

const testSecret = "test-secret-not-for-production"

func newTestService(t *testing.T) *Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&types.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewService(testSecret, db)
}

func signupAlice(t *testing.T, service *Service) *TokenResponse {
	t.Helper()
	token, err := service.Signup(SignupRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	return token
}

func TestSignupIssuesValidToken(t *testing.T) {
	service := newTestService(t)
	token := signupAlice(t, service)

	if token.Token == "" {
		t.Fatal("empty token")
	}
	if !token.Expiration.After(time.Now()) {
		t.Fatalf("expiration %v is in the past", token.Expiration)
	}

	claims, err := service.validateToken(token.Token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Username != "alice" {
		t.Errorf("username claim = %q, want alice", claims.Username)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("email claim = %q", claims.Email)
	}
	if claims.Admin {
		t.Error("new account has admin claim")
	}
	if claims.Subject == "" {
		t.Error("subject claim empty, want user ID")
	}
}

func TestSignupRejectsDuplicates(t *testing.T) {
	service := newTestService(t)
	signupAlice(t, service)

	// Same username, different email.
	_, err := service.Signup(SignupRequest{
		Username: "alice",
		Email:    "alice2@example.com",
		Password: "another password",
	})
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("duplicate username: got %v, want ErrUserExists", err)
	}

	// Same email, different username.
	_, err = service.Signup(SignupRequest{
		Username: "alice2",
		Email:    "alice@example.com",
		Password: "another password",
	})
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("duplicate email: got %v, want ErrUserExists", err)
	}
}

func TestLogin(t *testing.T) {
	service := newTestService(t)
	signupAlice(t, service)

	token, err := service.Login(LoginRequest{
		Email:    "alice@example.com",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := service.validateToken(token.Token); err != nil {
		t.Fatalf("validate login token: %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	service := newTestService(t)
	signupAlice(t, service)

	_, err := service.Login(LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong password",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v, want ErrInvalidCredentials", err)
	}

	_, err = service.Login(LoginRequest{
		Email:    "nobody@example.com",
		Password: "correct horse battery",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: got %v, want ErrInvalidCredentials", err)
	}
}

func TestResolvePrincipal(t *testing.T) {
	service := newTestService(t)
	token := signupAlice(t, service)

	claims, err := service.validateToken(token.Token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}

	principal, err := service.ResolvePrincipal("alice")
	if err != nil {
		t.Fatalf("resolve principal: %v", err)
	}
	if principal.Username != "alice" {
		t.Errorf("username = %q, want alice", principal.Username)
	}
	if principal.UserID != claims.Subject {
		t.Errorf("user ID %q does not match token subject %q", principal.UserID, claims.Subject)
	}

	_, err = service.ResolvePrincipal("nobody")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user: got %v, want ErrUserNotFound", err)
	}
}

func TestTokenValidationRejectsWrongSecret(t *testing.T) {
	service := newTestService(t)
	token := signupAlice(t, service)

	other := &Service{jwtSecret: []byte("a different secret")}
	if _, err := other.validateToken(token.Token); err == nil {
		t.Fatal("token validated under wrong secret")
	}
}

func TestTokenValidationRejectsGarbage(t *testing.T) {
	service := newTestService(t)
	if _, err := service.validateToken("not.a.token"); err == nil {
		t.Fatal("garbage token validated")
	}
}
