package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"comercio/backend/internal/domain"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	s.users[user.Username] = user
	return nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Role:      "admin",
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, store)
	_, err := manager.Login(domain.LoginRequest{
		Username: "admin",
		Password: "admin123",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	if users[0].Password == "admin123" {
		t.Fatalf("expected password to be upgraded from plain-text")
	}
	if !strings.HasPrefix(users[0].Password, "$2") {
		t.Fatalf("expected bcrypt password hash, got %s", users[0].Password)
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"exclerk": {
				Username:  "exclerk",
				Password:  "clerk123",
				Role:      "clerk",
				Active:    false,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, store)
	_, err := manager.Login(domain.LoginRequest{
		Username: "exclerk",
		Password: "clerk123",
	})
	if err == nil {
		t.Fatalf("expected inactive account login to fail")
	}
}

func TestCreateClerkStoresPasswordHash(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Role:      "admin",
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, store)
	clerk, err := manager.CreateClerk(domain.ClerkCreateRequest{
		Username: "cajero2",
		Password: "pass1234",
	})
	if err != nil {
		t.Fatalf("create clerk failed: %v", err)
	}
	if clerk.Username != "cajero2" || clerk.Role != "clerk" {
		t.Fatalf("unexpected clerk %+v", clerk)
	}

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	var found *domain.UserAccount
	for i := range users {
		if users[i].Username == "cajero2" {
			found = &users[i]
			break
		}
	}
	if found == nil {
		t.Fatalf("expected clerk to be saved")
	}
	if found.Password == "pass1234" {
		t.Fatalf("expected clerk password to be hashed")
	}
	if !strings.HasPrefix(found.Password, "$2") {
		t.Fatalf("expected bcrypt hash prefix, got %s", found.Password)
	}

	_, err = manager.Login(domain.LoginRequest{
		Username: "cajero2",
		Password: "pass1234",
	})
	if err != nil {
		t.Fatalf("login with new clerk failed: %v", err)
	}
}

func TestCreateClerkValidation(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, &userStoreStub{})

	cases := []domain.ClerkCreateRequest{
		{Username: "ab", Password: "pass1234"},
		{Username: "cajero nuevo", Password: "pass1234"},
		{Username: "cajero3", Password: "123"},
	}
	for i, req := range cases {
		if _, err := manager.CreateClerk(req); err == nil {
			t.Fatalf("case %d: expected validation error for %+v", i, req)
		}
	}
}

func TestCreateClerkRejectsDuplicateUsername(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, &userStoreStub{})

	if _, err := manager.CreateClerk(domain.ClerkCreateRequest{Username: "cajero4", Password: "pass1234"}); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := manager.CreateClerk(domain.ClerkCreateRequest{Username: "Cajero4", Password: "otro1234"}); err == nil {
		t.Fatalf("expected duplicate username to fail case-insensitively")
	}
}

func TestListClerksExcludesAdmins(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {Username: "admin", Password: "admin123", Role: "admin", Active: true},
			"zoe":   {Username: "zoe", Password: "clerk123", Role: "clerk", Active: true},
			"ana":   {Username: "ana", Password: "clerk123", Role: "clerk", Active: true},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, store)
	clerks := manager.ListClerks()
	if len(clerks) != 2 {
		t.Fatalf("expected 2 clerks, got %d", len(clerks))
	}
	if clerks[0].Username != "ana" || clerks[1].Username != "zoe" {
		t.Fatalf("expected sorted clerk list, got %+v", clerks)
	}
}

func TestParseTokenRoundTrip(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, &userStoreStub{})

	token, err := manager.sign("admin", "admin", time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	actor, err := manager.ParseToken(token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if actor.Username != "admin" || actor.Role != "admin" {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, &userStoreStub{})

	token, err := manager.sign("admin", "admin", time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := manager.ParseToken(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, &userStoreStub{})
	other := NewAuthManager("other-secret", time.Hour, &userStoreStub{})

	token, err := other.sign("admin", "admin", time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := manager.ParseToken(token); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}
