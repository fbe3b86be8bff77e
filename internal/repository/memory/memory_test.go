package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/arklim/petclub-iam/internal/core/domain"
	"github.com/arklim/petclub-iam/internal/repository"
)

func TestKeyValueStore(t *testing.T) {
	store := NewKeyValueStore(time.Minute)
	ctx := context.Background()

	if err := store.Set(ctx, "a", "1", 50*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, ok, _ := store.Get(ctx, "a"); !ok || v != "1" {
		t.Fatalf("Get = %q, %v", v, ok)
	}
	if ok, _ := store.Exists(ctx, "a"); !ok {
		t.Fatalf("expected key to exist")
	}

	time.Sleep(80 * time.Millisecond)
	if ok, _ := store.Exists(ctx, "a"); ok {
		t.Fatalf("expected key to expire")
	}

	if err := store.Set(ctx, "b", "2", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	_ = store.Delete(ctx, "b")
	if _, ok, _ := store.Get(ctx, "b"); ok {
		t.Fatalf("expected key to be deleted")
	}

	if err := store.Set(ctx, "c", "3", 0); err == nil {
		t.Fatalf("expected ttl validation error")
	}
}

func TestUserRepository(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()

	user, err := domain.NewUser("u1", "Jane", "jane@example.com", "hash", domain.RoleUser)
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create: %v", err)
	}

	dup, _ := domain.NewUser("u2", "Other", "JANE@example.com", "hash", domain.RoleUser)
	if err := repo.Create(ctx, dup); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	got, err := repo.GetByEmail(ctx, "Jane@Example.com")
	if err != nil || got.ID != "u1" {
		t.Fatalf("GetByEmail = %+v, %v", got, err)
	}
	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	ticket, _ := domain.NewPasswordResetTicket(uuid.NewString(), time.Now().Add(5*time.Minute))
	if err := repo.SetResetTicket(ctx, "u1", &ticket); err != nil {
		t.Fatalf("SetResetTicket: %v", err)
	}
	got, _ = repo.GetByID(ctx, "u1")
	if got.ResetTicket == nil || got.ResetTicket.Token != ticket.Token {
		t.Fatalf("expected ticket to be stored, got %+v", got.ResetTicket)
	}

	got.ResetTicket.Token = "mutated"
	again, _ := repo.GetByID(ctx, "u1")
	if again.ResetTicket.Token != ticket.Token {
		t.Fatalf("stored ticket must not alias returned value")
	}

	if err := repo.ResetPassword(ctx, "u1", "new-hash"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	got, _ = repo.GetByID(ctx, "u1")
	if got.PasswordHash != "new-hash" || got.ResetTicket != nil {
		t.Fatalf("expected new hash and cleared ticket, got %+v", got)
	}

	users, err := repo.List(ctx, 10, 0)
	if err != nil || len(users) != 1 {
		t.Fatalf("List = %d, %v", len(users), err)
	}
	if users, _ := repo.List(ctx, 10, 5); len(users) != 0 {
		t.Fatalf("expected empty page past the end")
	}
}
