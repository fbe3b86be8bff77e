package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/arklim/petclub-iam/internal/infra/config"
)

func TestDSNEscapesCredentials(t *testing.T) {
	dsn := DSN(config.PostgresSettings{
		Host:     "db",
		Port:     5432,
		User:     "petclub",
		Password: "p@ss/word",
		Database: "petclub",
		SSLMode:  "disable",
	})

	want := "postgres://petclub:p%40ss%2Fword@db:5432/petclub?sslmode=disable"
	if dsn != want {
		t.Fatalf("DSN = %q, want %q", dsn, want)
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(Migrations(), "migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least one migration")
	}

	body, err := fs.ReadFile(Migrations(), "migrations/"+entries[0].Name())
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	for _, marker := range []string{"-- +goose Up", "-- +goose Down", "reset_token_expires"} {
		if !strings.Contains(string(body), marker) {
			t.Fatalf("migration missing %q", marker)
		}
	}
}
