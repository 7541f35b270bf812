package database

import (
	"strings"
	"testing"
)

// 埋め込みマイグレーションにup/downのペアが揃っていることを検証
func TestMigrationsFS_ContainsPairedFiles(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("failed to read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no migration files embedded")
	}

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected migration file name: %s", name)
		}
	}

	for base := range ups {
		if !downs[base] {
			t.Errorf("missing down migration for %s", base)
		}
	}
	for base := range downs {
		if !ups[base] {
			t.Errorf("missing up migration for %s", base)
		}
	}
}

// 初期マイグレーションがコアテーブルと容量制約を定義していることを検証
func TestInitMigration_DefinesCapacityConstraint(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/000001_init.up.sql")
	if err != nil {
		t.Fatalf("failed to read init migration: %v", err)
	}
	sql := string(data)

	for _, table := range []string{"users", "sessions", "projects", "cart_items", "registrations"} {
		if !strings.Contains(sql, "CREATE TABLE "+table) {
			t.Errorf("init migration should create table %s", table)
		}
	}
	if !strings.Contains(sql, "registered_slots >= 0 AND registered_slots <= total_slots") {
		t.Error("projects table should carry the capacity CHECK constraint")
	}
	if !strings.Contains(sql, "UNIQUE (title, location, day)") {
		t.Error("projects table should be unique on (title, location, day)")
	}
}

// 不正なURLでマイグレーターの生成が失敗することを検証
func TestNewMigrator_InvalidURL(t *testing.T) {
	_, err := NewMigrator("not-a-database-url")
	if err == nil {
		t.Fatal("expected error for invalid database URL")
	}
}
