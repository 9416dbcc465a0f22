package database

import (
	"io/fs"
	"strconv"
	"strings"
	"testing"
)

// latestEmbeddedVersion は埋め込みマイグレーションの最大バージョンを返す。
func latestEmbeddedVersion(t *testing.T) uint {
	t.Helper()
	files, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	if err != nil {
		t.Fatalf("failed to list migrations: %v", err)
	}
	var latest uint
	for _, f := range files {
		prefix, _, _ := strings.Cut(strings.TrimPrefix(f, "migrations/"), "_")
		v, err := strconv.ParseUint(prefix, 10, 32)
		if err != nil {
			t.Fatalf("migration %s has no numeric version: %v", f, err)
		}
		if uint(v) > latest {
			latest = uint(v)
		}
	}
	return latest
}

// DBに接続せずに確認できる埋め込みマイグレーションの整合性
func TestEmbeddedMigrations_EveryUpHasDown(t *testing.T) {
	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	if err != nil {
		t.Fatalf("failed to list migrations: %v", err)
	}
	if len(ups) == 0 {
		t.Fatal("no migrations embedded")
	}
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(migrationsFS, down); err != nil {
			t.Errorf("%s has no matching down migration", up)
		}
	}
	if got := latestEmbeddedVersion(t); got != uint(len(ups)) {
		t.Errorf("latest version = %d, want %d (versions should be contiguous)", got, len(ups))
	}
}

func TestEmbeddedMigrations_TasksAreOwnerScoped(t *testing.T) {
	data, err := fs.ReadFile(migrationsFS, "migrations/000003_create_tasks.up.sql")
	if err != nil {
		t.Fatalf("failed to read tasks migration: %v", err)
	}
	sql := string(data)

	for _, want := range []string{
		"ENABLE ROW LEVEL SECURITY",
		"FORCE ROW LEVEL SECURITY",
		"current_setting('app.user_id', true)",
		"WITH CHECK",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("tasks migration should contain %q", want)
		}
	}
}

// アプリ用ロールは許可リストに触れられないこと
func TestEmbeddedMigrations_AppRoleCannotReadAllowList(t *testing.T) {
	data, err := fs.ReadFile(migrationsFS, "migrations/000005_create_app_role.up.sql")
	if err != nil {
		t.Fatalf("failed to read role migration: %v", err)
	}
	sql := string(data)

	if !strings.Contains(sql, "NOBYPASSRLS") {
		t.Error("taskman_app must not bypass RLS")
	}
	if strings.Contains(sql, "allowed_users") {
		t.Error("taskman_app must not be granted access to allowed_users")
	}
}
