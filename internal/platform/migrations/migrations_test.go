package migrations

import (
	"io/fs"
	"sort"
	"strings"
	"testing"
)

// The embedded migration set must stay well-formed: every version has an up
// and a down file, and versions are contiguous from 1.
func TestEmbeddedMigrationsWellFormed(t *testing.T) {
	entries, err := fs.ReadDir(files, "sql")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no embedded migrations")
	}

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		version, _, ok := strings.Cut(name, "_")
		if !ok {
			t.Fatalf("migration %s has no version prefix", name)
		}
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[version] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[version] = true
		default:
			t.Fatalf("migration %s is neither .up.sql nor .down.sql", name)
		}
	}

	var versions []string
	for v := range ups {
		if !downs[v] {
			t.Fatalf("version %s has no down migration", v)
		}
		versions = append(versions, v)
	}
	for v := range downs {
		if !ups[v] {
			t.Fatalf("version %s has no up migration", v)
		}
	}

	sort.Strings(versions)
	for i, v := range versions {
		if want := i + 1; atoiOr(v) != want {
			t.Fatalf("expected contiguous versions, got %v", versions)
		}
	}
}

func TestEmbeddedMigrationsNotEmpty(t *testing.T) {
	err := fs.WalkDir(files, "sql", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(files, path)
		if err != nil {
			return err
		}
		if len(strings.TrimSpace(string(data))) == 0 {
			t.Fatalf("migration %s is empty", path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk embedded migrations: %v", err)
	}
}

func atoiOr(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return -1
		}
		n = n*10 + int(r-'0')
	}
	return n
}
