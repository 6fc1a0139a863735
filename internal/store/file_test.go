package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleCredentials() []Credential {
	return []Credential{
		{
			ID:           12345678,
			Name:         "Ada Lovelace",
			AccessToken:  "a1b2c3d4e5f6",
			RefreshToken: "r1" + strings.Repeat("x", 4096),
			ExpiresAt:    1750000000,
		},
		{
			ID:           87654321,
			Name:         "Grace Hopper",
			AccessToken:  "tok-2",
			RefreshToken: "ref-2",
			ExpiresAt:    1<<40 + 7, // well past 2038
		},
		{Name: "Pending Person"}, // never authorized
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "users.json")
	fs := NewFileStore(path)

	want := sampleCredentials()
	if err := fs.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := NewFileStore(path).Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFileStoreMissingFile(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "nope.json"))

	got, err := fs.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Load() = %v, want empty", got)
	}
}

func TestFileStoreMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	if err := os.WriteFile(path, []byte(`[{"id": "not a number"`), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewFileStore(path).Load(context.Background()); err == nil {
		t.Error("expected error for malformed file, got nil")
	}
}

func TestFileStoreReadsOriginalFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	raw := `[
  {
    "access_token": "abc",
    "refresh_token": "def",
    "expires_at": 1718000000,
    "name": "Test Runner"
  },
  {}
]`
	if err := os.WriteFile(path, []byte(raw), 0600); err != nil {
		t.Fatal(err)
	}

	got, err := NewFileStore(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := []Credential{
		{Name: "Test Runner", AccessToken: "abc", RefreshToken: "def", ExpiresAt: 1718000000},
		{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs := NewFileStore(filepath.Join(dir, "users.json"))

	for i := 0; i < 3; i++ {
		if err := fs.Save(ctx, sampleCredentials()); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "users.json" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory contains %v, want only users.json", names)
	}
}
