package credentials

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestFileSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")

	set := TokenSet{
		AccessToken:  "test-access-token",
		RefreshToken: "test-refresh-token",
		ExpiresAt:    time.Now().Add(time.Hour).Truncate(time.Second),
	}

	store := NewFile(path)
	if err := store.Save(set); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat created file: %v", err)
	}
	expectedPerm := os.FileMode(0600)
	if info.Mode().Perm() != expectedPerm {
		t.Errorf("Expected file permissions %v, got %v", expectedPerm, info.Mode().Perm())
	}

	dirInfo, err := os.Stat(filepath.Dir(path))
	if err != nil {
		t.Fatalf("Parent directory was not created: %v", err)
	}
	if dirInfo.Mode().Perm() != os.FileMode(0700) {
		t.Errorf("Expected directory permissions 0700, got %v", dirInfo.Mode().Perm())
	}

	// A fresh store instance must read the same tokens back from disk.
	reloaded := NewFile(path)
	if got := reloaded.AccessToken(); got != set.AccessToken {
		t.Errorf("AccessToken mismatch: expected %s, got %s", set.AccessToken, got)
	}
	if got := reloaded.RefreshToken(); got != set.RefreshToken {
		t.Errorf("RefreshToken mismatch: expected %s, got %s", set.RefreshToken, got)
	}
	if reloaded.Expired() {
		t.Error("Token expiring in an hour should not be expired")
	}
}

func TestFileMissingMeansNoTokens(t *testing.T) {
	store := NewFile(filepath.Join(t.TempDir(), "credentials.json"))

	if got := store.AccessToken(); got != "" {
		t.Errorf("Expected empty access token, got %s", got)
	}
	if got := store.RefreshToken(); got != "" {
		t.Errorf("Expected empty refresh token, got %s", got)
	}
	if !store.Expired() {
		t.Error("Empty store should report expired")
	}
}

func TestFileClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store := NewFile(path)

	set := TokenSet{AccessToken: "tok", RefreshToken: "ref", ExpiresAt: time.Now().Add(time.Hour)}
	if err := store.Save(set); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if FileExists(path) {
		t.Error("Credentials file should be removed after Clear")
	}
	if got := store.AccessToken(); got != "" {
		t.Errorf("Expected empty access token after Clear, got %s", got)
	}

	// Clearing twice is fine.
	if err := store.Clear(); err != nil {
		t.Fatalf("Second Clear failed: %v", err)
	}
}

func TestFileSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewFile(filepath.Join(dir, "credentials.json"))

	set := TokenSet{AccessToken: "tok", RefreshToken: "ref", ExpiresAt: time.Now().Add(time.Hour)}
	if err := store.Save(set); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to list directory: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "credentials.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Expected only credentials.json, got %v", names)
	}
}

func TestFileConcurrentSaves(t *testing.T) {
	store := NewFile(filepath.Join(t.TempDir(), "credentials.json"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			set := TokenSet{
				AccessToken:  "access",
				RefreshToken: "refresh",
				ExpiresAt:    time.Now().Add(time.Hour),
			}
			if err := store.Save(set); err != nil {
				t.Errorf("Save failed: %v", err)
			}
			_ = store.AccessToken()
		}()
	}
	wg.Wait()

	if got := store.AccessToken(); got != "access" {
		t.Errorf("Expected access token after concurrent saves, got %s", got)
	}
}
