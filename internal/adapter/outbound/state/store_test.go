package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/reelgate/reelgate/internal/port/outbound"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestFileStore_MissingFile(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "state.json"), testLogger())

	if _, err := s.Get(context.Background(), "session.credential"); !errors.Is(err, outbound.ErrKeyNotFound) {
		t.Fatalf("Get() error = %v, want ErrKeyNotFound", err)
	}
	if s.Exists() {
		t.Error("Get() must not create the state file")
	}
}

func TestFileStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s := NewFileStore(path, testLogger())

	if err := s.Set(ctx, "session.credential", "tok"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set(ctx, "verification.expires_at", "2030-01-01T00:00:00Z"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// A second store on the same path sees the persisted values.
	other := NewFileStore(path, testLogger())
	got, err := other.Get(ctx, "session.credential")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "tok" {
		t.Errorf("Get() = %q, want %q", got, "tok")
	}

	if err := s.Delete(ctx, "session.credential"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := other.Get(ctx, "session.credential"); !errors.Is(err, outbound.ErrKeyNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrKeyNotFound", err)
	}
	if _, err := other.Get(ctx, "verification.expires_at"); err != nil {
		t.Errorf("unrelated key lost after delete: %v", err)
	}
}

func TestFileStore_FileLayoutAndBackup(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewFileStore(path, testLogger())

	if err := s.Set(ctx, "a", "1"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set(ctx, "b", "2"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read state file: %v", err)
	}
	var st StateFile
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("state file is not valid JSON: %v", err)
	}
	if st.Version != stateVersion {
		t.Errorf("Version = %q, want %q", st.Version, stateVersion)
	}
	if len(st.Values) != 2 {
		t.Errorf("len(Values) = %d, want 2", len(st.Values))
	}
	if st.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}

	bak, err := os.ReadFile(path + ".bak")
	if err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	var prev StateFile
	if err := json.Unmarshal(bak, &prev); err != nil {
		t.Fatalf("backup is not valid JSON: %v", err)
	}
	if len(prev.Values) != 1 {
		t.Errorf("backup has %d values, want 1", len(prev.Values))
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("file mode = %04o, want 0600", perm)
		}
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	s := NewFileStore(path, testLogger())

	if _, err := s.Get(context.Background(), "a"); err == nil {
		t.Fatal("expected parse error for corrupt state file")
	}
	if err := s.Set(context.Background(), "a", "1"); err == nil {
		t.Fatal("Set() must not overwrite a corrupt state file")
	}
}

func TestFileStore_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	a := NewFileStore(path, testLogger())
	b := NewFileStore(path, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if err := a.Set(ctx, fmt.Sprintf("a%d", i), "x"); err != nil {
				t.Errorf("a.Set() error = %v", err)
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			if err := b.Set(ctx, fmt.Sprintf("b%d", i), "y"); err != nil {
				t.Errorf("b.Set() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 20; i++ {
		for _, k := range []string{fmt.Sprintf("a%d", i), fmt.Sprintf("b%d", i)} {
			if _, err := a.Get(ctx, k); err != nil {
				t.Errorf("key %s lost: %v", k, err)
			}
		}
	}
}
