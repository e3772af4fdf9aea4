package outcome

import (
	"os"
	"path/filepath"
	"testing"

	"pgregory.net/rapid"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "state", "outcome.json"))
}

func TestRead_MissingFileIsEmpty(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	record := store.Read()
	if len(record) != 0 {
		t.Fatalf("expected empty record, got %v", record)
	}
	if _, ok := store.ReadKey("loginSuccess"); ok {
		t.Fatal("ReadKey on missing file reported presence")
	}
}

func TestRead_CorruptFileIsEmpty(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "outcome.json")
	if err := os.WriteFile(path, []byte(`{"loginSuccess": tr`), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(path)
	if record := store.Read(); len(record) != 0 {
		t.Fatalf("corrupt file should read as empty, got %v", record)
	}
}

func TestWrite_MergesAndFlushes(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	if err := store.Write(map[string]any{"loginSuccess": true}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := store.WriteKey("profileChecked", "yes"); err != nil {
		t.Fatalf("WriteKey: %v", err)
	}

	// A fresh store over the same file sees both keys: state is on disk,
	// not in memory.
	reopened := NewStore(store.Path())
	record := reopened.Read()
	if record["loginSuccess"] != true {
		t.Fatalf("loginSuccess = %v, want true", record["loginSuccess"])
	}
	if record["profileChecked"] != "yes" {
		t.Fatalf("profileChecked = %v, want yes", record["profileChecked"])
	}
}

func TestBool_AbsentAndNonBooleanReadFalse(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	if store.Bool("loginSuccess") {
		t.Fatal("absent key read as true")
	}
	if err := store.WriteKey("loginSuccess", "truthy string"); err != nil {
		t.Fatal(err)
	}
	if store.Bool("loginSuccess") {
		t.Fatal("non-boolean value read as true")
	}
	if err := store.WriteKey("loginSuccess", true); err != nil {
		t.Fatal(err)
	}
	if !store.Bool("loginSuccess") {
		t.Fatal("boolean true read as false")
	}
}

func TestClear_RemovesFileAndToleratesAbsence(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear on missing file: %v", err)
	}
	if err := store.WriteKey("k", 1); err != nil {
		t.Fatal(err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Fatal("outcome file still present after Clear")
	}
}

func TestWrite_UnwritableLocationFails(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(filepath.Join(blocker, "outcome.json"))
	if err := store.Write(map[string]any{"k": true}); err == nil {
		t.Fatal("expected write error when parent is a regular file")
	}
}

// Last-write-wins over arbitrary write sequences.
func testWriteThenRead_LastWriteWins(t *rapid.T) {
	dir, err := os.MkdirTemp("", "outcome-rapid-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)
	store := NewStore(filepath.Join(dir, "outcome.json"))

	keys := rapid.SliceOfN(rapid.StringMatching(`[a-zA-Z]{1,8}`), 1, 5).Draw(t, "keys")
	want := map[string]string{}

	writes := rapid.IntRange(1, 12).Draw(t, "writes")
	for i := 0; i < writes; i++ {
		key := rapid.SampledFrom(keys).Draw(t, "key")
		value := rapid.StringMatching(`[a-zA-Z0-9 ]{0,20}`).Draw(t, "value")
		if err := store.WriteKey(key, value); err != nil {
			t.Fatalf("WriteKey: %v", err)
		}
		want[key] = value
	}

	got := store.Read()
	for key, value := range want {
		if got[key] != value {
			t.Fatalf("key %q = %v, want %q", key, got[key], value)
		}
	}
	if len(got) != len(want) {
		t.Fatalf("record has %d keys, want %d", len(got), len(want))
	}
}

func TestWriteThenRead_LastWriteWins(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testWriteThenRead_LastWriteWins)
}
