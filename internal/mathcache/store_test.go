package mathcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "cache", "mathml.db"),
	})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func entries(t *testing.T, s *Store) int64 {
	t.Helper()
	st, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	return st.Entries
}

func TestGetPut(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	if _, ok, err := s.Get(ctx, `x^2`); err != nil || ok {
		t.Fatalf("Get on empty cache = %v, %v", ok, err)
	}
	mathml := `<math display="inline"><msup><mi>x</mi><mn>2</mn></msup></math>`
	if err := s.Put(ctx, `x^2`, mathml); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	got, ok, err := s.Get(ctx, `x^2`)
	if err != nil || !ok || got != mathml {
		t.Errorf("Get() = %q, %v, %v", got, ok, err)
	}
	if err := s.Put(ctx, `x^2`, "<math/>"); err != nil {
		t.Fatalf("Put() overwrite error: %v", err)
	}
	if n := entries(t, s); n != 1 {
		t.Errorf("Entries = %d, want 1", n)
	}
}

func TestPersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mathml.db")
	cfg := Config{Driver: DriverSQLite, DSN: path}

	s, err := Open(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	long := "<math>" + strings.Repeat("<mi>x</mi>", 200) + "</math>"
	if err := s.Put(ctx, `\alpha`, long); err != nil {
		t.Fatal(err)
	}
	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.PayloadBytes <= 0 || st.PayloadBytes >= int64(len(long)) {
		t.Errorf("PayloadBytes = %d, want compressed size below %d", st.PayloadBytes, len(long))
	}
	s.Close()

	s, err = Open(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, ok, err := s.Get(ctx, `\alpha`)
	if err != nil || !ok || got != long {
		t.Errorf("Get() after reopen = %v, %v", ok, err)
	}
}

func TestRetention(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	if err := s.Put(ctx, "a", "<math>a</math>"); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "b", "<math>b</math>"); err != nil {
		t.Fatal(err)
	}

	run := func() int64 {
		t.Helper()
		if err := s.Age(ctx); err != nil {
			t.Fatal(err)
		}
		if _, ok, err := s.Get(ctx, "a"); err != nil || !ok {
			t.Fatalf("Get(a) = %v, %v", ok, err)
		}
		n, err := s.Prune(ctx)
		if err != nil {
			t.Fatal(err)
		}
		return n
	}

	for i := 1; i <= DefaultMaxUnused; i++ {
		if n := run(); n != 0 {
			t.Fatalf("run %d pruned %d entries", i, n)
		}
	}
	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Entries != 2 || st.Stale != 1 {
		t.Errorf("after %d runs: Stats() = %+v", DefaultMaxUnused, st)
	}

	if n := run(); n != 1 {
		t.Errorf("run %d pruned %d entries, want 1", DefaultMaxUnused+1, n)
	}
	if n := entries(t, s); n != 1 {
		t.Errorf("Entries = %d, want 1", n)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	for _, k := range []string{"a", "b", "c"} {
		if err := s.Put(ctx, k, "<math/>"); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if n := entries(t, s); n != 0 {
		t.Errorf("Entries = %d after Clear", n)
	}
	if _, ok, _ := s.Get(ctx, "a"); ok {
		t.Error("Get(a) should miss after Clear")
	}
}

func TestMemoryDriver(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Config{Driver: DriverMemory, MaxEntries: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Put(ctx, "a", "<math>a</math>"); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "b", "<math>b</math>"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, "a"); ok {
		t.Error("memory tier should hold one entry")
	}
	if got, ok, _ := s.Get(ctx, "b"); !ok || got != "<math>b</math>" {
		t.Errorf("Get(b) = %q, %v", got, ok)
	}
	if err := s.Age(ctx); err != nil {
		t.Error(err)
	}
	if n, err := s.Prune(ctx); n != 0 || err != nil {
		t.Errorf("Prune() = %d, %v", n, err)
	}
	if n := entries(t, s); n != 1 {
		t.Errorf("Entries = %d, want 1", n)
	}
}

func TestOpenErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := Open(ctx, Config{Driver: "redis"}); err == nil {
		t.Error("unknown driver should fail")
	}
	if _, err := Open(ctx, Config{Driver: DriverPostgres}); err == nil {
		t.Error("postgres without dsn should fail")
	}

	dir := t.TempDir()
	_, err := Open(ctx, Config{Driver: DriverSQLite, DSN: dir})
	if err == nil {
		t.Fatal("opening a directory as a database should fail")
	}
	if !strings.HasPrefix(err.Error(), "mathcache: open sqlite: ") || errors.Unwrap(err) == nil {
		t.Errorf("error = %v, want a wrapped open error", err)
	}
}

func TestCompress(t *testing.T) {
	for _, s := range []string{"", "<math/>", strings.Repeat("é", 1000)} {
		data, err := compress(s)
		if err != nil {
			t.Fatal(err)
		}
		got, err := decompress(data)
		if err != nil || got != s {
			t.Errorf("decompress(compress(%.10q)) = %.10q, %v", s, got, err)
		}
	}
	if _, err := decompress([]byte("not xz")); err == nil {
		t.Error("decompress of garbage should fail")
	}
}

// TestPostgres runs against a real server when QUIZQTI_TEST_POSTGRES_DSN
// is set.
func TestPostgres(t *testing.T) {
	dsn := os.Getenv("QUIZQTI_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("QUIZQTI_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, Config{Driver: DriverPostgres, DSN: dsn})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, `\beta`, "<math>b</math>"); err != nil {
		t.Fatal(err)
	}
	s.mem.Clear()
	if got, ok, err := s.Get(ctx, `\beta`); err != nil || !ok || got != "<math>b</math>" {
		t.Errorf("Get() = %q, %v, %v", got, ok, err)
	}
}
