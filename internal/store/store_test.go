package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/xssautomation/xssbot/internal/model"
)

// backends returns a constructor for every Store implementation.
func backends() map[string]func(t *testing.T) Store {
	open := func(name string) func(t *testing.T) Store {
		return func(t *testing.T) Store {
			t.Helper()
			s, err := New(name)
			if err != nil {
				t.Fatalf("New(%q) error = %v", name, err)
			}
			t.Cleanup(func() { _ = s.Close() })
			return s
		}
	}
	return map[string]func(t *testing.T) Store{
		BackendMemory: open(BackendMemory),
		BackendSQLite: open(BackendSQLite),
	}
}

func sampleReport(domain model.Domain, vulns ...string) *model.Report {
	r := model.NewReport(domain)
	r.ScannedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.SetArtifact(model.HarvestedURLs, []string{"https://" + string(domain) + "/a", "https://" + string(domain) + "/b"})
	r.SetArtifact(model.Subdomains, []string{})
	r.SetArtifact(model.VulnerableURLs, vulns)
	return r
}

// TestStore tests behavior shared by every backend.
func TestStore(t *testing.T) {
	t.Parallel()

	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			t.Run("get missing", func(t *testing.T) {
				t.Parallel()

				s := open(t)
				report, ok, err := s.Get(context.Background(), "alice", "example.com")
				if err != nil || ok || report != nil {
					t.Errorf("Get() = %v, %v, %v; expected nil, false, nil", report, ok, err)
				}
				lines, ok, err := s.DrillDown(context.Background(), "alice", "example.com", model.VulnerableURLs)
				if err != nil || ok || lines != nil {
					t.Errorf("DrillDown() = %v, %v, %v; expected nil, false, nil", lines, ok, err)
				}
			})

			t.Run("put then get", func(t *testing.T) {
				t.Parallel()

				s := open(t)
				ctx := context.Background()
				in := sampleReport("example.com", "https://example.com/?q=<script>")
				if err := s.Put(ctx, "alice", "example.com", in); err != nil {
					t.Fatalf("Put() error = %v", err)
				}

				got, ok, err := s.Get(ctx, "alice", "example.com")
				if err != nil || !ok {
					t.Fatalf("Get() = %v, %v", ok, err)
				}
				if got.Domain != "example.com" || !got.ScannedAt.Equal(in.ScannedAt) {
					t.Errorf("metadata = %s %s", got.Domain, got.ScannedAt)
				}
				if !got.Vulnerable() {
					t.Error("expected vulnerable report")
				}
				for _, kind := range model.AllArtifactKinds() {
					wantN, wantOK := in.Count(kind)
					gotN, gotOK := got.Count(kind)
					if wantN != gotN || wantOK != gotOK {
						t.Errorf("Count(%s) = %d, %v; expected %d, %v", kind, gotN, gotOK, wantN, wantOK)
					}
				}
				if err := got.Validate(); err != nil {
					t.Errorf("Validate() error = %v", err)
				}
			})

			t.Run("drill down", func(t *testing.T) {
				t.Parallel()

				s := open(t)
				ctx := context.Background()
				if err := s.Put(ctx, "alice", "example.com", sampleReport("example.com", "v1", "v2")); err != nil {
					t.Fatalf("Put() error = %v", err)
				}

				testCases := []struct {
					kind     model.ArtifactKind
					expected []string
					ok       bool
				}{
					{model.VulnerableURLs, []string{"v1", "v2"}, true},
					{model.Subdomains, []string{}, true},
					{model.LiveURLs, nil, false},
				}
				for _, tc := range testCases {
					lines, ok, err := s.DrillDown(ctx, "alice", "example.com", tc.kind)
					if err != nil {
						t.Fatalf("DrillDown(%s) error = %v", tc.kind, err)
					}
					if ok != tc.ok || !slices.Equal(lines, tc.expected) {
						t.Errorf("DrillDown(%s) = %v, %v; expected %v, %v", tc.kind, lines, ok, tc.expected, tc.ok)
					}
				}
			})

			t.Run("last write wins", func(t *testing.T) {
				t.Parallel()

				s := open(t)
				ctx := context.Background()
				if err := s.Put(ctx, "alice", "example.com", sampleReport("example.com", "old")); err != nil {
					t.Fatal(err)
				}
				if err := s.Put(ctx, "alice", "example.com", sampleReport("example.com")); err != nil {
					t.Fatal(err)
				}
				got, _, err := s.Get(ctx, "alice", "example.com")
				if err != nil {
					t.Fatal(err)
				}
				if got.Vulnerable() {
					t.Error("expected the second report to replace the first")
				}
			})

			t.Run("identities are isolated", func(t *testing.T) {
				t.Parallel()

				s := open(t)
				ctx := context.Background()
				if err := s.Put(ctx, "alice", "example.com", sampleReport("example.com", "v")); err != nil {
					t.Fatal(err)
				}
				if _, ok, _ := s.Get(ctx, "bob", "example.com"); ok {
					t.Error("bob sees alice's report")
				}
				if _, ok, _ := s.Get(ctx, "alice", "other.com"); ok {
					t.Error("report visible under another domain")
				}
			})

			t.Run("returned copies are independent", func(t *testing.T) {
				t.Parallel()

				s := open(t)
				ctx := context.Background()
				in := sampleReport("example.com", "v")
				if err := s.Put(ctx, "alice", "example.com", in); err != nil {
					t.Fatal(err)
				}
				in.Artifacts[model.VulnerableURLs][0] = "mutated"

				got, _, _ := s.Get(ctx, "alice", "example.com")
				got.Artifacts[model.VulnerableURLs][0] = "mutated again"

				again, _, _ := s.Get(ctx, "alice", "example.com")
				if lines, _ := again.Lines(model.VulnerableURLs); lines[0] != "v" {
					t.Errorf("stored report changed: %q", lines[0])
				}
			})

			t.Run("rejects invalid input", func(t *testing.T) {
				t.Parallel()

				s := open(t)
				ctx := context.Background()
				broken := sampleReport("example.com")
				broken.Counts[model.LiveURLs] = 3

				testCases := []struct {
					name     string
					identity model.Identity
					domain   model.Domain
					report   *model.Report
				}{
					{"nil report", "alice", "example.com", nil},
					{"domain mismatch", "alice", "other.com", sampleReport("example.com")},
					{"empty identity", "", "example.com", sampleReport("example.com")},
					{"broken invariant", "alice", "example.com", broken},
				}
				for _, tc := range testCases {
					if err := s.Put(ctx, tc.identity, tc.domain, tc.report); err == nil {
						t.Errorf("%s: expected error", tc.name)
					}
				}
			})

			t.Run("closed", func(t *testing.T) {
				t.Parallel()

				s := open(t)
				if err := s.Close(); err != nil {
					t.Fatalf("Close() error = %v", err)
				}
				ctx := context.Background()
				if err := s.Put(ctx, "alice", "example.com", sampleReport("example.com")); !errors.Is(err, ErrClosed) {
					t.Errorf("Put() error = %v, expected ErrClosed", err)
				}
				if _, _, err := s.Get(ctx, "alice", "example.com"); !errors.Is(err, ErrClosed) {
					t.Errorf("Get() error = %v, expected ErrClosed", err)
				}
			})

			t.Run("concurrent writers", func(t *testing.T) {
				t.Parallel()

				s := open(t)
				ctx := context.Background()
				var wg sync.WaitGroup
				for i := range 20 {
					wg.Add(1)
					go func() {
						defer wg.Done()
						domain := model.Domain(fmt.Sprintf("site%d.com", i%5))
						identity := model.Identity(fmt.Sprintf("user%d", i%4))
						if err := s.Put(ctx, identity, domain, sampleReport(domain)); err != nil {
							t.Errorf("Put() error = %v", err)
						}
						if _, _, err := s.Get(ctx, identity, domain); err != nil {
							t.Errorf("Get() error = %v", err)
						}
					}()
				}
				wg.Wait()
			})
		})
	}
}

// TestNew tests backend selection.
func TestNew(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		backend string
		wantErr bool
	}{
		{"", false},
		{"memory", false},
		{" SQLite ", false},
		{"redis", true},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%q", tc.backend), func(t *testing.T) {
			t.Parallel()

			s, err := New(tc.backend)
			if tc.wantErr {
				if !errors.Is(err, ErrUnknownBackend) {
					t.Errorf("expected ErrUnknownBackend, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			_ = s.Close()
		})
	}
}

// TestParseBackend tests backend name normalization.
func TestParseBackend(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in   string
		want string
	}{
		{"", BackendMemory},
		{"Memory", BackendMemory},
		{" sqlite\n", BackendSQLite},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%q", tc.in), func(t *testing.T) {
			t.Parallel()

			got, err := ParseBackend(tc.in)
			if err != nil {
				t.Fatalf("ParseBackend() error = %v", err)
			}
			if got != tc.want {
				t.Errorf("ParseBackend(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}

	if _, err := ParseBackend("postgres"); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("expected ErrUnknownBackend, got %v", err)
	}
}

// TestSQLiteStoresAreSeparate tests that two SQLite stores do not share
// the in-memory database.
func TestSQLiteStoresAreSeparate(t *testing.T) {
	t.Parallel()

	a, err := OpenSQLite()
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := OpenSQLite()
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	ctx := context.Background()
	if err := a.Put(ctx, "alice", "example.com", sampleReport("example.com")); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := b.Get(ctx, "alice", "example.com"); ok {
		t.Error("report leaked between stores")
	}
}

// TestSQLiteReadDuringWrite tests that reading one key does not wait for an
// unfinished write to another key.
func TestSQLiteReadDuringWrite(t *testing.T) {
	t.Parallel()

	s, err := OpenSQLite()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Put(ctx, "alice", "a.com", sampleReport("a.com", "https://a.com/?q=x")); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "bob", "b.com", sampleReport("b.com")); err != nil {
		t.Fatal(err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback() //nolint:errcheck // test cleanup
	if _, err := tx.ExecContext(ctx,
		`UPDATE reports SET vulnerable = 1 WHERE identity = ? AND domain = ?`, "bob", "b.com"); err != nil {
		t.Fatalf("update: %v", err)
	}

	readCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	report, ok, err := s.Get(readCtx, "alice", "a.com")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v while another key was being written", ok, err)
	}
	if report.Domain != "a.com" {
		t.Errorf("Get() domain = %q", report.Domain)
	}
	lines, ok, err := s.DrillDown(readCtx, "alice", "a.com", model.VulnerableURLs)
	if err != nil || !ok || len(lines) != 1 {
		t.Errorf("DrillDown() = %q, %v, %v while another key was being written", lines, ok, err)
	}
}

// TestSQLiteSurvivesIdlePool tests that the database outlives its pooled
// connections.
func TestSQLiteSurvivesIdlePool(t *testing.T) {
	t.Parallel()

	s, err := OpenSQLite()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Put(ctx, "alice", "a.com", sampleReport("a.com")); err != nil {
		t.Fatal(err)
	}
	s.db.SetMaxIdleConns(0)
	s.db.SetMaxIdleConns(sqlitePoolSize)

	if _, ok, err := s.Get(ctx, "alice", "a.com"); err != nil || !ok {
		t.Errorf("Get() = %v, %v after the pool was drained", ok, err)
	}
}
