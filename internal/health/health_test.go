package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/voiceforge/voiceforge/internal/character"
)

func ok(name string) Checker {
	return Checker{Name: name, Check: func(context.Context) error { return nil }}
}

func failing(name, msg string) Checker {
	return Checker{Name: name, Check: func(context.Context) error { return errors.New(msg) }}
}

func serveReadyz(t *testing.T, h *Handler, ctx context.Context) (int, result) {
	t.Helper()
	req := httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return rec.Code, body
}

func TestHealthz_AlwaysReturns200(t *testing.T) {
	h := New([]Checker{failing("db", "down")})

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name       string
		checkers   []Checker
		wantStatus int
		wantBody   string
		wantChecks map[string]string
	}{
		{
			name:       "no checkers",
			wantStatus: http.StatusOK,
			wantBody:   "ok",
			wantChecks: map[string]string{},
		},
		{
			name:       "all pass",
			checkers:   []Checker{ok("catalog"), ok("database")},
			wantStatus: http.StatusOK,
			wantBody:   "ok",
			wantChecks: map[string]string{"catalog": "ok", "database": "ok"},
		},
		{
			name:       "one fails",
			checkers:   []Checker{failing("database", "connection refused"), ok("catalog")},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "fail",
			wantChecks: map[string]string{"database": "fail: connection refused", "catalog": "ok"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := serveReadyz(t, New(tt.checkers), context.Background())
			if code != tt.wantStatus {
				t.Errorf("status = %d, want %d", code, tt.wantStatus)
			}
			if body.Status != tt.wantBody {
				t.Errorf("body status = %q, want %q", body.Status, tt.wantBody)
			}
			for k, want := range tt.wantChecks {
				if body.Checks[k] != want {
					t.Errorf("check %s = %q, want %q", k, body.Checks[k], want)
				}
			}
		})
	}
}

func TestReadyz_Timeout(t *testing.T) {
	slow := Checker{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	h := New([]Checker{slow}, WithTimeout(20*time.Millisecond))

	start := time.Now()
	code, body := serveReadyz(t, h, context.Background())
	if code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
	if body.Checks["slow"] != "fail: context deadline exceeded" {
		t.Errorf("slow check = %q", body.Checks["slow"])
	}
	if time.Since(start) > 2*time.Second {
		t.Error("readiness check did not respect the timeout")
	}
}

func TestRegister_RoutesWork(t *testing.T) {
	mux := http.NewServeMux()
	New([]Checker{ok("test")}).Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", rec.Code)
			}
		})
	}
}

func TestCatalogChecker(t *testing.T) {
	store := character.NewStore(nil)
	if err := Catalog(store).Check(context.Background()); err == nil {
		t.Error("empty store: want error, got nil")
	}

	cat, err := character.NewCatalog(character.Builtin(), "")
	if err != nil {
		t.Fatal(err)
	}
	store.Replace(cat)
	if err := Catalog(store).Check(context.Background()); err != nil {
		t.Errorf("loaded store: %v", err)
	}
}

func TestDirWritable(t *testing.T) {
	dir := t.TempDir()
	if err := DirWritable("static", dir).Check(context.Background()); err != nil {
		t.Errorf("temp dir: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("probe file left behind: %v", entries)
	}
	if err := DirWritable("static", filepath.Join(dir, "missing")).Check(context.Background()); err == nil {
		t.Error("missing dir: want error, got nil")
	}
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPing(t *testing.T) {
	c := Ping("postgres", pingFunc(func(context.Context) error { return errors.New("no route") }))
	if c.Name != "postgres" || c.Check(context.Background()) == nil {
		t.Errorf("Ping checker = %+v", c)
	}
}
