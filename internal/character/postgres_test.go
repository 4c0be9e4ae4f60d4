package character

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ---------------------------------------------------------------------------
// Test helpers: mock DB types
// ---------------------------------------------------------------------------

type mockRow struct {
	scanFunc func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

type mockRows struct {
	data   [][]any
	idx    int
	err    error
	closed bool
}

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.err }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }

func (r *mockRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error {
	return scanInto(r.data[r.idx-1], dest)
}

func scanInto(row []any, dest []any) error {
	if len(dest) != len(row) {
		return fmt.Errorf("scan: expected %d columns, got %d destinations", len(row), len(dest))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *[]byte:
			*d = v.([]byte)
		case *int:
			*d = v.(int)
		default:
			return fmt.Errorf("scan: unsupported type at index %d: %T", i, dest[i])
		}
	}
	return nil
}

type mockDB struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFunc != nil {
		return m.queryRowFunc(ctx, sql, args...)
	}
	return &mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
}

func (m *mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, sql, args...)
	}
	return &mockRows{}, nil
}

func (m *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.execFunc != nil {
		return m.execFunc(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

func voiceJSON(t *testing.T, v Voice) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal voice: %v", err)
	}
	return b
}

// ---------------------------------------------------------------------------
// PostgresStore
// ---------------------------------------------------------------------------

func TestPostgresStore_Migrate(t *testing.T) {
	t.Parallel()

	var gotSQL string
	db := &mockDB{execFunc: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
		gotSQL = sql
		return pgconn.CommandTag{}, nil
	}}
	if err := NewPostgresStore(db).Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if !strings.Contains(gotSQL, "CREATE TABLE IF NOT EXISTS characters") {
		t.Errorf("Migrate executed %q, want schema DDL", gotSQL)
	}

	failing := &mockDB{execFunc: func(context.Context, string, ...any) (pgconn.CommandTag, error) {
		return pgconn.CommandTag{}, errors.New("permission denied")
	}}
	if err := NewPostgresStore(failing).Migrate(context.Background()); err == nil {
		t.Error("Migrate with failing DB: want error, got nil")
	}
}

func TestPostgresStore_Get(t *testing.T) {
	t.Parallel()

	voice := Voice{ProviderVoiceID: "en-US-ken", BaseSpeed: 0.9, BasePitch: 1.2}
	db := &mockDB{queryRowFunc: func(_ context.Context, _ string, args ...any) pgx.Row {
		if args[0] != "sage" {
			return &mockRow{scanFunc: func(...any) error { return pgx.ErrNoRows }}
		}
		return &mockRow{scanFunc: func(dest ...any) error {
			return scanInto([]any{"sage", "The Sage", "old", "wise", "slow", voiceJSON(t, voice)}, dest)
		}}
	}}
	s := NewPostgresStore(db)

	ch, err := s.Get(context.Background(), "sage")
	if err != nil {
		t.Fatalf("Get(sage): %v", err)
	}
	if ch.Name != "The Sage" || ch.Voice != voice {
		t.Errorf("Get(sage) = %+v, want name The Sage and voice %+v", ch, voice)
	}

	if _, err := s.Get(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(nobody) error = %v, want ErrNotFound", err)
	}
}

func TestPostgresStore_List(t *testing.T) {
	t.Parallel()

	rows := &mockRows{data: [][]any{
		{"bard", "Bard", "", "", "", voiceJSON(t, Voice{BaseSpeed: 1.2})},
		{"sage", "Sage", "", "", "", voiceJSON(t, Voice{BasePitch: 0.8})},
	}}
	db := &mockDB{queryFunc: func(context.Context, string, ...any) (pgx.Rows, error) {
		return rows, nil
	}}

	got, err := NewPostgresStore(db).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("List returned %d characters, want 2", len(got))
	}
	if got[0].Voice.BaseSpeed != 1.2 || got[1].Voice.BasePitch != 0.8 {
		t.Errorf("List voices = %+v / %+v", got[0].Voice, got[1].Voice)
	}
	if !rows.closed {
		t.Error("List did not close rows")
	}
}

func TestPostgresStore_ListErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		db   *mockDB
	}{
		{
			name: "query error",
			db: &mockDB{queryFunc: func(context.Context, string, ...any) (pgx.Rows, error) {
				return nil, errors.New("boom")
			}},
		},
		{
			name: "rows error",
			db: &mockDB{queryFunc: func(context.Context, string, ...any) (pgx.Rows, error) {
				return &mockRows{err: errors.New("conn reset")}, nil
			}},
		},
		{
			name: "bad voice json",
			db: &mockDB{queryFunc: func(context.Context, string, ...any) (pgx.Rows, error) {
				return &mockRows{data: [][]any{{"x", "X", "", "", "", []byte("{")}}}, nil
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewPostgresStore(tt.db).List(context.Background()); err == nil {
				t.Error("List: want error, got nil")
			}
		})
	}
}

func TestPostgresStore_Upsert(t *testing.T) {
	t.Parallel()

	var gotArgs []any
	db := &mockDB{execFunc: func(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
		if !strings.Contains(sql, "ON CONFLICT (id) DO UPDATE") {
			t.Errorf("Upsert SQL missing conflict clause: %s", sql)
		}
		gotArgs = args
		return pgconn.CommandTag{}, nil
	}}
	s := NewPostgresStore(db)

	ch := Character{ID: "bard", Name: "Bard", Voice: Voice{ProviderVoiceID: "v1", BaseSpeed: 1.3}}
	if err := s.Upsert(context.Background(), ch); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(gotArgs) != 6 || gotArgs[0] != "bard" {
		t.Fatalf("Upsert args = %v", gotArgs)
	}
	var v Voice
	if err := json.Unmarshal(gotArgs[5].([]byte), &v); err != nil {
		t.Fatalf("unmarshal voice arg: %v", err)
	}
	if v != ch.Voice {
		t.Errorf("voice arg = %+v, want %+v", v, ch.Voice)
	}

	if err := s.Upsert(context.Background(), Character{}); err == nil {
		t.Error("Upsert invalid character: want error, got nil")
	}
}

func TestPostgresStore_DeleteAndPing(t *testing.T) {
	t.Parallel()

	var deleted string
	db := &mockDB{
		execFunc: func(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
			deleted = args[0].(string)
			return pgconn.CommandTag{}, nil
		},
		queryRowFunc: func(context.Context, string, ...any) pgx.Row {
			return &mockRow{scanFunc: func(dest ...any) error { return scanInto([]any{1}, dest) }}
		},
	}
	s := NewPostgresStore(db)
	if err := s.Delete(context.Background(), "bard"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted != "bard" {
		t.Errorf("deleted id = %q, want bard", deleted)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
