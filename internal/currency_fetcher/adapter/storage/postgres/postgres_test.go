package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type MockRow struct {
	ScanFunc func(dest ...any) error
}

func (m *MockRow) Scan(dest ...any) error {
	return m.ScanFunc(dest...)
}

type MockDB struct {
	ExecFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
}

func (m *MockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return m.ExecFunc(ctx, sql, args...)
}

func (m *MockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return m.QueryRowFunc(ctx, sql, args...)
}

// memDB keeps rate_documents rows in a map.
func memDB() (*MockDB, map[string]string) {
	rows := make(map[string]string)

	db := &MockDB{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			if strings.Contains(sql, "INSERT INTO rate_documents") {
				rows[args[0].(string)] = args[1].(string)
				return pgconn.NewCommandTag("INSERT 0 1"), nil
			}
			return pgconn.NewCommandTag("CREATE TABLE"), nil
		},
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &MockRow{ScanFunc: func(dest ...any) error {
				body, ok := rows[args[0].(string)]
				if !ok {
					return pgx.ErrNoRows
				}
				*dest[0].(*string) = body
				return nil
			}}
		},
	}

	return db, rows
}

func TestStorage_Document(t *testing.T) {
	db, rows := memDB()
	s := NewStorage(db, "")
	ctx := context.Background()

	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	text, ok, err := s.ReadDocument(ctx)
	if err != nil || ok || text != "" {
		t.Fatalf("Expected absent document, got: %q, %v, %v", text, ok, err)
	}

	const doc = `{"timestamp": 1, "rates": {"EUR": 0.9}}`
	if err := s.WriteDocument(ctx, doc); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if rows[DefaultName] != doc {
		t.Errorf("Expected row %s: %s, got: %s", DefaultName, doc, rows[DefaultName])
	}

	text, ok, err = s.ReadDocument(ctx)
	if err != nil || !ok || text != doc {
		t.Errorf("Expected document %s, got: %q, %v, %v", doc, text, ok, err)
	}
}

func TestStorage_Errors(t *testing.T) {
	dbErr := errors.New("connection refused")

	db := &MockDB{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			return pgconn.CommandTag{}, dbErr
		},
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &MockRow{ScanFunc: func(dest ...any) error { return dbErr }}
		},
	}
	s := NewStorage(db, "eur")
	ctx := context.Background()

	testCases := []struct {
		name string
		call func() error
	}{
		{name: "EnsureSchema", call: func() error { return s.EnsureSchema(ctx) }},
		{name: "WriteDocument", call: func() error { return s.WriteDocument(ctx, "{}") }},
		{name: "ReadDocument", call: func() error {
			_, _, err := s.ReadDocument(ctx)
			return err
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.call(); !errors.Is(err, dbErr) {
				t.Errorf("Expected error: %v, got: %v", dbErr, err)
			}
		})
	}
}

func TestStorage_LocationUsesName(t *testing.T) {
	db, rows := memDB()
	s := NewStorage(db, "historical")

	loc := s.Location()
	if err := loc.Write(context.Background(), "doc"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if rows["historical"] != "doc" {
		t.Errorf("Expected row historical: doc, got: %v", rows)
	}
}
