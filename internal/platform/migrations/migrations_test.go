package migrations

import (
	"context"
	"errors"
	"path"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestApplyExecutesAllMigrations(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS products").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS orders").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS order_items").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ENABLE ROW LEVEL SECURITY").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := Apply(context.Background(), db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplyStopsAtFirstFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(".*").WillReturnError(errors.New("permission denied"))

	err = Apply(context.Background(), db)
	if err == nil || !strings.Contains(err.Error(), "002_products.sql") {
		t.Fatalf("expected failure naming 002_products.sql, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestNamesOrdered(t *testing.T) {
	names, err := Names()
	if err != nil {
		t.Fatalf("names: %v", err)
	}
	want := []string{"001_users.sql", "002_products.sql", "003_orders.sql", "004_order_items.sql", "005_row_level_security.sql"}
	if len(names) != len(want) {
		t.Fatalf("names = %v", names)
	}
	for i, n := range names {
		if path.Base(n) != want[i] {
			t.Fatalf("names[%d] = %s, want %s", i, n, want[i])
		}
	}
}

func TestRowLevelSecurityPolicies(t *testing.T) {
	body, err := files.ReadFile("sql/005_row_level_security.sql")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	sql := string(body)

	for _, table := range []string{"users", "products", "orders", "order_items"} {
		if !strings.Contains(sql, "ALTER TABLE "+table+" ENABLE ROW LEVEL SECURITY;") {
			t.Errorf("%s: row level security not enabled", table)
		}
		if !strings.Contains(sql, "CREATE POLICY "+table+"_select ON "+table+" FOR SELECT") {
			t.Errorf("%s: missing select policy", table)
		}
	}

	tests := []struct {
		name    string
		snippet string
		present bool
	}{
		{"profile insert limited to own customer row", "WITH CHECK (id = auth.uid() AND role = 'customer')", true},
		{"users never updatable", "ON users FOR UPDATE", false},
		{"users never deletable", "ON users FOR DELETE", false},
		{"orders never updatable", "ON orders FOR UPDATE", false},
		{"orders never deletable", "ON orders FOR DELETE", false},
		{"order lines never updatable", "ON order_items FOR UPDATE", false},
		{"orders hidden from anon", "ON orders FOR SELECT TO anon", false},
		{"order lines hidden from anon", "ON order_items FOR SELECT TO anon", false},
		{"guest orders insertable", "ON orders FOR INSERT TO anon, authenticated", true},
		{"product writes need admin", "ON products FOR INSERT TO authenticated\n    WITH CHECK (public.is_admin())", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := strings.Contains(sql, tt.snippet); got != tt.present {
				t.Fatalf("contains %q = %v, want %v", tt.snippet, got, tt.present)
			}
		})
	}
}
