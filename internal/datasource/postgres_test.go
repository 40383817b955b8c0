package datasource

import (
	"context"
	"os"
	"testing"

	"go.uber.org/zap"
)

func TestPGStore_Scalar(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration test")
	}

	ctx := context.Background()
	store, err := NewPG(ctx, dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPG: %v", err)
	}
	defer store.Close()

	v, err := store.QueryScalar(ctx, `SELECT $1::bigint + 1`, int64(41))
	if err != nil {
		t.Fatalf("QueryScalar: %v", err)
	}
	n, ok, err := Int64(v)
	if err != nil || !ok || n != 42 {
		t.Fatalf("want 42, got %v ok=%v err=%v", v, ok, err)
	}

	rows, err := store.QueryRows(ctx, `SELECT g AS id FROM generate_series(1, 3) g ORDER BY g DESC`)
	if err != nil {
		t.Fatalf("QueryRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("want 3 rows, got %d", len(rows))
	}
	if first, _, _ := Int64(rows[0]["id"]); first != 3 {
		t.Fatalf("want first id 3, got %v", rows[0]["id"])
	}
}
