package store

import (
	"context"
	"testing"
	"time"
)

func TestDump_DecodesFieldTypes(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	users := testCatalog().Entities["UserEntity"]

	id := "0190a4f2-6c4e-7cc1-9a4e-3f1d2b5c6a7e"
	_, err := s.Insert(ctx, users, map[string]any{
		"id":        id,
		"username":  "alice",
		"enabled":   true,
		"age":       30,
		"score":     1.5,
		"createdAt": "2024-03-01T10:00:00+02:00",
	})
	if err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	rows, err := s.Dump(ctx, users)
	if err != nil {
		t.Fatalf("Dump() failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	row := rows[0]

	if row["id"] != id {
		t.Errorf("id = %v, want %s", row["id"], id)
	}
	if row["username"] != "alice" {
		t.Errorf("username = %v, want alice", row["username"])
	}
	if row["email"] != nil {
		t.Errorf("email = %v, want nil", row["email"])
	}
	if row["enabled"] != true {
		t.Errorf("enabled = %v (%T), want true", row["enabled"], row["enabled"])
	}
	if row["age"] != int64(30) {
		t.Errorf("age = %v (%T), want int64 30", row["age"], row["age"])
	}
	if row["score"] != 1.5 {
		t.Errorf("score = %v, want 1.5", row["score"])
	}
	want := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	if got, ok := row["createdAt"].(time.Time); !ok || !got.Equal(want) {
		t.Errorf("createdAt = %v, want %v", row["createdAt"], want)
	}
}

func TestDump_EmptyTable(t *testing.T) {
	s := createTestStore(t)

	rows, err := s.Dump(context.Background(), testCatalog().Entities["Counter"])
	if err != nil {
		t.Fatalf("Dump() failed: %v", err)
	}
	if rows == nil {
		t.Error("Dump() returned nil, want empty slice")
	}
	if len(rows) != 0 {
		t.Errorf("got %d rows, want 0", len(rows))
	}
}

func TestDump_OrdersByKey(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	counters := testCatalog().Entities["Counter"]

	for _, id := range []int{3, 1, 2} {
		if _, err := s.Insert(ctx, counters, map[string]any{"id": id, "label": "x"}); err != nil {
			t.Fatalf("Insert() failed: %v", err)
		}
	}

	rows, err := s.Dump(ctx, counters)
	if err != nil {
		t.Fatalf("Dump() failed: %v", err)
	}
	for i, row := range rows {
		if row["id"] != int64(i+1) {
			t.Errorf("rows[%d].id = %v, want %d", i, row["id"], i+1)
		}
	}
}
