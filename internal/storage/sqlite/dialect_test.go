package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"qimport/internal/storage"
)

func TestIntrospect(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		questionKey VARCHAR(255) NOT NULL,
		article VARCHAR(32),
		questionText TEXT
	)`)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	table, err := Dialect().Introspect(context.Background(), db, "", "questions")
	if err != nil {
		t.Fatalf("introspect: %v", err)
	}

	c, ok := table.Column("questionKey")
	if !ok {
		t.Fatal("questionKey not found")
	}
	if c.Nullable {
		t.Error("questionKey should be NOT NULL")
	}
	if c.MaxLen != 255 {
		t.Errorf("maxLen=%d want 255", c.MaxLen)
	}

	c, _ = table.Column("questionText")
	if !c.Nullable || c.MaxLen != 0 {
		t.Errorf("questionText=%+v", c)
	}
}

func TestIntrospectMissingTable(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	_, err = Dialect().Introspect(context.Background(), db, "", "nope")
	if !errors.Is(err, storage.ErrSchemaNotFound) {
		t.Fatalf("err=%v want ErrSchemaNotFound", err)
	}
}
