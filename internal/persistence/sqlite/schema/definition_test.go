package schema

import (
	"context"
	"testing"

	"github.com/example/embedded-store/internal/persistence/sqlite"
)

func execDefinition(t *testing.T, h *sqlite.Handle, op func(c *sqlite.Conn) bool) bool {
	t.Helper()

	var result bool
	err := h.Transaction(context.Background(), func(c *sqlite.Conn) bool {
		result = op(c)
		return true
	}).Err()
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}
	return result
}

func TestDefinitionCreateAtVersion(t *testing.T) {
	h := newSchemaHandle(t)
	ctx := context.Background()
	def := notesDefinition(2)

	if !execDefinition(t, h, func(c *sqlite.Conn) bool {
		return def.Create(ctx, c, 2)
	}) {
		t.Fatal("Create failed")
	}

	// Version 2 carries the created_at column with no upgrade hop.
	err := h.Write(ctx, "INSERT INTO notes (body, created_at) VALUES (?, ?)", "hi", 1).Err()
	if err != nil {
		t.Errorf("Insert against version 2 layout failed: %v", err)
	}
}

func TestDefinitionUpgradeChainsSteps(t *testing.T) {
	h := newSchemaHandle(t)
	ctx := context.Background()

	def := &Definition{
		Name:          "ledger",
		TargetVersion: 3,
		CreateSQL: func(int) []string {
			return []string{"CREATE TABLE ledger (id INTEGER PRIMARY KEY)"}
		},
		Steps: []Step{
			{From: 1, To: 2, SQL: []string{"ALTER TABLE ledger ADD COLUMN amount INTEGER"}},
			{From: 2, To: 3, SQL: []string{"ALTER TABLE ledger ADD COLUMN label TEXT"}},
		},
		Logger: discardLogger(),
	}

	if !execDefinition(t, h, func(c *sqlite.Conn) bool {
		return def.Create(ctx, c, 1) && def.Upgrade(ctx, c, 1, 3)
	}) {
		t.Fatal("Create or chained upgrade failed")
	}

	err := h.Write(ctx, "INSERT INTO ledger (amount, label) VALUES (?, ?)", 10, "a").Err()
	if err != nil {
		t.Errorf("Insert against fully upgraded layout failed: %v", err)
	}
}

func TestDefinitionUpgradeStopsAtRequestedVersion(t *testing.T) {
	h := newSchemaHandle(t)
	ctx := context.Background()

	def := &Definition{
		Name:          "ledger",
		TargetVersion: 3,
		CreateSQL: func(int) []string {
			return []string{"CREATE TABLE ledger (id INTEGER PRIMARY KEY)"}
		},
		Steps: []Step{
			{From: 1, To: 2, SQL: []string{"ALTER TABLE ledger ADD COLUMN amount INTEGER"}},
			{From: 2, To: 3, SQL: []string{"ALTER TABLE ledger ADD COLUMN label TEXT"}},
		},
		Logger: discardLogger(),
	}

	if !execDefinition(t, h, func(c *sqlite.Conn) bool {
		return def.Create(ctx, c, 1) && def.Upgrade(ctx, c, 1, 2)
	}) {
		t.Fatal("Partial upgrade failed")
	}

	// The step to version 3 must not have run.
	err := h.Write(ctx, "INSERT INTO ledger (label) VALUES (?)", "x").Err()
	if err == nil {
		t.Error("Expected the version 3 column to be absent")
	}
}

func TestDefinitionUpgradeGapFails(t *testing.T) {
	h := newSchemaHandle(t)
	ctx := context.Background()

	def := &Definition{
		Name:          "gappy",
		TargetVersion: 4,
		CreateSQL: func(int) []string {
			return []string{"CREATE TABLE gappy (id INTEGER PRIMARY KEY)"}
		},
		Steps: []Step{
			{From: 1, To: 2, SQL: []string{"ALTER TABLE gappy ADD COLUMN a INTEGER"}},
			{From: 3, To: 4, SQL: []string{"ALTER TABLE gappy ADD COLUMN b INTEGER"}},
		},
		Logger: discardLogger(),
	}

	upgraded := execDefinition(t, h, func(c *sqlite.Conn) bool {
		if !def.Create(ctx, c, 1) {
			t.Fatal("Create failed")
		}
		return def.Upgrade(ctx, c, 1, 4)
	})
	if upgraded {
		t.Error("Expected an upgrade across a missing hop to fail")
	}
}

func TestDefinitionRejectsInvalidName(t *testing.T) {
	h := newSchemaHandle(t)
	ctx := context.Background()

	def := &Definition{
		Name:          "bad name; DROP TABLE x",
		TargetVersion: 1,
		CreateSQL:     func(int) []string { return nil },
		Logger:        discardLogger(),
	}

	execDefinition(t, h, func(c *sqlite.Conn) bool {
		if def.Create(ctx, c, 1) {
			t.Error("Expected Create to reject an invalid table name")
		}
		if def.Drop(ctx, c) {
			t.Error("Expected Drop to reject an invalid table name")
		}
		return true
	})
}

func TestDefinitionExistsAndDrop(t *testing.T) {
	h := newSchemaHandle(t)
	ctx := context.Background()
	def := notesDefinition(1)

	execDefinition(t, h, func(c *sqlite.Conn) bool {
		if def.Exists(ctx, c) {
			t.Error("Expected a fresh database to lack the table")
		}
		if !def.Create(ctx, c, 1) {
			t.Fatal("Create failed")
		}
		if !def.Exists(ctx, c) {
			t.Error("Expected the table to exist after create")
		}
		if !def.Drop(ctx, c) {
			t.Error("Drop failed")
		}
		if def.Exists(ctx, c) {
			t.Error("Expected the table to be gone after drop")
		}
		// Dropping an absent table still succeeds.
		if !def.Drop(ctx, c) {
			t.Error("Expected dropping an absent table to succeed")
		}
		return true
	})
}
