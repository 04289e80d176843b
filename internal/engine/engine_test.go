package engine_test

import (
	"context"
	"database/sql"
	"testing"

	"qimport/internal/engine"
	"qimport/internal/identity"
	"qimport/internal/storage"
	"qimport/internal/storage/sqlite"
	"qimport/pkg/records"
)

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	ddl := []string{
		`CREATE TABLE processus (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name VARCHAR(191) NOT NULL,
			slug VARCHAR(191)
		)`,
		`CREATE TABLE questions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			referentialId INTEGER NOT NULL,
			processId INTEGER NOT NULL,
			questionKey VARCHAR(255) NOT NULL,
			article VARCHAR(32),
			title VARCHAR(255),
			questionText TEXT,
			questionType VARCHAR(32),
			expectedEvidence TEXT,
			criticality VARCHAR(16),
			risk TEXT,
			risks TEXT,
			interviewFunctions TEXT,
			applicableProcesses TEXT,
			annexe TEXT,
			economicRole VARCHAR(32) NOT NULL,
			code VARCHAR(32),
			displayOrder INTEGER,
			createdAt TIMESTAMP
		)`,
	}
	for _, q := range ddl {
		if _, err := db.Exec(q); err != nil {
			t.Fatalf("ddl: %v", err)
		}
	}
	return storage.NewStore(db, sqlite.Dialect(), "")
}

func options(mode string, dryRun bool) engine.Options {
	return engine.Options{
		Mode:                mode,
		ReferentialID:       1,
		DefaultEconomicRole: "all",
		QuestionsTable:      "questions",
		ProcessTable:        "processus",
		BatchSize:           200,
		DryRun:              dryRun,
	}
}

func run(t *testing.T, store *storage.Store, opt engine.Options, recs []records.Record) *engine.Counters {
	t.Helper()
	ctx := context.Background()
	eng, err := engine.New(ctx, store, opt)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	counters, err := eng.Run(ctx, recs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return counters
}

func questionRows(t *testing.T, db *sql.DB, referential int) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM questions WHERE referentialId = ?`, referential).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func sampleRecords() []records.Record {
	return []records.Record{
		{
			"Processus concerné":         "Gestion des risques",
			"Clause":                     "7.1",
			"Intitulé":                   "Analyse de risque",
			"Question d’audit détaillée": "Le risque est-il documenté ?",
			"Criticité":                  "Majeur",
			"Risque":                     "Produit non conforme",
			"Preuves attendues":          "Rapport d'analyse",
			"Fonctions interrogées":      "QA; RA",
			"code":                       "A1",
		},
		{
			"Processus concerné":         "Gestion des risques",
			"Clause":                     "7.1",
			"Question d’audit détaillée": "Les mesures de maîtrise sont-elles vérifiées ?",
		},
		{
			// Same discriminants as the first row.
			"Processus concerné":         "Gestion des risques",
			"Clause":                     "7.1",
			"Question d’audit détaillée": "Le risque est-il documenté ?",
		},
		{
			"Processus concerné":         "Gestion des risques",
			"Clause":                     "7.1",
			"Question d’audit détaillée": nil,
		},
	}
}

func TestReplaceRun(t *testing.T) {
	store := openStore(t)
	c := run(t, store, options(engine.ModeReplace, false), sampleRecords())

	if c.Parsed != 4 || c.Inserted != 2 || c.Duplicates != 1 || c.Skipped != 1 {
		t.Fatalf("counters=%+v", c)
	}
	if c.ProcessesCreated != 1 {
		t.Fatalf("processesCreated=%d want 1", c.ProcessesCreated)
	}
	if c.PartitionBefore != 0 || c.PartitionAfter != 2 {
		t.Fatalf("partition %d -> %d", c.PartitionBefore, c.PartitionAfter)
	}
	if n := questionRows(t, store.DB, 1); n != 2 {
		t.Fatalf("rows=%d want 2", n)
	}

	var (
		key, role, risks, procs string
		order                   int
	)
	err := store.DB.QueryRow(`
		SELECT questionKey, economicRole, risks, applicableProcesses, displayOrder
		FROM questions WHERE code = 'A1'`).Scan(&key, &role, &risks, &procs, &order)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	wantKey := identity.Key("1", "7.1", "1", "Le risque est-il documenté ?")
	if key != wantKey {
		t.Fatalf("key=%q want %q", key, wantKey)
	}
	if role != "all" {
		t.Fatalf("economicRole=%q want default", role)
	}
	if risks != `["Produit non conforme"]` {
		t.Fatalf("risks=%q", risks)
	}
	if procs != `["Gestion des risques"]` {
		t.Fatalf("applicableProcesses=%q", procs)
	}
	if order != 1 {
		t.Fatalf("displayOrder=%d want 1", order)
	}

	// Second row of the same (process, article) group continues the order.
	err = store.DB.QueryRow(`SELECT displayOrder FROM questions WHERE code IS NULL`).Scan(&order)
	if err != nil {
		t.Fatalf("select second: %v", err)
	}
	if order != 2 {
		t.Fatalf("displayOrder=%d want 2", order)
	}
}

func TestReplaceCollapsesCaseVariantDuplicates(t *testing.T) {
	store := openStore(t)
	recs := []records.Record{
		{
			"Processus concerné":         "Process A",
			"Clause":                     "4.1",
			"Question d’audit détaillée": "Do X?",
		},
		{
			// Same entity and discriminants, different spelling.
			"Processus concerné":         "process a",
			"Clause":                     "4.1",
			"Question d’audit détaillée": "Do X?",
		},
	}
	c := run(t, store, options(engine.ModeReplace, false), recs)

	if c.ProcessesCreated != 1 || c.Inserted != 1 || c.Duplicates != 1 {
		t.Fatalf("counters=%+v", c)
	}
	var name string
	if err := store.DB.QueryRow(`SELECT name FROM processus`).Scan(&name); err != nil {
		t.Fatalf("select: %v", err)
	}
	if name != "Process A" {
		t.Fatalf("name=%q, first spelling wins", name)
	}
}

func TestReplaceIsIdempotent(t *testing.T) {
	store := openStore(t)
	run(t, store, options(engine.ModeReplace, false), sampleRecords())
	c := run(t, store, options(engine.ModeReplace, false), sampleRecords())

	if c.Inserted != 2 || c.ProcessesCreated != 0 {
		t.Fatalf("counters=%+v", c)
	}
	if c.PartitionBefore != 2 || c.PartitionAfter != 2 {
		t.Fatalf("partition %d -> %d", c.PartitionBefore, c.PartitionAfter)
	}
	if n := questionRows(t, store.DB, 1); n != 2 {
		t.Fatalf("rows=%d want 2", n)
	}
}

func TestReplaceTouchesOnlyItsPartition(t *testing.T) {
	store := openStore(t)
	seed := `INSERT INTO questions (referentialId, processId, questionKey, economicRole) VALUES (2, 9, 'q_other', 'all')`
	if _, err := store.DB.Exec(seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	run(t, store, options(engine.ModeReplace, false), sampleRecords())

	if n := questionRows(t, store.DB, 2); n != 1 {
		t.Fatalf("foreign partition rows=%d want 1", n)
	}
}

func TestReplaceDryRunWritesNothing(t *testing.T) {
	store := openStore(t)
	c := run(t, store, options(engine.ModeReplace, true), sampleRecords())

	if c.Inserted != 2 || c.ProcessesCreated != 1 {
		t.Fatalf("counters=%+v", c)
	}
	if c.PartitionAfter != 2 {
		t.Fatalf("partitionAfter=%d want synthesized 2", c.PartitionAfter)
	}
	if n := questionRows(t, store.DB, 1); n != 0 {
		t.Fatalf("rows=%d want 0", n)
	}
	var n int
	if err := store.DB.QueryRow(`SELECT COUNT(*) FROM processus`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("processus rows=%d want 0", n)
	}
}

// seedQuestion inserts one existing row and returns the seeded values.
func seedQuestion(t *testing.T, db *sql.DB, key, code, text string) {
	t.Helper()
	var codeVal any
	if code != "" {
		codeVal = code
	}
	_, err := db.Exec(`
		INSERT INTO questions (referentialId, processId, questionKey, article, questionText, economicRole, code)
		VALUES (1, 1, ?, '7.1', ?, 'all', ?)`, key, text, codeVal)
	if err != nil {
		t.Fatalf("seed question: %v", err)
	}
}

func seedProcess(t *testing.T, db *sql.DB, name string) {
	t.Helper()
	if _, err := db.Exec(`INSERT INTO processus (name) VALUES (?)`, name); err != nil {
		t.Fatalf("seed process: %v", err)
	}
}

func TestPatchByKey(t *testing.T) {
	store := openStore(t)
	seedProcess(t, store.DB, "Gestion des risques")
	text := "Le risque est-il documenté ?"
	seedQuestion(t, store.DB, identity.Key("1", "7.1", "1", text), "", text)

	recs := []records.Record{{
		"Processus concerné":         "Gestion des risques",
		"Clause":                     "7.1",
		"Question d’audit détaillée": text,
		"Risque":                     "Nouveau risque",
		"Preuves attendues":          "Nouvelle preuve",
	}}
	c := run(t, store, options(engine.ModePatch, false), recs)

	if c.UpdatedByKey != 1 || c.UpdatedByFallback != 0 || c.NotFound != 0 {
		t.Fatalf("counters=%+v", c)
	}

	var risk, risks, evidence string
	err := store.DB.QueryRow(`SELECT risk, risks, expectedEvidence FROM questions WHERE id = 1`).
		Scan(&risk, &risks, &evidence)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if risk != "Nouveau risque" || risks != `["Nouveau risque"]` || evidence != "Nouvelle preuve" {
		t.Fatalf("risk=%q risks=%q evidence=%q", risk, risks, evidence)
	}
}

func TestPatchByCodeFallback(t *testing.T) {
	store := openStore(t)
	seedProcess(t, store.DB, "Gestion des risques")
	// Legacy row: pre-key import, located by code only.
	seedQuestion(t, store.DB, "legacy", "A1", "Ancien libellé de la question")

	recs := []records.Record{{
		"Processus concerné":         "Gestion des risques",
		"Clause":                     "7.1",
		"Question d’audit détaillée": "Libellé remanié de la question",
		"code":                       "A1",
		"Risque":                     "Risque mis à jour",
	}}
	c := run(t, store, options(engine.ModePatch, false), recs)

	if c.UpdatedByFallback != 1 || c.UpdatedByKey != 0 {
		t.Fatalf("counters=%+v", c)
	}
}

func TestPatchByRowFallback(t *testing.T) {
	store := openStore(t)
	seedProcess(t, store.DB, "Gestion des risques")
	text := "Le risque est-il documenté ?"
	// Legacy key, no code: only the row discriminants can locate it.
	seedQuestion(t, store.DB, "legacy", "", text)

	recs := []records.Record{{
		"Processus concerné":         "Gestion des risques",
		"Clause":                     "7.1",
		"Question d’audit détaillée": text,
		"Risque":                     "Risque mis à jour",
	}}
	c := run(t, store, options(engine.ModePatch, false), recs)

	if c.UpdatedByFallback != 1 {
		t.Fatalf("counters=%+v", c)
	}
}

func TestPatchNotFoundIsNonDestructive(t *testing.T) {
	store := openStore(t)
	seedProcess(t, store.DB, "Gestion des risques")

	recs := []records.Record{{
		"Processus concerné":         "Gestion des risques",
		"Clause":                     "7.1",
		"Question d’audit détaillée": "Question absente du stock",
		"Risque":                     "peu importe",
	}}
	c := run(t, store, options(engine.ModePatch, false), recs)

	if c.NotFound != 1 || c.Inserted != 0 {
		t.Fatalf("counters=%+v", c)
	}
	if n := questionRows(t, store.DB, 1); n != 0 {
		t.Fatalf("rows=%d, patch must never insert", n)
	}
}

func TestPatchNeverCreatesProcesses(t *testing.T) {
	store := openStore(t)

	recs := []records.Record{{
		"Processus concerné":         "Processus inconnu",
		"Clause":                     "7.1",
		"Question d’audit détaillée": "Une question",
		"Risque":                     "r",
	}}
	c := run(t, store, options(engine.ModePatch, false), recs)

	if c.MissingLookup != 1 {
		t.Fatalf("counters=%+v", c)
	}
	var n int
	if err := store.DB.QueryRow(`SELECT COUNT(*) FROM processus`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("processus rows=%d want 0", n)
	}
}

func TestEmptyQuestionAlwaysSkipped(t *testing.T) {
	store := openStore(t)
	recs := []records.Record{
		{"Processus concerné": "Achats", "Clause": "8.4"},
		{"Clause": "8.4", "Question d’audit détaillée": "Sans processus"},
	}
	c := run(t, store, options(engine.ModeReplace, false), recs)
	if c.Skipped != 2 || c.Inserted != 0 {
		t.Fatalf("counters=%+v", c)
	}
}

func TestAnnexeLandsInNotesColumn(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	ddl := []string{
		`CREATE TABLE processus (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name VARCHAR(191) NOT NULL
		)`,
		`CREATE TABLE questions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			referentialId INTEGER NOT NULL,
			processId INTEGER NOT NULL,
			questionKey VARCHAR(255) NOT NULL,
			article VARCHAR(32),
			questionText TEXT,
			notes TEXT,
			economicRole VARCHAR(32),
			displayOrder INTEGER
		)`,
	}
	for _, q := range ddl {
		if _, err := db.Exec(q); err != nil {
			t.Fatalf("ddl: %v", err)
		}
	}
	store := storage.NewStore(db, sqlite.Dialect(), "")

	recs := []records.Record{{
		"Processus concerné":         "Gestion des risques",
		"Clause":                     "7.1",
		"Question d’audit détaillée": "Le risque est-il documenté ?",
		"ISO14971":                   "4.3",
		"MDR":                        "Annexe I",
	}}
	run(t, store, options(engine.ModeReplace, false), recs)

	var notes string
	if err := store.DB.QueryRow(`SELECT notes FROM questions`).Scan(&notes); err != nil {
		t.Fatalf("select: %v", err)
	}
	if notes != "4.3 | Annexe I" {
		t.Fatalf("notes=%q want cross-references joined", notes)
	}
}

func TestNewRejectsUnknownMode(t *testing.T) {
	store := openStore(t)
	_, err := engine.New(context.Background(), store, options("upsert", false))
	if err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
