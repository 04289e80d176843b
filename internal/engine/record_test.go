package engine

import (
	"reflect"
	"testing"

	"qimport/pkg/records"
)

func TestFromRecord(t *testing.T) {
	rec := records.Record{
		"Processus concerné":         "Gestion des risques",
		"Clause":                     "7.1",
		"Intitulé":                   "Analyse de risque",
		"Question d’audit détaillée": "Le risque  est-il documenté ?",
		"Type":                       "check",
		"Criticité":                  "Majeur",
		"Risque":                     "Produit non conforme",
		"Preuves attendues":          "Rapport d'analyse",
		"Fonctions interrogées":      "QA; RA",
		"code":                       "A1",
		"ISO14971":                   "4.3",
		"MDR":                        "Annexe I",
	}

	in := FromRecord(rec, 3)
	if in.Row != 3 {
		t.Fatalf("row=%d", in.Row)
	}
	if in.ProcessName != "Gestion des risques" || in.Article != "7.1" {
		t.Fatalf("process=%q article=%q", in.ProcessName, in.Article)
	}
	if in.QuestionText != "Le risque est-il documenté ?" {
		t.Fatalf("question=%q, whitespace not collapsed", in.QuestionText)
	}
	if in.Annexe != "4.3 | Annexe I" {
		t.Fatalf("annexe=%q", in.Annexe)
	}
	if in.Code != "A1" || in.Criticality != "Majeur" {
		t.Fatalf("code=%q criticality=%q", in.Code, in.Criticality)
	}
}

func TestFromRecordAliasVariants(t *testing.T) {
	// Plain-ASCII headers resolve through the same aliases.
	rec := records.Record{
		"Processus concerne":         "Achats",
		"Clause MDR":                 "8.4",
		"Question d'audit detaillee": "La sélection est-elle tracée ?",
	}
	in := FromRecord(rec, 1)
	if in.ProcessName != "Achats" || in.Article != "8.4" {
		t.Fatalf("process=%q article=%q", in.ProcessName, in.Article)
	}
	if in.QuestionText == "" {
		t.Fatal("question not resolved through folded alias")
	}
}

func TestFromRecordAnnexeSingleSource(t *testing.T) {
	in := FromRecord(records.Record{"MDR": "Annexe I"}, 1)
	if in.Annexe != "Annexe I" {
		t.Fatalf("annexe=%q", in.Annexe)
	}
	if in := FromRecord(records.Record{}, 1); in.Annexe != "" {
		t.Fatalf("annexe=%q want empty", in.Annexe)
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"QA, RA; Direction", []string{"QA", "RA", "Direction"}},
		{"a/b|c\nd", []string{"a", "b", "c", "d"}},
		{"  seul  ", []string{"seul"}},
		{"", []string{}},
		{", ;", []string{}},
	}
	for _, tt := range tests {
		if got := splitList(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitList(%q)=%v want %v", tt.in, got, tt.want)
		}
	}
}
