package engine

import (
	"strings"

	"qimport/internal/sheet"
	"qimport/pkg/records"
)

// Source header aliases. The sheet resolver folds accents, apostrophes and
// whitespace on both sides, so each list only needs the spellings that differ
// beyond that (legacy column titles, renamed exports).
var (
	aliasProcess     = []string{"Processus concerné"}
	aliasClause      = []string{"Clause", "Clause MDR"}
	aliasTitle       = []string{"Intitulé"}
	aliasQuestion    = []string{"Question d’audit détaillée", "Question d'audit"}
	aliasType        = []string{"Type"}
	aliasRisk        = []string{"Risque", "Risques", "Risque en cas de NC"}
	aliasEvidence    = []string{"Preuves attendues"}
	aliasFunctions   = []string{"Fonctions interrogées"}
	aliasCriticality = []string{"Criticité"}
	aliasCode        = []string{"code"}
	aliasISO14971    = []string{"ISO14971"}
	aliasMDR         = []string{"MDR"}
)

// Incoming is one resolved logical row: semantic fields extracted from a
// source record, before any store interaction. All strings are trimmed and
// whitespace-collapsed; "" means absent.
type Incoming struct {
	// Row is the 1-based data-row index, for diagnostics only.
	Row int

	ProcessName  string
	Article      string
	Title        string
	QuestionText string
	QuestionType string
	Criticality  string
	Risk         string
	Evidence     string
	Functions    string
	Code         string
	// Annexe carries the ISO 14971 / MDR cross-references joined with " | ".
	Annexe string
}

// FromRecord resolves the semantic fields out of a parsed source row.
func FromRecord(rec records.Record, row int) *Incoming {
	get := func(aliases []string) string {
		v, _ := sheet.Resolve(rec, aliases...)
		return v
	}

	in := &Incoming{
		Row:          row,
		ProcessName:  get(aliasProcess),
		Article:      get(aliasClause),
		Title:        get(aliasTitle),
		QuestionText: get(aliasQuestion),
		QuestionType: get(aliasType),
		Criticality:  get(aliasCriticality),
		Risk:         get(aliasRisk),
		Evidence:     get(aliasEvidence),
		Functions:    get(aliasFunctions),
		Code:         get(aliasCode),
	}

	var refs []string
	for _, v := range []string{get(aliasISO14971), get(aliasMDR)} {
		if v != "" {
			refs = append(refs, v)
		}
	}
	in.Annexe = strings.Join(refs, " | ")

	return in
}

// splitList breaks a delimited cell ("QA, RA; Direction") into its parts.
func splitList(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ',', ';', '/', '|', '\n':
			return true
		}
		return false
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
