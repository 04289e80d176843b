// This file adds a lightweight pre-flight validator for Config values. It
// performs static checks over a resolved Config and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests. No data
// is mutated by a run whose config fails validation.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that should be surfaced to users
	// but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "store.host"); Message is
// human-readable and names the missing element precisely.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a
// single error where convenient.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Validate performs static validation of a resolved Config. It does not
// mutate the config or touch the store; callers decide whether to treat
// warnings as fatal.
func Validate(cfg Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(cfg.SourcePath) == "" {
		issues = append(issues, Issue{SeverityError, "source_path",
			"source file path is required (flag -source or SOURCE_PATH)"})
	}
	if cfg.HeaderRow < 0 {
		issues = append(issues, Issue{SeverityError, "header_row",
			"header row index must not be negative"})
	}
	if cfg.Mode != ModeReplace && cfg.Mode != ModePatch {
		issues = append(issues, Issue{SeverityError, "mode",
			fmt.Sprintf("mode must be %q or %q, got %q", ModeReplace, ModePatch, cfg.Mode)})
	}
	if cfg.ReferentialID <= 0 {
		issues = append(issues, Issue{SeverityError, "referential_id",
			fmt.Sprintf("referential id must be positive, got %d", cfg.ReferentialID)})
	}
	if strings.TrimSpace(cfg.QuestionsTable) == "" {
		issues = append(issues, Issue{SeverityError, "questions_table",
			"target table name must not be empty"})
	}
	if strings.TrimSpace(cfg.ProcessTable) == "" {
		issues = append(issues, Issue{SeverityError, "process_table",
			"lookup table name must not be empty"})
	}
	if cfg.BatchSize <= 0 {
		issues = append(issues, Issue{SeverityWarning, "batch_size",
			fmt.Sprintf("batch_size=%d commits only at run end; long transactions on large imports", cfg.BatchSize)})
	}

	issues = append(issues, validateStore(cfg)...)
	return issues
}

// validateStore checks the connection parameters for the selected driver.
func validateStore(cfg Config) []Issue {
	var issues []Issue
	s := cfg.Store

	if cfg.urlErr != nil {
		issues = append(issues, Issue{SeverityError, "store.url", cfg.urlErr.Error()})
	}

	switch s.Driver {
	case "mysql", "postgres", "mssql":
		if s.Host == "" || s.User == "" || s.Database == "" {
			issues = append(issues, Issue{SeverityError, "store",
				"missing connection parameters: provide DB_HOST/DB_PORT/DB_USER/DB_PASSWORD/DB_NAME or DATABASE_URL"})
		}
	case "sqlite":
		if s.Database == "" {
			issues = append(issues, Issue{SeverityError, "store.database",
				"sqlite driver requires a database file path"})
		}
	case "":
		issues = append(issues, Issue{SeverityError, "store.driver", "driver must not be empty"})
	default:
		issues = append(issues, Issue{SeverityError, "store.driver",
			fmt.Sprintf("unknown driver %q (known: mysql, postgres, sqlite, mssql)", s.Driver)})
	}

	if s.MaxAttempts < 0 {
		issues = append(issues, Issue{SeverityError, "store.max_attempts",
			"connect attempts must not be negative"})
	}
	return issues
}
