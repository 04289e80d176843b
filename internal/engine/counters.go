package engine

import (
	"log"

	"qimport/internal/metrics"
)

// Counters accumulates the outcome of a run. One counter is bumped per row,
// plus the lookup and partition totals gathered at the edges of the run.
type Counters struct {
	Parsed            int
	Inserted          int
	UpdatedByKey      int
	UpdatedByFallback int
	Skipped           int
	Duplicates        int
	MissingLookup     int
	NotFound          int
	ProcessesCreated  int
	PartitionBefore   int
	PartitionAfter    int
}

// Updated is the total number of rows patched, by any strategy.
func (c *Counters) Updated() int {
	return c.UpdatedByKey + c.UpdatedByFallback
}

// Log prints the summary block and pushes the totals to the metrics backend.
func (c *Counters) Log(mode string, dryRun bool) {
	tag := ""
	if dryRun {
		tag = " (dry run)"
	}
	log.Printf("=== import summary: mode=%s%s ===", mode, tag)
	log.Printf("rows parsed:        %d", c.Parsed)
	log.Printf("inserted:           %d", c.Inserted)
	log.Printf("updated by key:     %d", c.UpdatedByKey)
	log.Printf("updated by match:   %d", c.UpdatedByFallback)
	log.Printf("skipped:            %d", c.Skipped)
	log.Printf("duplicates:         %d", c.Duplicates)
	if c.MissingLookup > 0 {
		log.Printf("missing lookups:    %d", c.MissingLookup)
	}
	if c.NotFound > 0 {
		log.Printf("not found:          %d", c.NotFound)
	}
	log.Printf("processes created:  %d", c.ProcessesCreated)
	log.Printf("partition rows:     %d -> %d", c.PartitionBefore, c.PartitionAfter)

	labels := metrics.Labels{"mode": mode}
	metrics.IncCounter("import.rows.parsed", float64(c.Parsed), labels)
	metrics.IncCounter("import.rows.inserted", float64(c.Inserted), labels)
	metrics.IncCounter("import.rows.updated", float64(c.Updated()), labels)
	metrics.IncCounter("import.rows.skipped", float64(c.Skipped), labels)
	metrics.IncCounter("import.rows.duplicate", float64(c.Duplicates), labels)
	metrics.IncCounter("import.lookups.created", float64(c.ProcessesCreated), labels)
}
