package domain

import "time"

type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// SiteResult is the outcome of mapping one site. Aggregated holds every lot
// the aggregator computed, including lots suppressed from Data.
type SiteResult struct {
	Slug       string            `json:"slug"`
	Data       *SiteData         `json:"data,omitempty"`
	Files      []ClassifiedFile  `json:"files,omitempty"`
	Aggregated []LotCompleteness `json:"aggregated,omitempty"`
	Outputs    []string          `json:"outputs,omitempty"`
	Err        error             `json:"-"`
}

func (r SiteResult) Status() RunStatus {
	if r.Err != nil {
		return RunStatusFailed
	}
	return RunStatusSuccess
}

func (r SiteResult) UnclassifiedCount() int {
	n := 0
	for _, f := range r.Files {
		if f.IsUnclassified() {
			n++
		}
	}
	return n
}

// AverageCompleteness is the mean completeness over every aggregated lot.
func (r SiteResult) AverageCompleteness() float64 {
	if len(r.Aggregated) == 0 {
		return 0
	}
	total := 0
	for _, lot := range r.Aggregated {
		total += lot.Completeness
	}
	return float64(total) / float64(len(r.Aggregated))
}

func (r SiteResult) CompleteLots() int {
	n := 0
	for _, lot := range r.Aggregated {
		if lot.Complete() {
			n++
		}
	}
	return n
}

type RunReport struct {
	RunID      string       `json:"run_id"`
	DryRun     bool         `json:"dry_run"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Sites      []SiteResult `json:"sites"`
}

func (r RunReport) Failed() []SiteResult {
	out := make([]SiteResult, 0)
	for _, site := range r.Sites {
		if site.Err != nil {
			out = append(out, site)
		}
	}
	return out
}

// SiteRunRecord is the ledger row kept for every site of every run.
type SiteRunRecord struct {
	RunID             string    `json:"run_id"`
	Slug              string    `json:"slug"`
	Status            RunStatus `json:"status"`
	DryRun            bool      `json:"dry_run"`
	FilesTotal        int       `json:"files_total"`
	FilesUnclassified int       `json:"files_unclassified"`
	LotsTotal         int       `json:"lots_total"`
	LotsEmitted       int       `json:"lots_emitted"`
	LotsComplete      int       `json:"lots_complete"`
	AvgCompleteness   float64   `json:"avg_completeness"`
	Error             string    `json:"error,omitempty"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
}

// SiteDataUpdated is published after a site document has been written.
type SiteDataUpdated struct {
	RunID        string    `json:"run_id"`
	Slug         string    `json:"slug"`
	Outputs      []string  `json:"outputs"`
	Lots         int       `json:"lots"`
	CompleteLots int       `json:"complete_lots"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// InventoryUpdated asks workers to regenerate site data. Empty Sites means all.
type InventoryUpdated struct {
	Sites  []string `json:"sites,omitempty"`
	DryRun bool     `json:"dry_run,omitempty"`
}

// DuplicateSet groups inventory entries sharing a checksum, or name and size
// when no checksum is known.
type DuplicateSet struct {
	Key   string       `json:"key"`
	Files []FileRecord `json:"files"`
}
