package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// AllSources is the provenance of a cross-source unit.
const AllSources = "ALL"

// AggregationMode selects the unit of summarization.
type AggregationMode string

const (
	ModePerSource   AggregationMode = "per-source"
	ModeCrossSource AggregationMode = "cross-source"
)

// Valid reports whether the mode is one of the supported values.
func (m AggregationMode) Valid() bool {
	return m == ModePerSource || m == ModeCrossSource
}

// SummarizationUnit is a provenance-tagged, size-capped bundle of admitted text.
type SummarizationUnit struct {
	Provenance string
	SourceID   string
	Mode       AggregationMode
	Lines      []string
	Bodies     []string
	Chars      int
	Truncated  bool
}

// Content renders the tagged lines that are submitted to the summarizer.
func (u SummarizationUnit) Content() string {
	return strings.Join(u.Lines, "")
}

// Empty reports whether nothing was admitted into the unit.
func (u SummarizationUnit) Empty() bool {
	return len(u.Lines) == 0
}

// Report is the distilled text generated for one unit.
type Report struct {
	RunID       string
	Provenance  string
	SourceID    string
	Mode        AggregationMode
	Text        string
	GeneratedAt time.Time
	Messages    int
}

// Chunk is a size-bounded slice of a report payload.
type Chunk struct {
	Index int
	Total int
	Text  string
}

// Len returns the chunk length in characters.
func (c Chunk) Len() int {
	return utf8.RuneCountInString(c.Text)
}

// DispatchStatus is the outcome of delivering one report to one sink.
type DispatchStatus string

const (
	StatusDelivered DispatchStatus = "delivered"
	StatusFailed    DispatchStatus = "failed"
)

// DispatchResult records the outcome for a (report, sink) pair.
type DispatchResult struct {
	Provenance string
	Sink       string
	Status     DispatchStatus
	Chunks     int
	Err        error
}

// Delivered reports whether every chunk reached the sink.
func (r DispatchResult) Delivered() bool {
	return r.Status == StatusDelivered
}

// RunStatus aggregates the counters a run reports when it finishes.
type RunStatus struct {
	RunID               string
	Window              TimeWindow
	StartedAt           time.Time
	FinishedAt          time.Time
	SourcesListed       int
	SourcesSelected     int
	SourcesRead         int
	SourcesUnreadable   int
	MessagesCollected   int
	MessagesAdmitted    int
	UnitsBuilt          int
	UnitsSummarized     int
	SummarizeFailures   int
	DeliveriesSucceeded int
	DeliveriesFailed    int
	Results             []DispatchResult
	Errors              []error
}
