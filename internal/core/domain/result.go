package domain

import (
	"sort"
	"time"
)

// ItemResult is the outcome of processing one content item. It starts in a
// failed state and is moved exactly once to its terminal state; an early
// return leaves it failed.
type ItemResult struct {
	Item  *ContentItem
	Index int

	Succeeded bool
	Skipped   bool

	// Stage names the pipeline stage a failure occurred in.
	Stage string
	// Message carries the failure or warning text.
	Message string

	Elapsed    time.Duration
	Size       int64
	Compressed bool
	LoaderHash uint32
}

// NewItemResult creates a result in its initial failed state.
func NewItemResult(item *ContentItem, index int) *ItemResult {
	return &ItemResult{Item: item, Index: index}
}

// Pass marks the item as rebuilt successfully.
func (r *ItemResult) Pass(elapsed time.Duration, size int64) {
	r.Succeeded = true
	r.Skipped = false
	r.Elapsed = elapsed
	r.Size = size
}

// Skip marks the item as an up-to-date cache hit.
func (r *ItemResult) Skip(elapsed time.Duration, size int64) {
	r.Succeeded = true
	r.Skipped = true
	r.Elapsed = elapsed
	r.Size = size
}

// Fail records the failing stage and message. The result is already failed
// by construction; Fail only attaches context.
func (r *ItemResult) Fail(stage string, err error) {
	r.Succeeded = false
	r.Skipped = false
	r.Stage = stage
	if err != nil {
		r.Message = err.Error()
	}
}

// TaskResults aggregates the results produced by one worker. It is
// append-only during the item phase and read-only afterwards.
type TaskResults struct {
	Results []*ItemResult
	Passed  int
	Skipped int
	Failed  int
}

// Add appends a terminal result and updates the counters.
func (t *TaskResults) Add(r *ItemResult) {
	t.Results = append(t.Results, r)
	switch {
	case r.Succeeded && r.Skipped:
		t.Skipped++
	case r.Succeeded:
		t.Passed++
	default:
		t.Failed++
	}
}

// BuildSummary is the aggregate outcome of a build or clean operation.
type BuildSummary struct {
	// Results holds every processed item ordered by dequeue index. Items
	// never started (for example after a cancellation) have no entry.
	Results []*ItemResult

	Built   int
	Skipped int
	Failed  int

	// OutputBytes totals the payload size of successful items.
	OutputBytes int64
	// Archives is the number of pack archives written; zero in loose mode.
	Archives int

	Elapsed   time.Duration
	Succeeded bool
	Cancelled bool
}

// Summarize merges the per-worker aggregates into a build summary. Results
// are ordered by item index, which is deterministic regardless of which
// worker processed each item.
func Summarize(workers []*TaskResults, elapsed time.Duration, cancelled bool) *BuildSummary {
	s := &BuildSummary{Elapsed: elapsed, Cancelled: cancelled}
	for _, w := range workers {
		if w == nil {
			continue
		}
		s.Results = append(s.Results, w.Results...)
		s.Built += w.Passed
		s.Skipped += w.Skipped
		s.Failed += w.Failed
	}
	sort.Slice(s.Results, func(i, j int) bool {
		return s.Results[i].Index < s.Results[j].Index
	})
	for _, r := range s.Results {
		if r.Succeeded {
			s.OutputBytes += r.Size
		}
	}
	s.Succeeded = !cancelled && s.Failed == 0
	return s
}
