// Package task implements the build task manager: the worker pool, the
// shared work queue, and the two-phase build and clean sequences.
package task

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/engine/pack"
	"go.trai.ch/kiln/internal/engine/rebuild"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// cleanStopStride bounds how many file deletions happen between
// cancellation checks during a clean.
const cleanStopStride = 32

type busyState int

const (
	busyIdle busyState = iota
	busyBuilding
	busyCleaning
)

// BuildOptions are the per-invocation build switches.
type BuildOptions struct {
	// Rebuild skips the rebuild decision and rebuilds every item.
	Rebuild bool
	// Release enables the project's compression settings.
	Release bool
}

// Manager owns the worker pool and the shared work queue. It runs the
// two-phase build (item phase, then packing) and the clean sequence, and
// holds the single cooperative cancellation flag and the busy state.
type Manager struct {
	registry ports.StageRegistry
	sink     ports.EventSink
	decider  *rebuild.Decider
	packer   *pack.Packer
	// workers is fixed at construction time.
	workers int

	// mu guards busy and stop; idle is signalled whenever busy returns to
	// the idle state so Cancel can block until the operation has drained.
	mu   sync.Mutex
	idle *sync.Cond
	busy busyState
	stop bool
}

// NewManager creates a Manager with a fixed worker count.
func NewManager(registry ports.StageRegistry, sink ports.EventSink, decider *rebuild.Decider, packer *pack.Packer, workers int) *Manager {
	if workers < 1 {
		workers = 1
	}
	m := &Manager{
		registry: registry,
		sink:     sink,
		decider:  decider,
		packer:   packer,
		workers:  workers,
	}
	m.idle = sync.NewCond(&m.mu)
	return m
}

// Busy reports whether a build or clean is currently running.
func (m *Manager) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy != busyIdle
}

// ShouldStop reports whether cancellation has been requested. Workers check
// it at loop boundaries; no thread is ever forcibly killed.
func (m *Manager) ShouldStop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stop
}

// Cancel requests cooperative cancellation and blocks until the active
// operation has fully drained. Calling it while idle is an error.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy == busyIdle {
		return domain.ErrNoOperation
	}
	m.stop = true
	for m.busy != busyIdle {
		m.idle.Wait()
	}
	return nil
}

// begin transitions Idle -> Busy. Starting an operation while one is
// running is a programming error, reported rather than silently ignored.
func (m *Manager) begin(s busyState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy != busyIdle {
		return domain.ErrEngineBusy
	}
	m.busy = s
	m.stop = false
	return nil
}

func (m *Manager) finish() {
	m.mu.Lock()
	m.busy = busyIdle
	m.idle.Broadcast()
	m.mu.Unlock()
}

// Build runs the two-phase build: the item phase across the worker pool,
// then the single-threaded packing phase. A failed or cancelled item phase
// never produces a pack.
func (m *Manager) Build(proj *domain.Project, opts BuildOptions) (*domain.BuildSummary, error) {
	if err := m.begin(busyBuilding); err != nil {
		return nil, err
	}
	defer m.finish()

	start := time.Now()
	m.sink.Emit(domain.LogEvent{
		Kind:    domain.EventBuildStarted,
		Level:   domain.LogLevelInfo,
		Message: "build started: " + proj.Name,
	})

	summary, err := m.runBuild(proj, opts, start)

	m.sink.Emit(domain.LogEvent{
		Kind:      domain.EventBuildFinished,
		Level:     finishLevel(summary),
		Message:   "build finished: " + proj.Name,
		Elapsed:   summary.Elapsed,
		Succeeded: summary.Succeeded,
		Cancelled: summary.Cancelled,
	})
	return summary, err
}

func (m *Manager) runBuild(proj *domain.Project, opts BuildOptions, start time.Time) (*domain.BuildSummary, error) {
	layout := proj.Layout
	if err := os.MkdirAll(layout.IntermediateDir, 0o750); err != nil {
		return failedSummary(start), zerr.Wrap(err, "failed to create intermediate directory")
	}
	if err := os.MkdirAll(layout.OutputDir, 0o750); err != nil {
		return failedSummary(start), zerr.Wrap(err, "failed to create output directory")
	}

	compress := proj.Compress && opts.Release

	// Item phase: exactly N workers race over the shared cursor.
	q := newQueue(proj.Items)
	results := make([]*domain.TaskResults, m.workers)
	var g errgroup.Group
	for i := 0; i < m.workers; i++ {
		w := newWorker(i, m, q, proj, opts, compress)
		results[i] = w.results
		g.Go(w.run)
	}
	_ = g.Wait() // workers record failures per item and never return errors

	cancelled := m.ShouldStop()
	summary := domain.Summarize(results, time.Since(start), cancelled)

	// A cancelled or failed item phase aborts before packing.
	if cancelled {
		return summary, domain.ErrCancelled
	}
	if summary.Failed > 0 {
		return summary, zerr.With(domain.ErrBuildFailed, "failed_items", summary.Failed)
	}

	// All cache hits: nothing changed, so the previous pack still stands.
	if summary.Built == 0 {
		summary.Elapsed = time.Since(start)
		return summary, nil
	}

	archives, err := m.packer.Run(layout, summary.Results, pack.Options{
		Packed:   proj.Packed,
		Compress: compress,
		High:     proj.HighCompress,
		Limit:    proj.PackSizeLimit,
	}, m.ShouldStop)
	summary.Elapsed = time.Since(start)
	if err != nil {
		summary.Succeeded = false
		summary.Cancelled = errors.Is(err, domain.ErrCancelled)
		return summary, err
	}
	summary.Archives = archives
	return summary, nil
}

// Clean deletes the cache and output artifacts of a project, checking the
// cancellation flag periodically rather than per file to bound latency
// without a syscall per check.
func (m *Manager) Clean(proj *domain.Project) (*domain.BuildSummary, error) {
	if err := m.begin(busyCleaning); err != nil {
		return nil, err
	}
	defer m.finish()

	start := time.Now()
	m.sink.Emit(domain.LogEvent{
		Kind:    domain.EventCleanStarted,
		Level:   domain.LogLevelInfo,
		Message: "clean started: " + proj.Name,
	})

	removed := 0
	err := m.cleanDirs(proj, &removed)
	cancelled := errors.Is(err, domain.ErrCancelled)

	summary := &domain.BuildSummary{
		Elapsed:   time.Since(start),
		Succeeded: err == nil,
		Cancelled: cancelled,
	}
	m.sink.Emit(domain.LogEvent{
		Kind:      domain.EventCleanFinished,
		Level:     finishLevel(summary),
		Message:   "clean finished: " + proj.Name,
		Elapsed:   summary.Elapsed,
		Succeeded: summary.Succeeded,
		Cancelled: cancelled,
	})
	return summary, err
}

func (m *Manager) cleanDirs(proj *domain.Project, removed *int) error {
	for _, dir := range []string{proj.Layout.IntermediateDir, proj.Layout.OutputDir} {
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return zerr.Wrap(err, "failed to walk artifact directory")
			}
			if d.IsDir() || !isArtifact(path) {
				return nil
			}
			if err := os.Remove(path); err != nil {
				return zerr.With(zerr.Wrap(err, "failed to remove artifact"), "path", path)
			}
			*removed++
			if *removed%cleanStopStride == 0 && m.ShouldStop() {
				return domain.ErrCancelled
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// isArtifact recognizes kiln-owned build outputs. Clean never touches
// foreign files that happen to live in the configured directories.
func isArtifact(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".kbo", ".kbc", ".kno", ".kpa", ".kpm":
		return true
	default:
		return false
	}
}

func finishLevel(s *domain.BuildSummary) domain.LogLevel {
	if s.Succeeded {
		return domain.LogLevelInfo
	}
	return domain.LogLevelError
}

func failedSummary(start time.Time) *domain.BuildSummary {
	return &domain.BuildSummary{Elapsed: time.Since(start)}
}

// queue is the shared work queue: a single cursor over the project's item
// list. The mutex is held only long enough to read and advance the cursor,
// never across I/O, and each index is handed to exactly one worker in
// strictly increasing, gap-free order.
type queue struct {
	mu    sync.Mutex
	items []domain.ContentItem
	next  int
}

func newQueue(items []domain.ContentItem) *queue {
	return &queue{items: items}
}

// claim atomically reads and advances the cursor. The caller constructs the
// outgoing build event outside the lock.
func (q *queue) claim() (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.next >= len(q.items) {
		return 0, false
	}
	i := q.next
	q.next++
	return i, true
}
