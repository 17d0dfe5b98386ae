// Package app implements the engine facade for kiln.
package app

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/engine/task"
)

// OperationKind identifies an asynchronous engine operation.
type OperationKind string

const (
	// OpBuild is a build operation.
	OpBuild OperationKind = "build"
	// OpClean is a clean operation.
	OpClean OperationKind = "clean"
)

// Operation is the handle for one asynchronous build or clean. The work
// runs on its own goroutine; the caller blocks only by calling Wait.
type Operation struct {
	ID   uuid.UUID
	Kind OperationKind

	done    chan struct{}
	summary *domain.BuildSummary
	err     error
}

// Wait blocks until the operation completes and returns its outcome.
func (o *Operation) Wait() (*domain.BuildSummary, error) {
	<-o.done
	return o.summary, o.err
}

// Finished reports whether the operation has completed.
func (o *Operation) Finished() bool {
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}

// Engine is the top-level facade owning the event sink, the stage registry,
// and the task manager. At most one operation runs at a time.
type Engine struct {
	manager  *task.Manager
	registry ports.StageRegistry
	sink     ports.EventSink

	mu      sync.Mutex
	current *Operation
}

// New creates an Engine.
func New(manager *task.Manager, registry ports.StageRegistry, sink ports.EventSink) *Engine {
	return &Engine{
		manager:  manager,
		registry: registry,
		sink:     sink,
	}
}

// Registry exposes the stage registry for read-only inspection.
func (e *Engine) Registry() ports.StageRegistry {
	return e.registry
}

// Build starts an asynchronous build. Starting one while another operation
// is outstanding is an error.
func (e *Engine) Build(proj *domain.Project, rebuild, release bool) (*Operation, error) {
	return e.start(OpBuild, func() (*domain.BuildSummary, error) {
		return e.manager.Build(proj, task.BuildOptions{Rebuild: rebuild, Release: release})
	})
}

// Clean starts an asynchronous clean of the project's artifacts.
func (e *Engine) Clean(proj *domain.Project) (*Operation, error) {
	return e.start(OpClean, func() (*domain.BuildSummary, error) {
		return e.manager.Clean(proj)
	})
}

// Cancel requests cooperative cancellation of the outstanding operation and
// blocks until it has fully drained. Calling it with no operation
// outstanding is an error.
func (e *Engine) Cancel() error {
	e.mu.Lock()
	cur := e.current
	e.mu.Unlock()
	if cur == nil || cur.Finished() {
		return domain.ErrNoOperation
	}
	if err := e.manager.Cancel(); err != nil && !errors.Is(err, domain.ErrNoOperation) {
		// ErrNoOperation here means the operation drained on its own between
		// the check above and the cancel; waiting below is all that is left.
		return err
	}
	<-cur.done
	return nil
}

// Close flushes and closes the event sink.
func (e *Engine) Close() error {
	return e.sink.Close()
}

func (e *Engine) start(kind OperationKind, run func() (*domain.BuildSummary, error)) (*Operation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current != nil && !e.current.Finished() {
		return nil, domain.ErrEngineBusy
	}
	op := &Operation{
		ID:   uuid.New(),
		Kind: kind,
		done: make(chan struct{}),
	}
	e.current = op
	go func() {
		op.summary, op.err = run()
		close(op.done)
	}()
	return op, nil
}
