package task

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/engine/pack"
	"go.trai.ch/zerr"
)

// worker pulls items from the shared queue and runs the import, process,
// write pipeline for each. Failures are isolated per item: one item's error
// never aborts sibling items on the same or other workers.
type worker struct {
	id       int
	mgr      *Manager
	queue    *queue
	proj     *domain.Project
	opts     BuildOptions
	compress bool
	results  *domain.TaskResults

	// stages caches resolved stage sets per content type so repeated items
	// of one type share a single processor instance on this worker.
	stages map[string]*ports.StageSet
}

func newWorker(id int, m *Manager, q *queue, proj *domain.Project, opts BuildOptions, compress bool) *worker {
	return &worker{
		id:       id,
		mgr:      m,
		queue:    q,
		proj:     proj,
		opts:     opts,
		compress: compress,
		results:  &domain.TaskResults{},
		stages:   make(map[string]*ports.StageSet),
	}
}

// run drains the queue until it is exhausted or cancellation is observed.
// On cancellation the in-progress item is marked failed and the worker
// returns immediately; unstarted items get no result at all.
func (w *worker) run() error {
	for {
		if w.mgr.ShouldStop() {
			return nil
		}
		idx, ok := w.queue.claim()
		if !ok {
			return nil
		}
		item := &w.proj.Items[idx]
		res := domain.NewItemResult(item, idx)
		cancelled := w.processItem(idx, item, res)
		w.results.Add(res)
		if cancelled {
			return nil
		}
	}
}

func (w *worker) processItem(idx int, item *domain.ContentItem, res *domain.ItemResult) (cancelled bool) {
	start := time.Now()
	layout := w.proj.Layout

	defer func() {
		// A panicking stage fails its item, nothing more.
		if r := recover(); r != nil {
			res.Fail("process", zerr.New(fmt.Sprintf("stage panic: %v", r)))
			w.emitFailure(idx, item, res)
		}
	}()

	w.mgr.sink.Emit(domain.LogEvent{
		Kind:  domain.EventItemStarted,
		Level: domain.LogLevelDebug,
		Item:  item.Name,
		Index: idx,
	})

	ev := domain.NewBuildEvent(item, layout)
	if !ev.SourceExists {
		res.Fail("import", zerr.With(domain.ErrSourceMissing, "path", layout.SourcePath(item)))
		w.emitFailure(idx, item, res)
		return false
	}

	set, err := w.stageSet(item.Type)
	if err != nil {
		res.Fail("resolve", err)
		w.emitFailure(idx, item, res)
		return false
	}
	ev.Importer = set.ImporterName
	ev.Processor = set.ProcessorName
	ev.Compressed = w.compress

	// The rebuild decision is skipped entirely when a full rebuild was
	// requested.
	if !w.opts.Rebuild {
		cached := w.mgr.decider.Load(item.Name, layout.CachePath(item))
		if !w.mgr.decider.NeedsRebuild(ev, cached) {
			res.Compressed = w.compress
			res.Skip(time.Since(start), cached.RawSize)
			w.mgr.sink.Emit(domain.LogEvent{
				Kind:    domain.EventItemSkipped,
				Level:   domain.LogLevelDebug,
				Message: "up to date",
				Item:    item.Name,
				Index:   idx,
			})
			return false
		}
	}

	// One processor instance serves every item of this type on this worker:
	// restore defaults, then apply this item's declared parameters.
	set.Processor.Reset()
	for _, p := range item.Params {
		if perr := set.Processor.SetParameter(p.Key, p.Value); perr != nil {
			w.mgr.sink.Emit(domain.LogEvent{
				Kind:    domain.EventItemWarning,
				Level:   domain.LogLevelWarn,
				Message: fmt.Sprintf("parameter %q kept its default", p.Key),
				Item:    item.Name,
				Index:   idx,
				Stage:   "process",
				Err:     perr,
			})
		}
	}

	hash := pack.LoaderHash(set.LoaderName)
	size, serr := w.runPipeline(set, item, hash)
	if serr != nil {
		res.Fail(serr.stage, serr.err)
		if errors.Is(serr.err, domain.ErrCancelled) {
			w.emitFailure(idx, item, res)
			return true
		}
		w.emitFailure(idx, item, res)
		return false
	}

	// The cache entry is only ever written after a successful rebuild.
	ev.RawSize = size
	ev.Dependencies = w.collectDependencies(set.Processor)
	if cerr := w.mgr.decider.Store(layout.CachePath(item), ev); cerr != nil {
		// Cache write failures are soft: the item just rebuilds next time.
		w.mgr.sink.Emit(domain.LogEvent{
			Kind:    domain.EventItemWarning,
			Level:   domain.LogLevelWarn,
			Message: "failed to write cache entry",
			Item:    item.Name,
			Index:   idx,
			Err:     cerr,
		})
	}

	res.Compressed = w.compress
	res.LoaderHash = hash
	res.Pass(time.Since(start), size)
	w.mgr.sink.Emit(domain.LogEvent{
		Kind:    domain.EventItemFinished,
		Level:   domain.LogLevelInfo,
		Item:    item.Name,
		Index:   idx,
		Elapsed: res.Elapsed,
		Size:    size,
	})
	return false
}

// stageSet resolves the stages for a content type once per worker.
func (w *worker) stageSet(contentType string) (*ports.StageSet, error) {
	if set, ok := w.stages[contentType]; ok {
		return set, nil
	}
	set, err := w.mgr.registry.Resolve(contentType)
	if err != nil {
		return nil, err
	}
	w.stages[contentType] = set
	return set, nil
}

type stageError struct {
	stage string
	err   error
}

// runPipeline runs Begin, then Read/Process/Write per object, then End,
// against the open source and intermediate-output streams, and returns the
// raw payload size. A cancellation check runs on every loop iteration.
func (w *worker) runPipeline(set *ports.StageSet, item *domain.ContentItem, hash uint32) (int64, *stageError) {
	layout := w.proj.Layout

	src, err := os.Open(layout.SourcePath(item))
	if err != nil {
		return 0, &stageError{"import", zerr.Wrap(err, "failed to open source")}
	}
	defer src.Close() //nolint:errcheck // read-only

	objPath := layout.ObjectPath(item)
	if err := os.MkdirAll(filepath.Dir(objPath), 0o750); err != nil {
		return 0, &stageError{"write", zerr.Wrap(err, "failed to create intermediate directory")}
	}
	out, err := os.Create(objPath)
	if err != nil {
		return 0, &stageError{"write", zerr.Wrap(err, "failed to create item object")}
	}
	defer out.Close() //nolint:errcheck // explicit close below on success

	// Placeholder header; the raw size is patched in after the pipeline.
	if err := pack.WriteObjectHeader(out, pack.ObjectHeader{LoaderHash: hash}); err != nil {
		return 0, &stageError{"write", err}
	}

	payload := &payloadWriter{w: out}
	reader := bufio.NewReader(src)

	if err := set.Writer.Begin(payload); err != nil {
		return 0, &stageError{"write", err}
	}
	for {
		if w.mgr.ShouldStop() {
			return 0, &stageError{"build", domain.ErrCancelled}
		}
		obj, err := set.Importer.Read(reader)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, &stageError{"import", err}
		}
		processed, err := set.Processor.Process(obj)
		if err != nil {
			return 0, &stageError{"process", err}
		}
		if err := set.Writer.Write(payload, processed); err != nil {
			return 0, &stageError{"write", err}
		}
	}
	if err := set.Writer.End(payload); err != nil {
		return 0, &stageError{"write", err}
	}

	if _, err := out.Seek(0, io.SeekStart); err != nil {
		return 0, &stageError{"write", zerr.Wrap(err, "failed to patch object header")}
	}
	if err := pack.WriteObjectHeader(out, pack.ObjectHeader{LoaderHash: hash, RawSize: payload.n}); err != nil {
		return 0, &stageError{"write", err}
	}
	if err := out.Close(); err != nil {
		return 0, &stageError{"write", zerr.Wrap(err, "failed to close item object")}
	}
	return payload.n, nil
}

// collectDependencies records the external files the processor reports,
// with their modification times as observed now. A missing dependency is
// recorded with a zero time so it forces a rebuild until it reappears.
func (w *worker) collectDependencies(p ports.Processor) []domain.Dependency {
	dr, ok := p.(ports.DependencyReporter)
	if !ok {
		return nil
	}
	var deps []domain.Dependency
	for _, path := range dr.Dependencies() {
		dep := domain.Dependency{Path: path}
		if fi, err := os.Stat(path); err == nil {
			dep.ModTime = fi.ModTime()
		}
		deps = append(deps, dep)
	}
	return deps
}

func (w *worker) emitFailure(idx int, item *domain.ContentItem, res *domain.ItemResult) {
	w.mgr.sink.Emit(domain.LogEvent{
		Kind:    domain.EventItemFailed,
		Level:   domain.LogLevelError,
		Message: res.Message,
		Item:    item.Name,
		Index:   idx,
		Stage:   res.Stage,
	})
}

type payloadWriter struct {
	w io.Writer
	n int64
}

func (p *payloadWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.n += int64(n)
	return n, err
}
