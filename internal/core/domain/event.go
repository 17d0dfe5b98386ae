package domain

import (
	"os"
	"time"
)

// Dependency records an external file a processor consumed, together with
// the modification time observed when the item was last built.
type Dependency struct {
	Path    string
	ModTime time.Time
}

// BuildEvent is the per-item snapshot the rebuild decision works on.
//
// A live event wraps a ContentItem plus fresh source/output file state. A
// cached event is reconstructed purely from a cache entry and has a nil
// Item. Accessors fall back from the live item to the cached fields.
type BuildEvent struct {
	// Item is set on live events only.
	Item *ContentItem

	// name is the cached logical item path; live events read Item.Name.
	name string
	// params is the cached parameter list; live events read Item.Params.
	params ParameterList

	// Importer and Processor identify the stages that produced (or will
	// produce) the item. The worker fills them on live events after
	// resolving the content type.
	Importer  string
	Processor string

	// Compressed is the requested (live) or recorded (cached) per-item
	// compression flag.
	Compressed bool
	// RawSize is the uncompressed size of the built item payload.
	RawSize int64

	// Dependencies are the external files recorded by the last build.
	Dependencies []Dependency

	SourceExists  bool
	SourceModTime time.Time
	SourceSize    int64

	OutputExists  bool
	OutputModTime time.Time
	OutputSize    int64
}

// NewBuildEvent creates a live event for the item and captures the current
// source and intermediate-output file state.
func NewBuildEvent(item *ContentItem, layout Layout) *BuildEvent {
	ev := &BuildEvent{Item: item}
	ev.Refresh(layout)
	return ev
}

// NewCachedEvent reconstructs an event from cache-entry fields. It carries
// no ContentItem reference and no file state.
func NewCachedEvent(name, importer, processor string, params ParameterList, compressed bool, rawSize int64, deps []Dependency) *BuildEvent {
	return &BuildEvent{
		name:         name,
		params:       params,
		Importer:     importer,
		Processor:    processor,
		Compressed:   compressed,
		RawSize:      rawSize,
		Dependencies: deps,
	}
}

// Refresh re-stats the source and intermediate output files of a live event.
func (e *BuildEvent) Refresh(layout Layout) {
	if e.Item == nil {
		return
	}
	e.SourceExists, e.SourceModTime, e.SourceSize = statFile(layout.SourcePath(e.Item))
	e.OutputExists, e.OutputModTime, e.OutputSize = statFile(layout.ObjectPath(e.Item))
}

// Name returns the logical item path, falling back to the cached field.
func (e *BuildEvent) Name() string {
	if e.Item != nil {
		return e.Item.Name
	}
	return e.name
}

// Parameters returns the item's parameter list, falling back to the cached
// field.
func (e *BuildEvent) Parameters() ParameterList {
	if e.Item != nil {
		return e.Item.Params
	}
	return e.params
}

func statFile(path string) (exists bool, modTime time.Time, size int64) {
	fi, err := os.Stat(path)
	if err != nil {
		return false, time.Time{}, 0
	}
	return true, fi.ModTime(), fi.Size()
}
