// Package ports defines the core interfaces of the kiln content pipeline.
package ports

import "io"

// Importer decodes objects from a source asset stream. One source file may
// yield any number of objects; Read returns io.EOF after the last one.
type Importer interface {
	Read(r io.Reader) (any, error)
}

// Processor transforms imported objects. A processor instance is reused for
// every item of the same content type on one worker, so Reset must restore
// all declared parameters to their defaults between items.
type Processor interface {
	// Reset restores every declared parameter to its default value.
	Reset()
	// SetParameter applies one declared parameter. Unknown names and
	// unconvertible values return an error; the field keeps its default.
	SetParameter(name, value string) error
	// Process transforms one imported object.
	Process(obj any) (any, error)
}

// DependencyReporter is implemented by processors that read external files
// beyond the item source. Reported paths are recorded in the cache entry so
// changes to them invalidate the item.
type DependencyReporter interface {
	Dependencies() []string
}

// Writer serializes processed objects to the item's output stream using the
// fixed Begin, Write..., End sequence.
type Writer interface {
	Begin(w io.Writer) error
	Write(w io.Writer, obj any) error
	End(w io.Writer) error
}
