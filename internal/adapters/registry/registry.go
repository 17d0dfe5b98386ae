// Package registry implements the stage registry as an explicit
// registration table mapping content-type names to importer, processor,
// and writer factories.
package registry

import (
	"sort"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/engine/pack"
	"go.trai.ch/zerr"
)

// Entry declares the capabilities of one content type.
type Entry struct {
	// ImporterName and ProcessorName are the stable stage identifiers
	// recorded in cache entries; renaming one invalidates affected items.
	ImporterName  string
	ProcessorName string
	// LoaderName selects the runtime deserializer for this type's output.
	LoaderName string

	NewImporter  func() ports.Importer
	NewProcessor func() ports.Processor
	NewWriter    func() ports.Writer

	// Fields is the processor parameter schema.
	Fields []ports.ParameterField
}

// Table is the registration table backing ports.StageRegistry. It is
// populated at process startup and read-only afterwards, so lookups need
// no locking.
type Table struct {
	entries map[string]Entry
	// loaders maps loader-name hashes back to names so collisions are
	// caught at registration time instead of silently aliasing loaders in
	// the manifest.
	loaders map[uint32]string
}

var _ ports.StageRegistry = (*Table)(nil)

// NewTable creates an empty registration table.
func NewTable() *Table {
	return &Table{
		entries: make(map[string]Entry),
		loaders: make(map[uint32]string),
	}
}

// NewDefault creates a table with the built-in content types registered.
func NewDefault() (*Table, error) {
	t := NewTable()
	if err := RegisterBuiltins(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Register adds one content type. Registering a name twice is an error, as
// is a loader name whose 32-bit hash collides with a previously registered
// one.
func (t *Table) Register(contentType string, e Entry) error {
	if _, exists := t.entries[contentType]; exists {
		return zerr.With(domain.ErrContentTypeExists, "content_type", contentType)
	}
	hash := pack.LoaderHash(e.LoaderName)
	if prev, exists := t.loaders[hash]; exists && prev != e.LoaderName {
		err := zerr.With(domain.ErrLoaderHashCollision, "loader", e.LoaderName)
		return zerr.With(err, "collides_with", prev)
	}
	t.loaders[hash] = e.LoaderName
	t.entries[contentType] = e
	return nil
}

// Resolve returns a fresh stage set for the content type.
func (t *Table) Resolve(contentType string) (*ports.StageSet, error) {
	e, ok := t.entries[contentType]
	if !ok {
		return nil, zerr.With(domain.ErrUnknownContentType, "content_type", contentType)
	}
	return &ports.StageSet{
		Importer:      e.NewImporter(),
		Processor:     e.NewProcessor(),
		Writer:        e.NewWriter(),
		ImporterName:  e.ImporterName,
		ProcessorName: e.ProcessorName,
		LoaderName:    e.LoaderName,
	}, nil
}

// Fields returns the processor parameter schema for the content type.
func (t *Table) Fields(contentType string) ([]ports.ParameterField, error) {
	e, ok := t.entries[contentType]
	if !ok {
		return nil, zerr.With(domain.ErrUnknownContentType, "content_type", contentType)
	}
	return e.Fields, nil
}

// Types returns the registered content-type names, sorted.
func (t *Table) Types() []string {
	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
