package domain

import (
	"fmt"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// DefaultPackSizeLimit is the archive size cap used when the project file
// does not set one.
const DefaultPackSizeLimit = 64 << 20

// Layout resolves the on-disk locations of a project's build artifacts.
type Layout struct {
	// Root is the directory source paths are relative to.
	Root string
	// IntermediateDir holds built item objects and cache entries.
	IntermediateDir string
	// OutputDir holds the final loose files or pack archives.
	OutputDir string
}

// SourcePath returns the absolute path of the item's source asset.
func (l Layout) SourcePath(item *ContentItem) string {
	return filepath.Join(l.Root, item.Source)
}

// ObjectPath returns the intermediate built-object path for the item.
func (l Layout) ObjectPath(item *ContentItem) string {
	return filepath.Join(l.IntermediateDir, item.Name+".kbo")
}

// CachePath returns the per-item cache-entry path. Entries are flat files
// keyed by the xxhash of the logical item path, so nested or unusual item
// names never leak into the cache directory structure.
func (l Layout) CachePath(item *ContentItem) string {
	return filepath.Join(l.IntermediateDir, fmt.Sprintf("%016x.kbc", xxhash.Sum64String(item.Name)))
}

// LoosePath returns the final per-item output path used in loose mode.
func (l Layout) LoosePath(item *ContentItem) string {
	return filepath.Join(l.OutputDir, item.Name+".kno")
}

// ManifestPath returns the pack manifest path.
func (l Layout) ManifestPath() string {
	return filepath.Join(l.OutputDir, "content.kpm")
}

// ArchivePath returns the path of the n-th pack archive.
func (l Layout) ArchivePath(n int) string {
	return filepath.Join(l.OutputDir, fmt.Sprintf("content_%d.kpa", n))
}

// Project is the loaded project description: the item list plus the build
// configuration. It is read-only during a build.
type Project struct {
	Name   string
	Layout Layout

	// Packed selects archive output; loose per-item files otherwise.
	Packed bool
	// Compress enables per-item compression inside archives (release builds).
	Compress bool
	// HighCompress selects the slower, denser encoder level.
	HighCompress bool
	// PackSizeLimit caps each archive's total payload size in bytes.
	PackSizeLimit int64

	Items []ContentItem
}
