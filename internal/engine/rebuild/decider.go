package rebuild

import (
	"os"

	"go.trai.ch/kiln/internal/core/domain"
)

// Decider answers "does this item need a rebuild" from a live build event
// and the item's last recorded cache entry. It also owns the cache-entry
// codec (see cachefile.go).
type Decider struct{}

// NewDecider creates a Decider.
func NewDecider() *Decider {
	return &Decider{}
}

// NeedsRebuild reports whether the item must be rebuilt. Checks run in a
// fixed precedence order; the first hit wins. An I/O failure during any
// check counts as "rebuild", never as an error.
func (d *Decider) NeedsRebuild(current, cached *domain.BuildEvent) bool {
	// No cache entry from a previous successful build.
	if cached == nil {
		return true
	}

	// The intermediate output is gone.
	if !current.OutputExists {
		return true
	}

	// The source is not strictly older than the output. Equal timestamps
	// force a rebuild: filesystem timestamp resolution is untrustworthy.
	if !current.SourceModTime.Before(current.OutputModTime) {
		return true
	}

	// A different importer or processor produced the cached output.
	if current.Importer != cached.Importer || current.Processor != cached.Processor {
		return true
	}

	// The requested compression flag changed.
	if current.Compressed != cached.Compressed {
		return true
	}

	// An external dependency is missing or newer than recorded.
	for _, dep := range cached.Dependencies {
		fi, err := os.Stat(dep.Path)
		if err != nil {
			return true
		}
		if fi.ModTime().After(dep.ModTime) {
			return true
		}
	}

	// The parameter set changed. Comparison is order-independent key/value
	// equality and does not account for defaults, so a parameter added at
	// its default value still forces a rebuild (known limitation).
	if !current.Parameters().EquivalentTo(cached.Parameters()) {
		return true
	}

	return false
}
