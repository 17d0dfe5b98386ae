package pack

import (
	"sort"

	"go.trai.ch/kiln/internal/core/domain"
)

// binItem is the binning-phase projection of one successful item result.
type binItem struct {
	result *domain.ItemResult
	// size is the raw payload size used for capacity accounting. The stored
	// size is only known once the bytes are copied into the archive.
	size int64
}

// Bin is one target archive: an ordered list of placements with a running
// total capped by the pack size limit. Bins are immutable once binning
// completes; placements are mutated once during the copy phase.
type Bin struct {
	Items []*Placement
	Total int64
}

// Placement tracks one item's assignment to an archive. Offset and Stored
// are filled in when the item's bytes are copied into the archive stream.
type Placement struct {
	Result *domain.ItemResult
	// Raw is the uncompressed payload size.
	Raw int64
	// Offset is the byte offset within the assigned archive.
	Offset int64
	// Stored is the (possibly compressed) size written to the archive.
	Stored int64
}

// packBins distributes items over archives with first-fit-decreasing bin
// packing: sort by size descending (stable, so ties keep dequeue order),
// then place each item in the first existing bin it fits in, opening a new
// bin when none fits. O(items x bins); deterministic for a fixed input
// order and limit. Callers must reject items larger than the limit up
// front, so placement never backtracks.
func packBins(items []binItem, limit int64) []*Bin {
	sorted := make([]binItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].size > sorted[j].size
	})

	var bins []*Bin
	for _, it := range sorted {
		var target *Bin
		for _, b := range bins {
			if b.Total+it.size <= limit {
				target = b
				break
			}
		}
		if target == nil {
			target = &Bin{}
			bins = append(bins, target)
		}
		target.Items = append(target.Items, &Placement{Result: it.result, Raw: it.size})
		target.Total += it.size
	}
	return bins
}
