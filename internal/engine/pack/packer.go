package pack

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// oversizedReportCap bounds how many offending item names an oversized-item
// error lists; the rest collapse into a remainder count.
const oversizedReportCap = 5

// Options selects the packer's output mode for one build.
type Options struct {
	// Packed selects archive output; loose per-item files otherwise.
	Packed bool
	// Compress enables per-item zstd compression inside archives.
	Compress bool
	// High selects the best-compression encoder level.
	High bool
	// Limit caps each archive's total raw payload size in bytes.
	Limit int64
}

func (o Options) flags() byte {
	var f byte
	if o.Packed {
		f |= FlagPacked
	}
	if o.Compress {
		f |= FlagCompressed
	}
	if o.High {
		f |= FlagHighCompression
	}
	return f
}

// Packer runs the post-item packing phase. It is single-threaded: it needs
// a total, globally sorted view of all items and writes one shared manifest
// file.
type Packer struct {
	sink ports.EventSink
}

// New creates a Packer emitting progress to the given sink.
func New(sink ports.EventSink) *Packer {
	return &Packer{sink: sink}
}

// Run emits the final output for all successful items and writes the pack
// manifest. The stop callback is consulted between sub-steps for
// cooperative cancellation. It returns the number of archives written
// (zero in loose mode).
func (p *Packer) Run(layout domain.Layout, results []*domain.ItemResult, opts Options, stop func() bool) (int, error) {
	successes := make([]*domain.ItemResult, 0, len(results))
	for _, r := range results {
		if r.Succeeded {
			successes = append(successes, r)
		}
	}

	if err := os.MkdirAll(layout.OutputDir, 0o750); err != nil {
		return 0, zerr.Wrap(err, "failed to create output directory")
	}

	if !opts.Packed {
		return 0, p.runLoose(layout, successes, opts, stop)
	}
	return p.runPacked(layout, successes, opts, stop)
}

// runLoose copies each rebuilt item's object file to its final output path
// and writes the loose manifest. The object file already carries the
// loose-item header, so a hard link is preferred and a byte copy is the
// fallback for cross-device or permission failures.
func (p *Packer) runLoose(layout domain.Layout, successes []*domain.ItemResult, opts Options, stop func() bool) error {
	for _, r := range successes {
		if r.Skipped {
			continue
		}
		if stop() {
			return domain.ErrCancelled
		}
		src := layout.ObjectPath(r.Item)
		dst := layout.LoosePath(r.Item)
		if err := linkOrCopy(src, dst); err != nil {
			// A copy failure is fatal to the whole output phase.
			return zerr.With(zerr.Wrap(err, "failed to emit loose output"), "item", r.Item.Name)
		}
	}

	if stop() {
		return domain.ErrCancelled
	}

	entries := make([]ManifestEntry, 0, len(successes))
	for _, r := range successes {
		h, err := p.readHeader(layout, r)
		if err != nil {
			return err
		}
		entries = append(entries, ManifestEntry{
			Name:       r.Item.Name,
			LoaderHash: h.LoaderHash,
			Size:       h.RawSize,
		})
	}

	table, err := encodeLooseTable(entries)
	if err != nil {
		return err
	}
	data := append(encodeManifestHeader(opts.flags(), opts.Limit), table...)
	if err := os.WriteFile(layout.ManifestPath(), data, 0o644); err != nil { //nolint:gosec // build output
		return zerr.Wrap(err, "failed to write pack manifest")
	}
	return nil
}

func (p *Packer) runPacked(layout domain.Layout, successes []*domain.ItemResult, opts Options, stop func() bool) (int, error) {
	items, oversized, err := p.collectBinItems(layout, successes, opts.Limit)
	if err != nil {
		return 0, err
	}
	if len(oversized) > 0 {
		err := oversizedError(oversized, opts.Limit)
		p.sink.Emit(domain.LogEvent{
			Kind:    domain.EventEngineError,
			Level:   domain.LogLevelError,
			Message: "items too large for pack size limit",
			Err:     err,
		})
		return 0, err
	}

	bins := packBins(items, opts.Limit)

	// Pass one: header and flags, so a failure during the copy phase still
	// leaves a readable manifest.
	manifest, err := os.Create(layout.ManifestPath())
	if err != nil {
		return 0, zerr.Wrap(err, "failed to create pack manifest")
	}
	defer manifest.Close() //nolint:errcheck // explicit close below on success
	if _, err := manifest.Write(encodeManifestHeader(opts.flags(), opts.Limit)); err != nil {
		return 0, zerr.Wrap(err, "failed to write pack manifest header")
	}

	for n, bin := range bins {
		if stop() {
			return 0, domain.ErrCancelled
		}
		if err := p.writeArchive(layout, n, bin, opts); err != nil {
			return 0, err
		}
	}

	if stop() {
		return 0, domain.ErrCancelled
	}

	// Pass two: per-bin item tables, appended after the copy phase.
	tables, err := encodeBinTables(binEntries(bins))
	if err != nil {
		return 0, err
	}
	if _, err := manifest.Write(tables); err != nil {
		return 0, zerr.Wrap(err, "failed to write pack manifest tables")
	}
	if err := manifest.Close(); err != nil {
		return 0, zerr.Wrap(err, "failed to close pack manifest")
	}
	return len(bins), nil
}

// collectBinItems reads every successful item's object header, splitting
// out oversized items and dropping zero-size ones.
func (p *Packer) collectBinItems(layout domain.Layout, successes []*domain.ItemResult, limit int64) ([]binItem, []string, error) {
	var items []binItem
	var oversized []string
	for _, r := range successes {
		h, err := p.readHeader(layout, r)
		if err != nil {
			return nil, nil, err
		}
		r.LoaderHash = h.LoaderHash
		switch {
		case h.RawSize > limit:
			oversized = append(oversized, r.Item.Name)
		case h.RawSize == 0:
			// Nothing to store; the item stays out of every bin.
		default:
			items = append(items, binItem{result: r, size: h.RawSize})
		}
	}
	return items, oversized, nil
}

func (p *Packer) readHeader(layout domain.Layout, r *domain.ItemResult) (ObjectHeader, error) {
	f, err := os.Open(layout.ObjectPath(r.Item))
	if err != nil {
		return ObjectHeader{}, zerr.With(zerr.Wrap(err, "failed to open item object"), "item", r.Item.Name)
	}
	defer f.Close() //nolint:errcheck // read-only
	h, err := ReadObjectHeader(f)
	if err != nil {
		return ObjectHeader{}, zerr.With(err, "item", r.Item.Name)
	}
	return h, nil
}

// writeArchive streams every placement of one bin into its archive file,
// recording the actual offset and stored size per item.
func (p *Packer) writeArchive(layout domain.Layout, n int, bin *Bin, opts Options) error {
	path := layout.ArchivePath(n)
	f, err := os.Create(path)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create archive"), "path", path)
	}
	defer f.Close() //nolint:errcheck // explicit close below

	cw := &countingWriter{w: f}
	for _, pl := range bin.Items {
		pl.Offset = cw.n
		if err := p.copyPayload(layout, cw, pl, opts); err != nil {
			return err
		}
		pl.Stored = cw.n - pl.Offset
		p.sink.Emit(domain.LogEvent{
			Kind:    domain.EventItemPacked,
			Level:   domain.LogLevelInfo,
			Message: fmt.Sprintf("packed into archive %d", n),
			Item:    pl.Result.Item.Name,
			Index:   pl.Result.Index,
			Size:    pl.Stored,
		})
	}
	if err := f.Close(); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to close archive"), "path", path)
	}
	return nil
}

func (p *Packer) copyPayload(layout domain.Layout, dst io.Writer, pl *Placement, opts Options) error {
	src, err := os.Open(layout.ObjectPath(pl.Result.Item))
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to open item object"), "item", pl.Result.Item.Name)
	}
	defer src.Close() //nolint:errcheck // read-only
	if _, err := ReadObjectHeader(src); err != nil {
		return zerr.With(err, "item", pl.Result.Item.Name)
	}

	if !opts.Compress {
		if _, err := io.Copy(dst, src); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to copy item payload"), "item", pl.Result.Item.Name)
		}
		return nil
	}

	level := zstd.SpeedDefault
	if opts.High {
		level = zstd.SpeedBestCompression
	}
	enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(level))
	if err != nil {
		return zerr.Wrap(err, "failed to create compressor")
	}
	if _, err := io.Copy(enc, src); err != nil {
		enc.Close() //nolint:errcheck // already failing
		return zerr.With(zerr.Wrap(err, "failed to compress item payload"), "item", pl.Result.Item.Name)
	}
	if err := enc.Close(); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to flush compressor"), "item", pl.Result.Item.Name)
	}
	return nil
}

func binEntries(bins []*Bin) [][]ManifestEntry {
	tables := make([][]ManifestEntry, len(bins))
	for i, bin := range bins {
		entries := make([]ManifestEntry, len(bin.Items))
		for j, pl := range bin.Items {
			entries[j] = ManifestEntry{
				Name:       pl.Result.Item.Name,
				Size:       pl.Stored,
				Offset:     pl.Offset,
				LoaderHash: pl.Result.LoaderHash,
			}
		}
		tables[i] = entries
	}
	return tables
}

func oversizedError(names []string, limit int64) error {
	listed := names
	remainder := 0
	if len(listed) > oversizedReportCap {
		remainder = len(listed) - oversizedReportCap
		listed = listed[:oversizedReportCap]
	}
	err := zerr.With(domain.ErrItemTooLarge, "limit", limit)
	err = zerr.With(err, "items", strings.Join(listed, ", "))
	if remainder > 0 {
		err = zerr.With(err, "and_more", remainder)
	}
	return err
}

func linkOrCopy(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return zerr.Wrap(err, "failed to create output directory")
	}
	// Replace any previous output; hard links cannot overwrite.
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return zerr.Wrap(err, "failed to replace previous output")
	}
	if err := os.Link(src, dst); err == nil {
		return nil
	}
	// Cross-device links and restricted filesystems land here.
	in, err := os.Open(src)
	if err != nil {
		return zerr.Wrap(err, "failed to open intermediate object")
	}
	defer in.Close() //nolint:errcheck // read-only
	out, err := os.Create(dst)
	if err != nil {
		return zerr.Wrap(err, "failed to create output file")
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck // already failing
		return zerr.Wrap(err, "failed to copy output file")
	}
	return out.Close()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
