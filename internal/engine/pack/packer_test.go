package pack_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/engine/pack"
)

type recordSink struct {
	events []domain.LogEvent
}

func (s *recordSink) Emit(ev domain.LogEvent) { s.events = append(s.events, ev) }
func (s *recordSink) Close() error            { return nil }

func neverStop() bool { return false }

func testLayout(t *testing.T) domain.Layout {
	t.Helper()
	dir := t.TempDir()
	return domain.Layout{
		Root:            dir,
		IntermediateDir: filepath.Join(dir, "obj"),
		OutputDir:       filepath.Join(dir, "bin"),
	}
}

// writeObject fabricates the intermediate object a worker would have
// produced: the fixed header followed by the payload bytes.
func writeObject(t *testing.T, layout domain.Layout, item *domain.ContentItem, hash uint32, payload []byte) {
	t.Helper()
	path := layout.ObjectPath(item)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, pack.WriteObjectHeader(f, pack.ObjectHeader{LoaderHash: hash, RawSize: int64(len(payload))}))
	_, err = f.Write(payload)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func passedResult(item *domain.ContentItem, index int, size int64, skipped bool) *domain.ItemResult {
	r := domain.NewItemResult(item, index)
	if skipped {
		r.Skip(0, size)
	} else {
		r.Pass(0, size)
	}
	return r
}

func repeatBytes(b byte, n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = b
	}
	return buf
}

func TestPacker_Loose(t *testing.T) {
	layout := testLayout(t)
	p := pack.New(&recordSink{})

	built := &domain.ContentItem{Name: "textures/wall", Type: "raw"}
	cached := &domain.ContentItem{Name: "audio/theme", Type: "raw"}
	writeObject(t, layout, built, 0x1111, repeatBytes('w', 64))
	writeObject(t, layout, cached, 0x2222, repeatBytes('a', 32))

	// The cached item's loose output survives from an earlier build.
	require.NoError(t, os.MkdirAll(filepath.Dir(layout.LoosePath(cached)), 0o750))
	require.NoError(t, os.WriteFile(layout.LoosePath(cached), []byte("previous"), 0o644))

	results := []*domain.ItemResult{
		passedResult(built, 0, 64, false),
		passedResult(cached, 1, 32, true),
	}

	archives, err := p.Run(layout, results, pack.Options{Limit: 1000}, neverStop)
	require.NoError(t, err)
	assert.Zero(t, archives)

	// The rebuilt item's output is the whole object file, header included.
	out, err := os.ReadFile(layout.LoosePath(built))
	require.NoError(t, err)
	assert.Len(t, out, pack.ObjectHeaderSize+64)

	// The skipped item was not re-copied.
	prev, err := os.ReadFile(layout.LoosePath(cached))
	require.NoError(t, err)
	assert.Equal(t, []byte("previous"), prev)

	data, err := os.ReadFile(layout.ManifestPath())
	require.NoError(t, err)
	m, err := pack.ReadManifest(data)
	require.NoError(t, err)
	assert.False(t, m.Packed)
	require.Len(t, m.Loose, 2)
	assert.Equal(t, "textures/wall", m.Loose[0].Name)
	assert.Equal(t, uint32(0x1111), m.Loose[0].LoaderHash)
	assert.Equal(t, int64(64), m.Loose[0].Size)
	assert.Equal(t, "audio/theme", m.Loose[1].Name)
	assert.Equal(t, int64(32), m.Loose[1].Size)
}

func TestPacker_LooseSkipsFailedItems(t *testing.T) {
	layout := testLayout(t)
	p := pack.New(&recordSink{})

	item := &domain.ContentItem{Name: "broken", Type: "raw"}
	failed := domain.NewItemResult(item, 0)
	failed.Fail("process", errors.New("boom"))

	archives, err := p.Run(layout, []*domain.ItemResult{failed}, pack.Options{Limit: 1000}, neverStop)
	require.NoError(t, err)
	assert.Zero(t, archives)

	data, err := os.ReadFile(layout.ManifestPath())
	require.NoError(t, err)
	m, err := pack.ReadManifest(data)
	require.NoError(t, err)
	assert.Empty(t, m.Loose)
}

func TestPacker_Packed(t *testing.T) {
	layout := testLayout(t)
	p := pack.New(&recordSink{})

	big := &domain.ContentItem{Name: "big"}
	mid := &domain.ContentItem{Name: "mid"}
	small := &domain.ContentItem{Name: "small"}
	writeObject(t, layout, big, 0xaa, repeatBytes('b', 700))
	writeObject(t, layout, mid, 0xbb, repeatBytes('m', 400))
	writeObject(t, layout, small, 0xcc, repeatBytes('s', 300))

	results := []*domain.ItemResult{
		passedResult(big, 0, 700, false),
		passedResult(mid, 1, 400, false),
		passedResult(small, 2, 300, true),
	}

	opts := pack.Options{Packed: true, Limit: 1000}
	archives, err := p.Run(layout, results, opts, neverStop)
	require.NoError(t, err)
	assert.Equal(t, 2, archives)

	data, err := os.ReadFile(layout.ManifestPath())
	require.NoError(t, err)
	m, err := pack.ReadManifest(data)
	require.NoError(t, err)
	assert.True(t, m.Packed)
	assert.False(t, m.Compressed)
	assert.Equal(t, int64(1000), m.PackSizeLimit)

	require.Len(t, m.Bins, 2)
	require.Len(t, m.Bins[0], 2)
	assert.Equal(t, "big", m.Bins[0][0].Name)
	assert.Equal(t, int64(0), m.Bins[0][0].Offset)
	assert.Equal(t, int64(700), m.Bins[0][0].Size)
	assert.Equal(t, uint32(0xaa), m.Bins[0][0].LoaderHash)
	assert.Equal(t, "small", m.Bins[0][1].Name)
	assert.Equal(t, int64(700), m.Bins[0][1].Offset)
	assert.Equal(t, int64(300), m.Bins[0][1].Size)
	require.Len(t, m.Bins[1], 1)
	assert.Equal(t, "mid", m.Bins[1][0].Name)

	// Archives hold the raw payloads back to back, headers stripped.
	archive0, err := os.ReadFile(layout.ArchivePath(0))
	require.NoError(t, err)
	assert.Equal(t, append(repeatBytes('b', 700), repeatBytes('s', 300)...), archive0)

	archive1, err := os.ReadFile(layout.ArchivePath(1))
	require.NoError(t, err)
	assert.Equal(t, repeatBytes('m', 400), archive1)
}

func TestPacker_PackedCompressed(t *testing.T) {
	layout := testLayout(t)
	p := pack.New(&recordSink{})

	item := &domain.ContentItem{Name: "level"}
	payload := repeatBytes('x', 16<<10)
	writeObject(t, layout, item, 0x55, payload)

	opts := pack.Options{Packed: true, Compress: true, Limit: 1 << 20}
	archives, err := p.Run(layout, []*domain.ItemResult{passedResult(item, 0, int64(len(payload)), false)}, opts, neverStop)
	require.NoError(t, err)
	assert.Equal(t, 1, archives)

	data, err := os.ReadFile(layout.ManifestPath())
	require.NoError(t, err)
	m, err := pack.ReadManifest(data)
	require.NoError(t, err)
	assert.True(t, m.Compressed)
	require.Len(t, m.Bins, 1)
	require.Len(t, m.Bins[0], 1)

	entry := m.Bins[0][0]
	assert.Less(t, entry.Size, int64(len(payload)))

	archive, err := os.ReadFile(layout.ArchivePath(0))
	require.NoError(t, err)
	assert.Equal(t, entry.Offset+entry.Size, int64(len(archive)))

	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	decoded, err := dec.DecodeAll(archive[entry.Offset:entry.Offset+entry.Size], nil)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestPacker_OversizedItem(t *testing.T) {
	layout := testLayout(t)
	sink := &recordSink{}
	p := pack.New(sink)

	item := &domain.ContentItem{Name: "huge"}
	writeObject(t, layout, item, 0x77, repeatBytes('h', 2048))

	opts := pack.Options{Packed: true, Limit: 1024}
	archives, err := p.Run(layout, []*domain.ItemResult{passedResult(item, 0, 2048, false)}, opts, neverStop)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrItemTooLarge))
	assert.Zero(t, archives)
	assert.NotEmpty(t, sink.events)

	// No archive bytes were written.
	_, statErr := os.Stat(layout.ArchivePath(0))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPacker_ZeroSizeItemDropped(t *testing.T) {
	layout := testLayout(t)
	p := pack.New(&recordSink{})

	item := &domain.ContentItem{Name: "empty"}
	writeObject(t, layout, item, 0x11, nil)

	opts := pack.Options{Packed: true, Limit: 1024}
	archives, err := p.Run(layout, []*domain.ItemResult{passedResult(item, 0, 0, false)}, opts, neverStop)
	require.NoError(t, err)
	assert.Zero(t, archives)

	data, err := os.ReadFile(layout.ManifestPath())
	require.NoError(t, err)
	m, err := pack.ReadManifest(data)
	require.NoError(t, err)
	assert.Empty(t, m.Bins)
}

func TestPacker_Cancelled(t *testing.T) {
	layout := testLayout(t)
	p := pack.New(&recordSink{})

	item := &domain.ContentItem{Name: "a"}
	writeObject(t, layout, item, 0x11, repeatBytes('a', 10))

	stop := func() bool { return true }
	_, err := p.Run(layout, []*domain.ItemResult{passedResult(item, 0, 10, false)}, pack.Options{Packed: true, Limit: 100}, stop)
	assert.True(t, errors.Is(err, domain.ErrCancelled))
}
