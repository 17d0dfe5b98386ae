// Package rebuild implements the per-item rebuild decision and the on-disk
// cache-entry format backing it.
package rebuild

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

// Cache-entry layout (little-endian): 3-byte ASCII magic, 1-byte version,
// importer name, processor name, ";"-joined "key=value" parameter string,
// 1-byte compression flag, int64 uncompressed size, uint32 dependency count,
// then per dependency a path string and an int64 UnixNano modification time.
// Strings are a uint16 length followed by UTF-8 bytes.
const (
	cacheMagic   = "KBC"
	cacheVersion = byte(1)
)

// EncodeEntry serializes a build event into cache-entry bytes.
func EncodeEntry(ev *domain.BuildEvent) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteString(cacheMagic)
	buf.WriteByte(cacheVersion)

	if err := writeString(buf, ev.Importer); err != nil {
		return nil, err
	}
	if err := writeString(buf, ev.Processor); err != nil {
		return nil, err
	}
	if err := writeString(buf, ev.Parameters().String()); err != nil {
		return nil, err
	}

	if ev.Compressed {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	le := binary.LittleEndian
	var scratch [8]byte
	le.PutUint64(scratch[:], uint64(ev.RawSize))
	buf.Write(scratch[:])

	le.PutUint32(scratch[:4], uint32(len(ev.Dependencies)))
	buf.Write(scratch[:4])
	for _, dep := range ev.Dependencies {
		if err := writeString(buf, dep.Path); err != nil {
			return nil, err
		}
		le.PutUint64(scratch[:], uint64(dep.ModTime.UnixNano()))
		buf.Write(scratch[:])
	}

	return buf.Bytes(), nil
}

// DecodeEntry reconstructs a cached build event from cache-entry bytes.
// Any mismatch in magic or version, and any truncation, returns an error;
// callers treat that as "no cache".
func DecodeEntry(name string, data []byte) (*domain.BuildEvent, error) {
	r := bytes.NewReader(data)

	magic := make([]byte, len(cacheMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, zerr.Wrap(err, "cache entry truncated")
	}
	if string(magic) != cacheMagic {
		return nil, zerr.New("cache entry magic mismatch")
	}
	version, err := r.ReadByte()
	if err != nil {
		return nil, zerr.Wrap(err, "cache entry truncated")
	}
	if version != cacheVersion {
		return nil, zerr.With(zerr.New("cache entry version mismatch"), "version", int(version))
	}

	importer, err := readString(r)
	if err != nil {
		return nil, err
	}
	processor, err := readString(r)
	if err != nil {
		return nil, err
	}
	paramStr, err := readString(r)
	if err != nil {
		return nil, err
	}

	flag, err := r.ReadByte()
	if err != nil {
		return nil, zerr.Wrap(err, "cache entry truncated")
	}
	rawSize, err := readInt64(r)
	if err != nil {
		return nil, err
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, zerr.Wrap(err, "cache entry truncated")
	}
	var deps []domain.Dependency
	for i := uint32(0); i < count; i++ {
		path, err := readString(r)
		if err != nil {
			return nil, err
		}
		nanos, err := readInt64(r)
		if err != nil {
			return nil, err
		}
		deps = append(deps, domain.Dependency{Path: path, ModTime: time.Unix(0, nanos)})
	}

	return domain.NewCachedEvent(
		name,
		importer,
		processor,
		domain.ParseParameters(paramStr),
		flag != 0,
		rawSize,
		deps,
	), nil
}

// Load reads the cache entry at path. It returns nil for a missing,
// truncated, or mismatched entry; a rebuild is the only consequence.
func (d *Decider) Load(name, path string) *domain.BuildEvent {
	data, err := os.ReadFile(path) //nolint:gosec // path derives from the project layout
	if err != nil {
		return nil
	}
	ev, err := DecodeEntry(name, data)
	if err != nil {
		return nil
	}
	return ev
}

// Store writes the cache entry for a successfully rebuilt item. It is only
// ever called after a successful rebuild of that exact item.
func (d *Decider) Store(path string, ev *domain.BuildEvent) error {
	data, err := EncodeEntry(ev)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return zerr.Wrap(err, "failed to create cache directory")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // cache entries are not sensitive
		return zerr.With(zerr.Wrap(err, "failed to write cache entry"), "path", path)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > math.MaxUint16 {
		return zerr.With(zerr.New("string too long for cache entry"), "length", len(s))
	}
	var lenBytes [2]byte
	binary.LittleEndian.PutUint16(lenBytes[:], uint16(len(s)))
	buf.Write(lenBytes[:])
	buf.WriteString(s)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var lenBytes [2]byte
	if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
		return "", zerr.Wrap(err, "cache entry truncated")
	}
	n := binary.LittleEndian.Uint16(lenBytes[:])
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", zerr.Wrap(err, "cache entry truncated")
	}
	return string(b), nil
}

func readInt64(r *bytes.Reader) (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, zerr.Wrap(err, "cache entry truncated")
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
