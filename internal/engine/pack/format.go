// Package pack implements the packing phase: bin-packing built items into
// size-bounded archives and writing the binary pack formats.
package pack

import (
	"bytes"
	"crypto/md5" //nolint:gosec // loader hashing is an identifier, not a security boundary
	"encoding/binary"
	"io"
	"math"

	"go.trai.ch/zerr"
)

// Item object layout (the intermediate .kbo file, also the loose .kno
// output): 4-byte magic, 1-byte version, uint32 loader hash, int64 raw
// payload size, then the raw serialized item bytes. All integers are
// little-endian.
const (
	objectMagic   = "KOBJ"
	objectVersion = byte(1)

	// ObjectHeaderSize is the fixed byte length of the item object header.
	ObjectHeaderSize = 4 + 1 + 4 + 8
)

// Pack manifest layout: 4-byte magic, 1-byte version, 1-byte flags, uint32
// pack size limit, then either the loose item table or the per-bin item
// tables. In packed mode the header is written first and the tables are
// appended after the copy phase, so a failure mid-copy still leaves a
// readable, if incomplete, manifest.
const (
	manifestMagic   = "KPAK"
	manifestVersion = byte(1)

	// FlagPacked marks archive output; clear means loose per-item files.
	FlagPacked = byte(1 << 0)
	// FlagCompressed marks per-item compression inside archives.
	FlagCompressed = byte(1 << 1)
	// FlagHighCompression marks the denser, slower encoder variant.
	FlagHighCompression = byte(1 << 2)
)

// LoaderHash folds an MD5 digest of the loader name into 32 bits by XORing
// its four little-endian lanes. Collisions are accepted as a known risk
// given the tiny namespace of loader names; the registry asserts uniqueness
// at registration time instead.
func LoaderHash(name string) uint32 {
	sum := md5.Sum([]byte(name)) //nolint:gosec // identifier hash only
	le := binary.LittleEndian
	return le.Uint32(sum[0:4]) ^ le.Uint32(sum[4:8]) ^ le.Uint32(sum[8:12]) ^ le.Uint32(sum[12:16])
}

// ObjectHeader is the fixed header stamped on every built item object.
type ObjectHeader struct {
	LoaderHash uint32
	RawSize    int64
}

// WriteObjectHeader writes the item object header.
func WriteObjectHeader(w io.Writer, h ObjectHeader) error {
	var buf [ObjectHeaderSize]byte
	copy(buf[:4], objectMagic)
	buf[4] = objectVersion
	le := binary.LittleEndian
	le.PutUint32(buf[5:9], h.LoaderHash)
	le.PutUint64(buf[9:17], uint64(h.RawSize))
	if _, err := w.Write(buf[:]); err != nil {
		return zerr.Wrap(err, "failed to write object header")
	}
	return nil
}

// ReadObjectHeader reads and validates the item object header.
func ReadObjectHeader(r io.Reader) (ObjectHeader, error) {
	var buf [ObjectHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return ObjectHeader{}, zerr.Wrap(err, "object header truncated")
	}
	if string(buf[:4]) != objectMagic {
		return ObjectHeader{}, zerr.New("object magic mismatch")
	}
	if buf[4] != objectVersion {
		return ObjectHeader{}, zerr.With(zerr.New("object version mismatch"), "version", int(buf[4]))
	}
	le := binary.LittleEndian
	return ObjectHeader{
		LoaderHash: le.Uint32(buf[5:9]),
		RawSize:    int64(le.Uint64(buf[9:17])),
	}, nil
}

// ManifestEntry describes one item inside a manifest table.
type ManifestEntry struct {
	Name       string
	LoaderHash uint32
	// Size is the stored (possibly compressed) size in packed mode and the
	// raw payload size in loose mode.
	Size int64
	// Offset is the byte offset within the item's archive; zero in loose mode.
	Offset int64
}

// Manifest is the decoded pack manifest.
type Manifest struct {
	Packed          bool
	Compressed      bool
	HighCompression bool
	PackSizeLimit   int64

	// Loose holds the item table in loose mode.
	Loose []ManifestEntry
	// Bins holds one item table per archive in packed mode.
	Bins [][]ManifestEntry
}

func encodeManifestHeader(flags byte, limit int64) []byte {
	buf := make([]byte, 0, 10)
	buf = append(buf, manifestMagic...)
	buf = append(buf, manifestVersion, flags)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(limit)) //nolint:gosec // limits above 4 GiB are rejected at load
	return buf
}

func writeManifestString(buf *bytes.Buffer, s string) error {
	if len(s) > math.MaxUint16 {
		return zerr.With(zerr.New("name too long for manifest"), "length", len(s))
	}
	var lenBytes [2]byte
	binary.LittleEndian.PutUint16(lenBytes[:], uint16(len(s)))
	buf.Write(lenBytes[:])
	buf.WriteString(s)
	return nil
}

func encodeLooseTable(entries []ManifestEntry) ([]byte, error) {
	buf := new(bytes.Buffer)
	le := binary.LittleEndian
	var scratch [8]byte

	le.PutUint32(scratch[:4], uint32(len(entries)))
	buf.Write(scratch[:4])
	for _, e := range entries {
		if err := writeManifestString(buf, e.Name); err != nil {
			return nil, err
		}
		le.PutUint32(scratch[:4], e.LoaderHash)
		buf.Write(scratch[:4])
		le.PutUint64(scratch[:], uint64(e.Size))
		buf.Write(scratch[:])
	}
	return buf.Bytes(), nil
}

func encodeBinTables(bins [][]ManifestEntry) ([]byte, error) {
	buf := new(bytes.Buffer)
	le := binary.LittleEndian
	var scratch [8]byte

	le.PutUint32(scratch[:4], uint32(len(bins)))
	buf.Write(scratch[:4])
	for _, bin := range bins {
		le.PutUint32(scratch[:4], uint32(len(bin)))
		buf.Write(scratch[:4])
		for _, e := range bin {
			if err := writeManifestString(buf, e.Name); err != nil {
				return nil, err
			}
			le.PutUint64(scratch[:], uint64(e.Size))
			buf.Write(scratch[:])
			le.PutUint64(scratch[:], uint64(e.Offset))
			buf.Write(scratch[:])
			le.PutUint32(scratch[:4], e.LoaderHash)
			buf.Write(scratch[:4])
		}
	}
	return buf.Bytes(), nil
}

// ReadManifest decodes a pack manifest.
func ReadManifest(data []byte) (*Manifest, error) {
	r := bytes.NewReader(data)

	head := make([]byte, 10)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, zerr.Wrap(err, "manifest truncated")
	}
	if string(head[:4]) != manifestMagic {
		return nil, zerr.New("manifest magic mismatch")
	}
	if head[4] != manifestVersion {
		return nil, zerr.With(zerr.New("manifest version mismatch"), "version", int(head[4]))
	}
	flags := head[5]
	m := &Manifest{
		Packed:          flags&FlagPacked != 0,
		Compressed:      flags&FlagCompressed != 0,
		HighCompression: flags&FlagHighCompression != 0,
		PackSizeLimit:   int64(binary.LittleEndian.Uint32(head[6:10])),
	}

	if !m.Packed {
		count, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		for i := uint32(0); i < count; i++ {
			name, err := readManifestString(r)
			if err != nil {
				return nil, err
			}
			hash, err := readUint32(r)
			if err != nil {
				return nil, err
			}
			size, err := readManifestInt64(r)
			if err != nil {
				return nil, err
			}
			m.Loose = append(m.Loose, ManifestEntry{Name: name, LoaderHash: hash, Size: size})
		}
		return m, nil
	}

	binCount, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	for b := uint32(0); b < binCount; b++ {
		itemCount, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		var bin []ManifestEntry
		for i := uint32(0); i < itemCount; i++ {
			name, err := readManifestString(r)
			if err != nil {
				return nil, err
			}
			size, err := readManifestInt64(r)
			if err != nil {
				return nil, err
			}
			offset, err := readManifestInt64(r)
			if err != nil {
				return nil, err
			}
			hash, err := readUint32(r)
			if err != nil {
				return nil, err
			}
			bin = append(bin, ManifestEntry{Name: name, Size: size, Offset: offset, LoaderHash: hash})
		}
		m.Bins = append(m.Bins, bin)
	}
	return m, nil
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, zerr.Wrap(err, "manifest truncated")
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readManifestInt64(r *bytes.Reader) (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, zerr.Wrap(err, "manifest truncated")
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

func readManifestString(r *bytes.Reader) (string, error) {
	var lenBytes [2]byte
	if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
		return "", zerr.Wrap(err, "manifest truncated")
	}
	b := make([]byte, binary.LittleEndian.Uint16(lenBytes[:]))
	if _, err := io.ReadFull(r, b); err != nil {
		return "", zerr.Wrap(err, "manifest truncated")
	}
	return string(b), nil
}
