package pack_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/engine/pack"
)

func TestLoaderHash(t *testing.T) {
	h := pack.LoaderHash("Kiln.Content.TextureLoader")
	assert.Equal(t, h, pack.LoaderHash("Kiln.Content.TextureLoader"))
	assert.NotEqual(t, h, pack.LoaderHash("Kiln.Content.ModelLoader"))
	assert.NotZero(t, h)
}

func TestObjectHeaderRoundTrip(t *testing.T) {
	buf := new(bytes.Buffer)
	in := pack.ObjectHeader{LoaderHash: 0xdeadbeef, RawSize: 1 << 33}

	require.NoError(t, pack.WriteObjectHeader(buf, in))
	assert.Equal(t, pack.ObjectHeaderSize, buf.Len())

	out, err := pack.ReadObjectHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestReadObjectHeader_Invalid(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, pack.WriteObjectHeader(buf, pack.ObjectHeader{LoaderHash: 1, RawSize: 2}))
	data := buf.Bytes()

	_, err := pack.ReadObjectHeader(bytes.NewReader(data[:5]))
	assert.Error(t, err)

	bad := append([]byte("JUNK"), data[4:]...)
	_, err = pack.ReadObjectHeader(bytes.NewReader(bad))
	assert.Error(t, err)

	wrongVersion := append([]byte(nil), data...)
	wrongVersion[4] = 9
	_, err = pack.ReadObjectHeader(bytes.NewReader(wrongVersion))
	assert.Error(t, err)
}

func TestReadManifest_Invalid(t *testing.T) {
	_, err := pack.ReadManifest([]byte("KP"))
	assert.Error(t, err)

	_, err = pack.ReadManifest([]byte("NOPE\x01\x00\x00\x00\x00\x00"))
	assert.Error(t, err)
}
