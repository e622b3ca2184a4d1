package nn

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	net := smallNetwork(t, 6, 5, 4, 3)
	path := filepath.Join(t.TempDir(), "net.dnn")
	require.NoError(t, net.Save(path))

	loaded, err := Load(path, WithLogger(quiet))
	require.NoError(t, err)
	require.Equal(t, net.Topology(), loaded.Topology())
	for n := 1; n <= net.NumLayers(); n++ {
		assert.Equal(t, net.Layer(n).w.RawMatrix().Data, loaded.Layer(n).w.RawMatrix().Data)
		assert.Equal(t, net.Layer(n).b.RawVector().Data, loaded.Layer(n).b.RawVector().Data)
	}

	input := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}
	want, err := net.Feedforward(input)
	require.NoError(t, err)
	got, err := loaded.Feedforward(input)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	net := smallNetwork(t, 2, 2)
	require.NoError(t, net.Save(filepath.Join(dir, "a.dnn")))
	require.NoError(t, net.Save(filepath.Join(dir, "a.dnn")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.dnn", entries[0].Name())
}

func TestSaveMissingDirectory(t *testing.T) {
	net := smallNetwork(t, 2, 2)
	assert.Error(t, net.Save(filepath.Join(t.TempDir(), "missing", "net.dnn")))
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.dnn"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.dnn")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a network"), 0o644))
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrCorruptData)
}

func TestReadNetworkTruncated(t *testing.T) {
	var buf bytes.Buffer
	_, err := smallNetwork(t, 3, 4, 2).WriteTo(&buf)
	require.NoError(t, err)
	data := buf.Bytes()

	for _, n := range []int{0, 10, len(data) / 2, len(data) - 1} {
		_, err := ReadNetwork(bytes.NewReader(data[:n]))
		assert.ErrorIs(t, err, ErrCorruptData, "truncated to %d bytes", n)
	}
}

func TestWriteToCountsBytes(t *testing.T) {
	var buf bytes.Buffer
	n, err := smallNetwork(t, 3, 2).WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
}

// gzipped builds a stream in the saved format from raw parts.
func gzipped(t *testing.T, head []byte, count uint32, parts ...interface{ MarshalBinary() ([]byte, error) }) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(head)
	require.NoError(t, err)
	require.NoError(t, binary.Write(zw, binary.LittleEndian, count))
	for _, p := range parts {
		b, err := p.MarshalBinary()
		require.NoError(t, err)
		_, err = zw.Write(b)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestReadNetworkRejectsInconsistentLayers(t *testing.T) {
	w1 := mat.NewDense(3, 2, nil)
	b1 := mat.NewVecDense(3, nil)
	w2 := mat.NewDense(1, 4, nil)
	b2 := mat.NewVecDense(1, nil)

	for name, data := range map[string][]byte{
		"chain":       gzipped(t, magic[:], 2, w1, b1, w2, b2),
		"bias":        gzipped(t, magic[:], 1, w1, b2),
		"magic":       gzipped(t, []byte("XXXX"), 1, w1, b1),
		"zero layers": gzipped(t, magic[:], 0),
		"short count": gzipped(t, magic[:], 3, w1, b1),
		"trailing":    gzipped(t, magic[:], 1, w1, b1, b2),
	} {
		_, err := ReadNetwork(bytes.NewReader(data), WithLogger(quiet))
		assert.ErrorIs(t, err, ErrCorruptData, name)
	}

	net, err := ReadNetwork(bytes.NewReader(gzipped(t, magic[:], 1, w1, b1)), WithLogger(quiet))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, net.Topology())
}

// rawPart is an already encoded part of the saved format.
type rawPart []byte

func (p rawPart) MarshalBinary() ([]byte, error) { return p, nil }

// withDims returns the encoding of m with its header rewritten to rows x cols.
func withDims(t *testing.T, m interface{ MarshalBinary() ([]byte, error) }, rows, cols int64) rawPart {
	t.Helper()
	b, err := m.MarshalBinary()
	require.NoError(t, err)
	binary.LittleEndian.PutUint64(b[8:16], uint64(rows))
	binary.LittleEndian.PutUint64(b[16:24], uint64(cols))
	return b
}

func TestReadNetworkRejectsOversizedHeaders(t *testing.T) {
	w := mat.NewDense(1, 1, []float64{1})
	b := mat.NewVecDense(1, []float64{1})

	for name, data := range map[string][]byte{
		"huge weights":    gzipped(t, magic[:], 1, withDims(t, w, 1<<20, 1<<20)),
		"huge rows":       gzipped(t, magic[:], 1, withDims(t, w, 1<<40, 1)),
		"negative cols":   gzipped(t, magic[:], 1, withDims(t, w, 1, -1)),
		"huge biases":     gzipped(t, magic[:], 1, w, withDims(t, b, 1<<30, 1)),
		"overflowing dim": gzipped(t, magic[:], 1, withDims(t, w, 1<<62, 1<<62)),
		"short header":    gzipped(t, magic[:], 1, rawPart{1, 0, 0, 0}),
	} {
		_, err := ReadNetwork(bytes.NewReader(data), WithLogger(quiet))
		assert.ErrorIs(t, err, ErrCorruptData, name)
	}
}
