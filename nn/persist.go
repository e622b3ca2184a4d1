package nn

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
)

// Binary layout of a saved network, inside a gzip stream:
//   - 4 bytes magic "DNN1"
//   - uint32 number of layers, little-endian
//   - for every layer in order: the weight matrix encoded with
//     (*mat.Dense).MarshalBinaryTo followed by the bias vector encoded with
//     (*mat.VecDense).MarshalBinaryTo
//
// Layer widths are not stored separately; they are read back from the
// matrix and vector headers.
var magic = [4]byte{'D', 'N', 'N', '1'}

// maxLayers bounds the layer count read from a file before anything is allocated.
const maxLayers = 1 << 16

// maxParams bounds the element count of a single weight matrix or bias
// vector read from a file. gonum allocates the whole matrix from its header
// before reading any data.
const maxParams = 1 << 26

// gonumHeaderSize is the length of the header gonum writes before the
// elements of a Dense or VecDense; rows and columns are int64 at 8 and 16.
const gonumHeaderSize = 40

// WriteTo writes the network parameters to w.
func (net *Network) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	zw := gzip.NewWriter(cw)
	if _, err := zw.Write(magic[:]); err != nil {
		return cw.n, err
	}
	if err := binary.Write(zw, binary.LittleEndian, uint32(len(net.layers))); err != nil {
		return cw.n, err
	}
	for i, l := range net.layers {
		if _, err := l.w.MarshalBinaryTo(zw); err != nil {
			return cw.n, fmt.Errorf("marshalling weights of layer %d: %w", i+1, err)
		}
		if _, err := l.b.MarshalBinaryTo(zw); err != nil {
			return cw.n, fmt.Errorf("marshalling biases of layer %d: %w", i+1, err)
		}
	}
	if err := zw.Close(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// ReadNetwork reads a network written by WriteTo. Any decoding failure or
// parameters whose shapes do not chain is reported as ErrCorruptData.
func ReadNetwork(r io.Reader, opts ...Option) (*Network, error) {
	gz, err := gzip.NewReader(bufio.NewReader(r))
	if err != nil {
		return nil, corrupt("opening gzip stream", err)
	}
	defer gz.Close()
	zr := bufio.NewReader(gz)

	var head [4]byte
	if _, err := io.ReadFull(zr, head[:]); err != nil {
		return nil, corrupt("reading header", err)
	}
	if head != magic {
		return nil, corrupt("reading header", fmt.Errorf("unexpected magic %q", head[:]))
	}
	var count uint32
	if err := binary.Read(zr, binary.LittleEndian, &count); err != nil {
		return nil, corrupt("reading layer count", err)
	}
	if count == 0 || count > maxLayers {
		return nil, corrupt("reading layer count", fmt.Errorf("invalid layer count %d", count))
	}

	layers := make([]*Layer, count)
	for i := range layers {
		if err := checkHeader(zr); err != nil {
			return nil, corrupt(fmt.Sprintf("unmarshalling weights of layer %d", i+1), err)
		}
		var w mat.Dense
		if _, err := w.UnmarshalBinaryFrom(zr); err != nil {
			return nil, corrupt(fmt.Sprintf("unmarshalling weights of layer %d", i+1), err)
		}
		if err := checkHeader(zr); err != nil {
			return nil, corrupt(fmt.Sprintf("unmarshalling biases of layer %d", i+1), err)
		}
		var b mat.VecDense
		if _, err := b.UnmarshalBinaryFrom(zr); err != nil {
			return nil, corrupt(fmt.Sprintf("unmarshalling biases of layer %d", i+1), err)
		}
		l, err := LayerFromParams(&w, &b)
		if err != nil {
			return nil, corrupt(fmt.Sprintf("layer %d", i+1), err)
		}
		layers[i] = l
	}
	// Reading to the end makes gzip verify its checksum.
	if n, err := io.Copy(io.Discard, zr); err != nil {
		return nil, corrupt("verifying stream", err)
	} else if n != 0 {
		return nil, corrupt("verifying stream", fmt.Errorf("%d trailing bytes", n))
	}

	net, err := FromLayers(layers, opts...)
	if err != nil {
		return nil, corrupt("chaining layers", err)
	}
	return net, nil
}

// checkHeader peeks at the next gonum header and rejects dimensions that
// are negative or too large to allocate.
func checkHeader(br *bufio.Reader) error {
	head, err := br.Peek(gonumHeaderSize)
	if err != nil {
		return err
	}
	rows := int64(binary.LittleEndian.Uint64(head[8:16]))
	cols := int64(binary.LittleEndian.Uint64(head[16:24]))
	if rows < 1 || cols < 1 || rows > maxParams || cols > maxParams || rows*cols > maxParams {
		return fmt.Errorf("dimensions %d x %d out of range", rows, cols)
	}
	return nil
}

func corrupt(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrCorruptData, op, err)
}

// Save writes the network to path. The file is written next to its final
// location and renamed into place, so readers never see a partial file.
func (net *Network) Save(path string) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if _, err := net.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	net.guard.logger.Printf("Network %s saved", path)
	return nil
}

// Load reads a network saved with Save.
func Load(path string, opts ...Option) (*Network, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	net, err := ReadNetwork(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return net, nil
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
