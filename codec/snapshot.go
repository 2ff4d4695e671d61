package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"gonum.org/v1/gonum/mat"
)

// Compression selects the block compression of a matrix snapshot.
type Compression uint8

const (
	// CompressionNone stores blocks raw.
	CompressionNone Compression = 0
	// CompressionLZ4 is fast with a modest ratio (hot data).
	CompressionLZ4 Compression = 1
	// CompressionZSTD trades speed for a better ratio (cold data).
	CompressionZSTD Compression = 2
)

var (
	// ErrSnapshotMagic marks bytes that are not a matrix snapshot.
	ErrSnapshotMagic = errors.New("codec: bad snapshot magic")

	// ErrSnapshotVersion marks a snapshot written by an unknown format version.
	ErrSnapshotVersion = errors.New("codec: unsupported snapshot version")

	// ErrSnapshotCorrupt marks a snapshot whose payload does not match its header.
	ErrSnapshotCorrupt = errors.New("codec: corrupt snapshot")

	// ErrUnknownCompression marks an unsupported compression byte.
	ErrUnknownCompression = errors.New("codec: unknown compression")
)

// Snapshot layout:
//
//	[4]byte  magic "GMAT"
//	uint8    version
//	uint8    kind (dense | symmetric)
//	uint8    compression
//	uint8    reserved
//	uint32   rows (LE)
//	uint32   cols (LE)
//	blocks   [UncompressedSize uint32][CompressedSize uint32][Data...]
//
// CompressedSize == 0 means the block is stored raw.
var snapshotMagic = [4]byte{'G', 'M', 'A', 'T'}

const (
	snapshotVersion    = 1
	snapshotHeaderSize = 16
	snapshotBlockSize  = 256 * 1024
	blockHeaderSize    = 8

	snapshotKindDense = 0
	snapshotKindSym   = 1

	// Dimension sanity bound; headers beyond it are treated as garbage
	// before any payload allocation happens.
	maxSnapshotDim = 1 << 24
)

// ZSTD encoder/decoder pools for efficiency
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// WriteMatrix writes a dense matrix snapshot to w.
func WriteMatrix(w io.Writer, m *mat.Dense, comp Compression) error {
	rows, cols := m.Dims()
	payload := make([]byte, rows*cols*8)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			binary.LittleEndian.PutUint64(payload[(i*cols+j)*8:], math.Float64bits(m.At(i, j)))
		}
	}
	return writeSnapshot(w, snapshotKindDense, rows, cols, payload, comp)
}

// WriteSym writes a symmetric matrix snapshot to w. The full square is
// materialized so readers never depend on triangle storage conventions.
func WriteSym(w io.Writer, s *mat.SymDense, comp Compression) error {
	n := s.SymmetricDim()
	payload := make([]byte, n*n*8)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			binary.LittleEndian.PutUint64(payload[(i*n+j)*8:], math.Float64bits(s.At(i, j)))
		}
	}
	return writeSnapshot(w, snapshotKindSym, n, n, payload, comp)
}

// ReadMatrix reads a matrix snapshot as a dense matrix. Symmetric
// snapshots read fine this way.
func ReadMatrix(r io.Reader) (*mat.Dense, error) {
	_, rows, cols, values, err := readSnapshot(r)
	if err != nil {
		return nil, err
	}
	return mat.NewDense(rows, cols, values), nil
}

// ReadSym reads a snapshot written by WriteSym.
func ReadSym(r io.Reader) (*mat.SymDense, error) {
	kind, rows, cols, values, err := readSnapshot(r)
	if err != nil {
		return nil, err
	}
	if kind != snapshotKindSym || rows != cols {
		return nil, fmt.Errorf("%w: not a symmetric snapshot", ErrSnapshotCorrupt)
	}
	return mat.NewSymDense(rows, values), nil
}

func writeSnapshot(w io.Writer, kind byte, rows, cols int, payload []byte, comp Compression) error {
	switch comp {
	case CompressionNone, CompressionLZ4, CompressionZSTD:
	default:
		return fmt.Errorf("%w: %d", ErrUnknownCompression, comp)
	}

	var hdr [snapshotHeaderSize]byte
	copy(hdr[:4], snapshotMagic[:])
	hdr[4] = snapshotVersion
	hdr[5] = kind
	hdr[6] = byte(comp)
	binary.LittleEndian.PutUint32(hdr[8:], uint32(rows))
	binary.LittleEndian.PutUint32(hdr[12:], uint32(cols))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}

	for off := 0; off < len(payload); off += snapshotBlockSize {
		end := off + snapshotBlockSize
		if end > len(payload) {
			end = len(payload)
		}
		block, err := compressBlock(payload[off:end], comp)
		if err != nil {
			return err
		}
		if _, err := w.Write(block); err != nil {
			return err
		}
	}
	return nil
}

// compressBlock frames one block as [uncompressed u32][compressed u32][data].
// When compression gains less than 10% the block is stored raw.
func compressBlock(data []byte, comp Compression) ([]byte, error) {
	var compressed []byte
	var err error
	switch comp {
	case CompressionLZ4:
		compressed, err = compressLZ4(data)
	case CompressionZSTD:
		compressed = compressZSTD(data)
	}
	if err != nil {
		return nil, err
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		out := make([]byte, blockHeaderSize+len(data))
		binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
		binary.LittleEndian.PutUint32(out[4:], 0) // 0 = raw
		copy(out[blockHeaderSize:], data)
		return out, nil
	}

	out := make([]byte, blockHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(compressed)))
	copy(out[blockHeaderSize:], compressed)
	return out, nil
}

func compressLZ4(data []byte) ([]byte, error) {
	buf := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, buf, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil // incompressible
	}
	return buf[:n], nil
}

func compressZSTD(data []byte) []byte {
	enc := getZstdEncoder()
	defer putZstdEncoder(enc)
	return enc.EncodeAll(data, nil)
}

func readSnapshot(r io.Reader) (kind byte, rows, cols int, values []float64, err error) {
	var hdr [snapshotHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, 0, 0, nil, fmt.Errorf("%w: short header", ErrSnapshotMagic)
	}
	if !bytes.Equal(hdr[:4], snapshotMagic[:]) {
		return 0, 0, 0, nil, ErrSnapshotMagic
	}
	if hdr[4] != snapshotVersion {
		return 0, 0, 0, nil, fmt.Errorf("%w: %d", ErrSnapshotVersion, hdr[4])
	}
	comp := Compression(hdr[6])
	switch comp {
	case CompressionNone, CompressionLZ4, CompressionZSTD:
	default:
		return 0, 0, 0, nil, fmt.Errorf("%w: %d", ErrUnknownCompression, hdr[6])
	}

	rows = int(binary.LittleEndian.Uint32(hdr[8:]))
	cols = int(binary.LittleEndian.Uint32(hdr[12:]))
	if rows < 1 || cols < 1 || rows > maxSnapshotDim || cols > maxSnapshotDim {
		return 0, 0, 0, nil, fmt.Errorf("%w: implausible dimensions %dx%d", ErrSnapshotCorrupt, rows, cols)
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return 0, 0, 0, nil, err
	}

	want := rows * cols * 8
	payload := make([]byte, 0, want)
	for off := 0; off < len(raw); {
		if off+blockHeaderSize > len(raw) {
			return 0, 0, 0, nil, fmt.Errorf("%w: truncated block header", ErrSnapshotCorrupt)
		}
		usize := int(binary.LittleEndian.Uint32(raw[off:]))
		csize := int(binary.LittleEndian.Uint32(raw[off+4:]))
		off += blockHeaderSize

		if usize > snapshotBlockSize {
			return 0, 0, 0, nil, fmt.Errorf("%w: oversized block", ErrSnapshotCorrupt)
		}

		if csize == 0 {
			if off+usize > len(raw) {
				return 0, 0, 0, nil, fmt.Errorf("%w: truncated block", ErrSnapshotCorrupt)
			}
			payload = append(payload, raw[off:off+usize]...)
			off += usize
			continue
		}

		if off+csize > len(raw) {
			return 0, 0, 0, nil, fmt.Errorf("%w: truncated block", ErrSnapshotCorrupt)
		}
		block := raw[off : off+csize]
		off += csize

		out := make([]byte, usize)
		switch comp {
		case CompressionLZ4:
			n, err := lz4.UncompressBlock(block, out)
			if err != nil {
				return 0, 0, 0, nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
			}
			if n != usize {
				return 0, 0, 0, nil, fmt.Errorf("%w: decompressed size mismatch", ErrSnapshotCorrupt)
			}
			payload = append(payload, out[:n]...)

		case CompressionZSTD:
			dec := getZstdDecoder()
			decoded, derr := dec.DecodeAll(block, out[:0])
			putZstdDecoder(dec)
			if derr != nil {
				return 0, 0, 0, nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, derr)
			}
			if len(decoded) != usize {
				return 0, 0, 0, nil, fmt.Errorf("%w: decompressed size mismatch", ErrSnapshotCorrupt)
			}
			payload = append(payload, decoded...)

		default:
			return 0, 0, 0, nil, fmt.Errorf("%w: compressed block in raw snapshot", ErrSnapshotCorrupt)
		}
	}

	if len(payload) != want {
		return 0, 0, 0, nil, fmt.Errorf("%w: payload is %d bytes, want %d", ErrSnapshotCorrupt, len(payload), want)
	}

	values = make([]float64, rows*cols)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(payload[i*8:]))
	}
	return hdr[5], rows, cols, values, nil
}
