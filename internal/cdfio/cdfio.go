// Package cdfio persists containers as binary files: a magic/version header
// followed by framed sections, one for the global attributes, one for the
// epoch column, and one per variable. Each frame is
//
//	[length:4 LE][murmur3-64:8 LE][snappy(payload)]
//
// where the payload is the JSON encoding of the section.
package cdfio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/golang/snappy"
	"github.com/spaolacci/murmur3"

	kiterrors "github.com/swxlab/swxkit/internal/errors"
	"github.com/swxlab/swxkit/pkg/types"
)

const (
	formatVersion = uint16(1)
	maxFrameSize  = 1 << 30
)

var magic = [4]byte{'S', 'W', 'X', 'C'}

// File is the on-disk shape of a container.
type File struct {
	Global    *types.Metadata
	EpochName string
	Epoch     []time.Time
	EpochMeta *types.Metadata
	Variables []Variable
}

// Variable is one stored variable: its typed array, attributes, and the
// optional world coordinate system for spectral data.
type Variable struct {
	Name          string
	Data          types.Array
	Meta          *types.Metadata
	Units         string
	RecordVarying bool
	WCS           *types.WCS
}

// Write serializes f to path, replacing any existing file.
func Write(path string, f *File) error {
	out, err := os.Create(path)
	if err != nil {
		return kiterrors.NewStorageError(kiterrors.CodeUploadFailed,
			fmt.Sprintf("create container file %s", path), err)
	}
	defer out.Close()

	if err := writeHeader(out, len(f.Variables)); err != nil {
		return err
	}
	globalPayload, globalErr := globalSection(f.Global)
	if err := writeFrame(out, globalPayload, globalErr); err != nil {
		return err
	}
	epochPayload, epochErr := epochSection(f)
	if err := writeFrame(out, epochPayload, epochErr); err != nil {
		return err
	}
	for i := range f.Variables {
		varPayload, varErr := variableSection(&f.Variables[i])
		if err := writeFrame(out, varPayload, varErr); err != nil {
			return err
		}
	}
	if err := out.Sync(); err != nil {
		return kiterrors.NewStorageError(kiterrors.CodeUploadFailed,
			fmt.Sprintf("sync container file %s", path), err)
	}
	return nil
}

// Read loads a container file written by Write, verifying every frame
// checksum.
func Read(path string) (*File, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, kiterrors.NewStorageError(kiterrors.CodeObjectNotFound,
			fmt.Sprintf("open container file %s", path), err)
	}
	defer in.Close()

	varCount, err := readHeader(in, path)
	if err != nil {
		return nil, err
	}

	f := &File{}
	global, err := readFrame(in, path)
	if err != nil {
		return nil, err
	}
	if f.Global, err = decodeGlobalSection(global); err != nil {
		return nil, corrupt(path, "global attribute section", err)
	}

	epoch, err := readFrame(in, path)
	if err != nil {
		return nil, err
	}
	if err := decodeEpochSection(epoch, f); err != nil {
		return nil, corrupt(path, "epoch section", err)
	}

	for i := 0; i < varCount; i++ {
		payload, err := readFrame(in, path)
		if err != nil {
			return nil, err
		}
		v, err := decodeVariableSection(payload)
		if err != nil {
			return nil, corrupt(path, "variable section", err)
		}
		f.Variables = append(f.Variables, v)
	}
	return f, nil
}

func writeHeader(w io.Writer, varCount int) error {
	if _, err := w.Write(magic[:]); err != nil {
		return kiterrors.NewStorageError(kiterrors.CodeUploadFailed, "write file header", err)
	}
	if err := binary.Write(w, binary.LittleEndian, formatVersion); err != nil {
		return kiterrors.NewStorageError(kiterrors.CodeUploadFailed, "write file header", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(varCount)); err != nil {
		return kiterrors.NewStorageError(kiterrors.CodeUploadFailed, "write file header", err)
	}
	return nil
}

func readHeader(r io.Reader, path string) (int, error) {
	var got [4]byte
	if _, err := io.ReadFull(r, got[:]); err != nil {
		return 0, corrupt(path, "file header", err)
	}
	if got != magic {
		return 0, corrupt(path, "file header",
			fmt.Errorf("bad magic %q", got[:]))
	}
	var version, varCount uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return 0, corrupt(path, "file header", err)
	}
	if version != formatVersion {
		return 0, corrupt(path, "file header",
			fmt.Errorf("unsupported format version %d", version))
	}
	if err := binary.Read(r, binary.LittleEndian, &varCount); err != nil {
		return 0, corrupt(path, "file header", err)
	}
	return int(varCount), nil
}

func writeFrame(w io.Writer, payload []byte, err error) error {
	if err != nil {
		return kiterrors.NewStorageError(kiterrors.CodeUploadFailed, "encode section", err)
	}
	compressed := snappy.Encode(nil, payload)
	if err := binary.Write(w, binary.LittleEndian, uint32(len(compressed))); err != nil {
		return kiterrors.NewStorageError(kiterrors.CodeUploadFailed, "write frame length", err)
	}
	if err := binary.Write(w, binary.LittleEndian, murmur3.Sum64(compressed)); err != nil {
		return kiterrors.NewStorageError(kiterrors.CodeUploadFailed, "write frame checksum", err)
	}
	if _, err := w.Write(compressed); err != nil {
		return kiterrors.NewStorageError(kiterrors.CodeUploadFailed, "write frame payload", err)
	}
	return nil
}

func readFrame(r io.Reader, path string) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, corrupt(path, "frame length", err)
	}
	if length > maxFrameSize {
		return nil, corrupt(path, "frame length",
			fmt.Errorf("frame of %d bytes exceeds limit", length))
	}
	var sum uint64
	if err := binary.Read(r, binary.LittleEndian, &sum); err != nil {
		return nil, corrupt(path, "frame checksum", err)
	}
	compressed := make([]byte, length)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, corrupt(path, "frame payload", err)
	}
	if murmur3.Sum64(compressed) != sum {
		return nil, corrupt(path, "frame payload",
			fmt.Errorf("checksum mismatch"))
	}
	payload, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, corrupt(path, "frame payload", err)
	}
	return payload, nil
}

func corrupt(path, section string, cause error) error {
	return kiterrors.NewStorageError(kiterrors.CodeCorruptFile,
		fmt.Sprintf("read %s of %s", section, path), cause)
}
