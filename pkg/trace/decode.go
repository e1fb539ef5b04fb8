package trace

import (
	"bytes"
	"encoding/json"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Decompress returns the decompressed trace payload. Input that does not
// start with a zstd frame is assumed to be decompressed already.
func Decompress(raw []byte) ([]byte, error) {
	if !bytes.HasPrefix(raw, zstdMagic) {
		return raw, nil
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	out, err := dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, errors.Wrap(err, "decompressing trace")
	}
	return out, nil
}

// Compress zstd-compresses a decompressed trace payload.
func Compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

// splitLines splits data on newline bytes without copying it. Trailing
// whitespace is trimmed and blank lines are dropped. Working on bytes lets
// traces larger than any single string be processed line by line.
func splitLines(data []byte) [][]byte {
	var lines [][]byte
	for len(data) > 0 {
		var line []byte
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, data = data[:i], data[i+1:]
		} else {
			line, data = data, nil
		}
		line = bytes.TrimRight(line, " \t\r\n")
		if len(line) > 0 {
			lines = append(lines, line)
		}
	}
	return lines
}

// MaxVersion is the newest trace format the reader knows. Version 3 added
// the package version id of frames. Newer traces are read on a best effort
// basis.
const MaxVersion = 3

// splitTrace separates the header line from the record lines and returns
// the trace format version.
func splitTrace(data []byte) (int, [][]byte, error) {
	lines := splitLines(data)
	if len(lines) == 0 {
		return 0, nil, ErrEmptyTrace
	}
	var hdr jsonHeader
	if err := json.Unmarshal(lines[0], &hdr); err != nil {
		return 0, nil, errors.Wrapf(ErrMalformedTrace, "decoding header: %v", err)
	}
	if hdr.Version == nil {
		return 0, nil, errors.Wrap(ErrMalformedTrace, "header has no version")
	}
	records := lines[1:]
	if len(records) == 0 {
		return 0, nil, ErrEmptyTrace
	}
	return *hdr.Version, records, nil
}

func decodeRecord(line []byte, n int) (*jsonRecord, error) {
	var rec jsonRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		if errors.Is(err, ErrMalformedTrace) || errors.Is(err, ErrUnsupportedLocation) {
			return nil, errors.WithMessagef(err, "record %d", n)
		}
		return nil, errors.Wrapf(ErrMalformedTrace, "record %d: %v", n, err)
	}
	return &rec, nil
}
