package transform

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

const (
	FormatJSONLines = "jsonl"
	FormatCBOR      = "cbor"

	CompressionNone = "none"
	CompressionZstd = "zstd"
)

// encoder turns the records of one bucket into one output object.
type encoder struct {
	ext    string
	encode func([]Record) ([]byte, error)
}

var cborEncMode cbor.EncMode

func init() {
	var err error

	// same input must give byte-identical output across runs.
	cborEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("transform: CBOR encoder initialization failed: " + err.Error())
	}
}

func encodeJSONLines(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// encodeCBOR writes a CBOR sequence (RFC 8742): one data item per record.
func encodeCBOR(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := cborEncMode.NewEncoder(&buf)

	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func newEncoder(format, compression string) (encoder, error) {
	var e encoder

	switch format {
	case "", FormatJSONLines:
		e = encoder{ext: ".jsonl", encode: encodeJSONLines}
	case FormatCBOR:
		e = encoder{ext: ".cbor", encode: encodeCBOR}
	default:
		return e, fmt.Errorf("unknown output format %q (must be one of %v)", format,
			[]string{FormatJSONLines, FormatCBOR})
	}

	switch compression {
	case "", CompressionNone:
	case CompressionZstd:
		zw, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
		if err != nil {
			return e, fmt.Errorf("failed to initialize zstd encoder: %w", err)
		}

		inner := e.encode
		e.ext += ".zst"
		e.encode = func(records []Record) ([]byte, error) {
			raw, err := inner(records)
			if err != nil {
				return nil, err
			}

			return zw.EncodeAll(raw, nil), nil
		}
	default:
		return e, fmt.Errorf("unknown output compression %q (must be one of %v)", compression,
			[]string{CompressionNone, CompressionZstd})
	}

	return e, nil
}
