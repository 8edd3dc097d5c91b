package duckstore

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/brian-arnold/orcapod/types"
)

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic(fmt.Sprintf("duckstore: init zstd encoder: %v", err))
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("duckstore: init zstd decoder: %v", err))
	}
}

// encodeColumnValue renders a scalar as the CSV cell text staged ahead of
// the real-table INSERT. Binary and path values are zstd-compressed, then
// base64-encoded, so the stage table (all-VARCHAR) can carry them
// losslessly; from_base64() on the INSERT side recovers the compressed
// bytes into a BLOB column.
func encodeColumnValue(k types.Kind, v any) (string, error) {
	switch {
	case k == types.Binary:
		b, ok := v.([]byte)
		if !ok {
			return "", fmt.Errorf("value %v is not []byte", v)
		}
		return base64.StdEncoding.EncodeToString(zstdEncoder.EncodeAll(b, nil)), nil
	case k == types.Path:
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("value %v is not a string path", v)
		}
		return base64.StdEncoding.EncodeToString(zstdEncoder.EncodeAll([]byte(s), nil)), nil
	case k == types.Bool:
		b, ok := v.(bool)
		if !ok {
			return "", fmt.Errorf("value %v is not a bool", v)
		}
		return strconv.FormatBool(b), nil
	case k == types.Timestamp:
		t, ok := v.(time.Time)
		if !ok {
			return "", fmt.Errorf("value %v is not a time.Time", v)
		}
		return t.UTC().Format(time.RFC3339Nano), nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

// decodeColumnValue reconstructs a scalar from the value DuckDB's driver
// handed back for a column of kind k.
func decodeColumnValue(k types.Kind, v any) (any, error) {
	switch {
	case k == types.Binary:
		b, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("column value %v is not []byte", v)
		}
		return decompress(b)
	case k == types.Path:
		b, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("column value %v is not []byte", v)
		}
		decompressed, err := decompress(b)
		if err != nil {
			return nil, err
		}
		return string(decompressed), nil
	default:
		return v, nil
	}
}

func decompress(b []byte) ([]byte, error) {
	return zstdDecoder.DecodeAll(b, nil)
}
