package chstore

import (
	"fmt"
	"time"

	"github.com/brian-arnold/orcapod/types"
)

// encodeColumnValue widens v to the exact Go type the batch driver expects
// for column kind k's declared ClickHouse type (Int64/Float64/UInt8/etc,
// chosen in chType), independent of the specific int/float width the value
// arrived in.
func encodeColumnValue(k types.Kind, v any) (any, error) {
	switch {
	case k == types.Bool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("value %v is not a bool", v)
		}
		if b {
			return uint8(1), nil
		}
		return uint8(0), nil

	case k.IsInteger():
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return n, nil

	case k.IsFloat():
		f, err := toFloat64(v)
		if err != nil {
			return nil, err
		}
		return f, nil

	case k == types.String, k == types.Path:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("value %v is not a string", v)
		}
		return s, nil

	case k == types.Binary:
		b, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("value %v is not []byte", v)
		}
		return string(b), nil

	case k == types.Timestamp:
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("value %v is not a time.Time", v)
		}
		return t.UTC(), nil

	default:
		return nil, fmt.Errorf("chstore: unsupported kind %s", k)
	}
}

// decodeColumnValue converts the scanned Go value back to the type the rest
// of orcapod expects for kind k (e.g. ClickHouse's UInt8 back to bool).
func decodeColumnValue(k types.Kind, scanned any) (any, error) {
	switch {
	case k == types.Bool:
		p, ok := scanned.(*uint8)
		if !ok {
			return nil, fmt.Errorf("scanned value is not *uint8")
		}
		return *p != 0, nil

	case k.IsInteger():
		p, ok := scanned.(*int64)
		if !ok {
			return nil, fmt.Errorf("scanned value is not *int64")
		}
		return *p, nil

	case k.IsFloat():
		p, ok := scanned.(*float64)
		if !ok {
			return nil, fmt.Errorf("scanned value is not *float64")
		}
		return *p, nil

	case k == types.String, k == types.Path:
		p, ok := scanned.(*string)
		if !ok {
			return nil, fmt.Errorf("scanned value is not *string")
		}
		return *p, nil

	case k == types.Binary:
		p, ok := scanned.(*string)
		if !ok {
			return nil, fmt.Errorf("scanned value is not *string")
		}
		return []byte(*p), nil

	case k == types.Timestamp:
		p, ok := scanned.(*time.Time)
		if !ok {
			return nil, fmt.Errorf("scanned value is not *time.Time")
		}
		return *p, nil

	default:
		return nil, fmt.Errorf("chstore: unsupported kind %s", k)
	}
}

// scanDestFor returns a pointer of the Go type chType(k) scans into, for use
// as a database/sql-style Scan destination.
func scanDestFor(k types.Kind) any {
	switch {
	case k == types.Bool:
		return new(uint8)
	case k.IsInteger():
		return new(int64)
	case k.IsFloat():
		return new(float64)
	case k == types.String, k == types.Path, k == types.Binary:
		return new(string)
	case k == types.Timestamp:
		return new(time.Time)
	default:
		return new(string)
	}
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("value %v is not an integer", v)
	}
}

func toFloat64(v any) (float64, error) {
	switch f := v.(type) {
	case float32:
		return float64(f), nil
	case float64:
		return f, nil
	default:
		return 0, fmt.Errorf("value %v is not a float", v)
	}
}
