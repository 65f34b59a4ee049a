package value

import (
	"database/sql/driver"
	"encoding/json"
	"math"
	"math/big"
	"reflect"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/satishbabariya/litesql/internal/core/dberr"
)

// DateTimeLayout is the fixed text form of DateTime values: nanosecond precision and an
// explicit numeric UTC offset (never "Z").
const DateTimeLayout = "2006-01-02T15:04:05.000000000-07:00"

// DateTimeSecondsLayout is used instead of DateTimeLayout when the offset has a seconds
// part, as historical local mean time zones do.
const DateTimeSecondsLayout = "2006-01-02T15:04:05.000000000-07:00:00"

// FormatDateTime renders t in DateTimeLayout, or in DateTimeSecondsLayout when its offset
// is not a whole number of minutes.
func FormatDateTime(t time.Time) string {
	if _, offset := t.Zone(); offset%60 != 0 {
		return t.Format(DateTimeSecondsLayout)
	}
	return t.Format(DateTimeLayout)
}

// ParseDateTime is the exact inverse of FormatDateTime: text that FormatDateTime would not
// produce is rejected.
func ParseDateTime(s string) (time.Time, error) {
	layout := DateTimeLayout
	if len(s) == len(DateTimeSecondsLayout) {
		layout = DateTimeSecondsLayout
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, dberr.NewEncodingError("text %q is not a datetime in %s form", s, DateTimeLayout).WithCause(err)
	}
	if FormatDateTime(t) != s {
		return time.Time{}, dberr.NewEncodingError("text %q does not round-trip as a datetime", s)
	}
	return t, nil
}

var decimalText = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

// StorageClass is one of the engine's native value classes.
type StorageClass uint8

const (
	StorageNull StorageClass = iota
	StorageInteger
	StorageReal
	StorageText
	StorageBlob
)

func (c StorageClass) String() string {
	switch c {
	case StorageNull:
		return "NULL"
	case StorageInteger:
		return "INTEGER"
	case StorageReal:
		return "REAL"
	case StorageText:
		return "TEXT"
	case StorageBlob:
		return "BLOB"
	}
	return "UNKNOWN"
}

// Wire is a value as the engine stores it.
type Wire struct {
	Class   StorageClass
	Integer int64
	Real    float64
	Text    string
	Blob    []byte
}

// Arg returns the driver argument for w.
func (w Wire) Arg() interface{} {
	switch w.Class {
	case StorageInteger:
		return w.Integer
	case StorageReal:
		return w.Real
	case StorageText:
		return w.Text
	case StorageBlob:
		if w.Blob == nil {
			return []byte{}
		}
		return w.Blob
	default:
		return nil
	}
}

// Args converts wire values to driver arguments.
func Args(ws []Wire) []interface{} {
	args := make([]interface{}, len(ws))
	for i, w := range ws {
		args[i] = w.Arg()
	}
	return args
}

// WireFromDriver converts a value scanned from the driver. time.Time values, which the
// sqlite3 driver produces for DATETIME-declared columns, are rendered in DateTimeLayout.
func WireFromDriver(v interface{}) (Wire, error) {
	switch x := v.(type) {
	case nil:
		return Wire{Class: StorageNull}, nil
	case int64:
		return Wire{Class: StorageInteger, Integer: x}, nil
	case float64:
		return Wire{Class: StorageReal, Real: x}, nil
	case bool:
		if x {
			return Wire{Class: StorageInteger, Integer: 1}, nil
		}
		return Wire{Class: StorageInteger}, nil
	case string:
		return Wire{Class: StorageText, Text: x}, nil
	case []byte:
		b := make([]byte, len(x))
		copy(b, x)
		return Wire{Class: StorageBlob, Blob: b}, nil
	case time.Time:
		return Wire{Class: StorageText, Text: FormatDateTime(x)}, nil
	}
	return Wire{}, dberr.NewEncodingError("unsupported driver value of type %T", v)
}

// Encode lowers v onto its wire representation.
func Encode(v Value) (Wire, error) {
	switch v.Kind() {
	case KindNull:
		return Wire{Class: StorageNull}, nil
	case KindInteger, KindBoolean:
		return Wire{Class: StorageInteger, Integer: v.i}, nil
	case KindFloat:
		if math.IsNaN(v.f) {
			return Wire{}, dberr.NewEncodingError("NaN cannot be stored as a float")
		}
		return Wire{Class: StorageReal, Real: v.f}, nil
	case KindText:
		if !utf8.ValidString(v.s) {
			return Wire{}, dberr.NewEncodingError("text value is not valid UTF-8")
		}
		return Wire{Class: StorageText, Text: v.s}, nil
	case KindBlob:
		return Wire{Class: StorageBlob, Blob: v.b}, nil
	case KindDateTime:
		if y := v.t.Year(); y < 0 || y > 9999 {
			return Wire{}, dberr.NewEncodingError("datetime year %d is outside 0000-9999", y)
		}
		return Wire{Class: StorageText, Text: FormatDateTime(v.t)}, nil
	case KindDecimal:
		return Wire{Class: StorageText, Text: formatDecimal(v.d)}, nil
	case KindUUID:
		b := make([]byte, 16)
		copy(b, v.u[:])
		return Wire{Class: StorageBlob, Blob: b}, nil
	case KindJSON:
		return Wire{Class: StorageText, Text: string(v.b)}, nil
	}
	return Wire{}, dberr.NewEncodingError("unknown value kind %s", v.Kind())
}

// EncodeAll encodes a parameter list, stopping at the first failure.
func EncodeAll(vs []Value) ([]Wire, error) {
	ws := make([]Wire, len(vs))
	for i, v := range vs {
		w, err := Encode(v)
		if err != nil {
			return nil, err
		}
		ws[i] = w
	}
	return ws, nil
}

// Decode lifts w into a Value of the hinted kind. NULL decodes to Null for every hint.
func Decode(w Wire, hint Kind) (Value, error) {
	if w.Class == StorageNull {
		return Null(), nil
	}

	switch hint {
	case KindAny:
		return decodeNatural(w)

	case KindNull:
		return Value{}, mismatch(w, hint)

	case KindInteger:
		if w.Class == StorageInteger {
			return Int(w.Integer), nil
		}

	case KindFloat:
		switch w.Class {
		case StorageReal:
			return Float(w.Real), nil
		case StorageInteger:
			if w.Integer > 1<<53 || w.Integer < -(1<<53) {
				return Value{}, dberr.NewEncodingError("integer %d cannot be represented exactly as a float", w.Integer)
			}
			return Float(float64(w.Integer)), nil
		}

	case KindText:
		if w.Class == StorageText {
			return Text(w.Text)
		}

	case KindBlob:
		if w.Class == StorageBlob {
			return Blob(w.Blob), nil
		}

	case KindBoolean:
		if w.Class == StorageInteger {
			switch w.Integer {
			case 0:
				return Bool(false), nil
			case 1:
				return Bool(true), nil
			}
			return Value{}, dberr.NewEncodingError("integer %d is not a boolean", w.Integer)
		}

	case KindDateTime:
		if w.Class == StorageText {
			return parseDateTime(w.Text)
		}

	case KindDecimal:
		switch w.Class {
		case StorageText:
			if !decimalText.MatchString(w.Text) {
				return Value{}, dberr.NewEncodingError("text %q is not a decimal", w.Text)
			}
			d, err := decimal.NewFromString(w.Text)
			if err != nil {
				return Value{}, dberr.NewEncodingError("text %q is not a decimal: %v", w.Text, err).WithCause(err)
			}
			return Decimal(d), nil
		case StorageInteger:
			return Decimal(decimal.NewFromInt(w.Integer)), nil
		}

	case KindUUID:
		if w.Class == StorageBlob {
			u, err := uuid.FromBytes(w.Blob)
			if err != nil {
				return Value{}, dberr.NewEncodingError("blob of %d bytes is not a uuid", len(w.Blob)).WithCause(err)
			}
			return UUID(u), nil
		}

	case KindJSON:
		if w.Class == StorageText {
			v, err := JSONRaw([]byte(w.Text))
			if err != nil {
				return Value{}, dberr.NewEncodingError("stored json is malformed").WithCause(err)
			}
			return v, nil
		}

	default:
		return Value{}, dberr.NewEncodingError("unknown decode hint %s", hint)
	}

	return Value{}, mismatch(w, hint)
}

func decodeNatural(w Wire) (Value, error) {
	switch w.Class {
	case StorageInteger:
		return Int(w.Integer), nil
	case StorageReal:
		return Float(w.Real), nil
	case StorageText:
		return Text(w.Text)
	case StorageBlob:
		return Blob(w.Blob), nil
	}
	return Null(), nil
}

func mismatch(w Wire, hint Kind) error {
	return dberr.NewEncodingError("cannot decode %s wire value as %s", w.Class, hint)
}

func parseDateTime(s string) (Value, error) {
	t, err := ParseDateTime(s)
	if err != nil {
		return Value{}, err
	}
	return DateTime(t), nil
}

func formatDecimal(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

// From converts a Go value into a Value.
func From(x interface{}) (Value, error) {
	switch v := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return v, nil
	case int:
		return Int(int64(v)), nil
	case int8:
		return Int(int64(v)), nil
	case int16:
		return Int(int64(v)), nil
	case int32:
		return Int(int64(v)), nil
	case int64:
		return Int(v), nil
	case uint:
		return fromUnsigned(uint64(v))
	case uint8:
		return Int(int64(v)), nil
	case uint16:
		return Int(int64(v)), nil
	case uint32:
		return Int(int64(v)), nil
	case uint64:
		return fromUnsigned(v)
	case *big.Int:
		if v == nil {
			return Null(), nil
		}
		if !v.IsInt64() {
			return Value{}, dberr.NewEncodingError("integer %s exceeds 64 bits", v.String())
		}
		return Int(v.Int64()), nil
	case float32:
		return Float(float64(v)), nil
	case float64:
		return Float(v), nil
	case bool:
		return Bool(v), nil
	case string:
		return Text(v)
	case []byte:
		if v == nil {
			return Null(), nil
		}
		return Blob(v), nil
	case time.Time:
		return DateTime(v), nil
	case decimal.Decimal:
		return Decimal(v), nil
	case uuid.UUID:
		return UUID(v), nil
	case json.RawMessage:
		return JSONRaw(v)
	case driver.Valuer:
		dv, err := v.Value()
		if err != nil {
			return Value{}, dberr.NewEncodingError("valuer failed: %v", err).WithCause(err)
		}
		return From(dv)
	}

	rv := reflect.ValueOf(x)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return Null(), nil
		}
		return From(rv.Elem().Interface())
	}
	return Value{}, dberr.NewEncodingError("unsupported value of type %T", x)
}

func fromUnsigned(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return Value{}, dberr.NewEncodingError("integer %d exceeds 64-bit signed range", u)
	}
	return Int(int64(u)), nil
}
