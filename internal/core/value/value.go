// Package value implements the codec between application scalars and the engine's wire values.
//
// A Value is one of ten kinds. Encode lowers it onto the five SQLite storage classes carried by
// Wire; Decode lifts a Wire back using a Kind hint. Every kind round-trips exactly:
// DateTime keeps its UTC offset, Decimal keeps its scale, Blob is never treated as text.
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/satishbabariya/litesql/internal/core/dberr"
)

// Kind tags a Value.
type Kind uint8

const (
	// KindAny is a decode hint meaning "take the natural kind of the wire value".
	KindAny Kind = iota
	KindNull
	KindInteger
	KindFloat
	KindText
	KindBlob
	KindBoolean
	KindDateTime
	KindDecimal
	KindUUID
	KindJSON
)

var kindNames = [...]string{"any", "null", "integer", "float", "text", "blob", "boolean", "datetime", "decimal", "uuid", "json"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind resolves a kind name as printed by Kind.String.
func ParseKind(name string) (Kind, bool) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), true
		}
	}
	return KindAny, false
}

// Value is an application-level scalar. The zero Value is Null.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    []byte
	t    time.Time
	d    decimal.Decimal
	u    uuid.UUID
}

// Null returns the SQL NULL value.
func Null() Value { return Value{kind: KindNull} }

// Int returns an Integer value.
func Int(i int64) Value { return Value{kind: KindInteger, i: i} }

// Float returns a Float value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Text returns a Text value. Invalid UTF-8 is refused; use Blob for arbitrary bytes.
func Text(s string) (Value, error) {
	if !utf8.ValidString(s) {
		return Value{}, dberr.NewEncodingError("text value is not valid UTF-8")
	}
	return Value{kind: KindText, s: s}, nil
}

// MustText is Text for literals known to be valid; it panics on invalid UTF-8.
func MustText(s string) Value {
	v, err := Text(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Blob returns a Blob value holding a copy of b.
func Blob(b []byte) Value {
	c := make([]byte, len(b))
	copy(c, b)
	return Value{kind: KindBlob, b: c}
}

// Bool returns a Boolean value.
func Bool(v bool) Value {
	if v {
		return Value{kind: KindBoolean, i: 1}
	}
	return Value{kind: KindBoolean}
}

// DateTime returns a DateTime value. Monotonic clock readings are dropped.
func DateTime(t time.Time) Value { return Value{kind: KindDateTime, t: t.Round(0)} }

// Decimal returns a Decimal value. A positive exponent is folded into the coefficient
// so the value compares equal to its decoded text form.
func Decimal(d decimal.Decimal) Value {
	if d.Exponent() > 0 {
		d = decimal.NewFromBigInt(d.BigInt(), 0)
	}
	return Value{kind: KindDecimal, d: d}
}

// UUID returns a Uuid value.
func UUID(u uuid.UUID) Value { return Value{kind: KindUUID, u: u} }

// JSON serializes doc and returns a Json value holding its canonical form.
func JSON(doc interface{}) (Value, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return Value{}, dberr.NewEncodingError("json value cannot be serialized: %v", err).WithCause(err)
	}
	return JSONRaw(raw)
}

// JSONRaw validates a serialized document and returns a Json value holding its canonical form.
func JSONRaw(raw []byte) (Value, error) {
	canonical, err := canonicalJSON(raw)
	if err != nil {
		return Value{}, err
	}
	return Value{kind: KindJSON, b: canonical}, nil
}

// Kind returns the value's tag.
func (v Value) Kind() Kind {
	if v.kind == KindAny {
		return KindNull
	}
	return v.kind
}

// IsNull reports whether v is NULL.
func (v Value) IsNull() bool { return v.Kind() == KindNull }

// Int64 returns the Integer payload, or 0/1 for a Boolean.
func (v Value) Int64() int64 { return v.i }

// Float64 returns the Float payload.
func (v Value) Float64() float64 { return v.f }

// Str returns the Text payload.
func (v Value) Str() string { return v.s }

// Bytes returns the Blob payload or the canonical Json document.
func (v Value) Bytes() []byte { return v.b }

// Bool returns the Boolean payload.
func (v Value) Bool() bool { return v.i != 0 }

// Time returns the DateTime payload.
func (v Value) Time() time.Time { return v.t }

// Dec returns the Decimal payload.
func (v Value) Dec() decimal.Decimal { return v.d }

// UUIDValue returns the Uuid payload.
func (v Value) UUIDValue() uuid.UUID { return v.u }

// Document parses the Json payload back to a structured value. Numbers decode as json.Number.
func (v Value) Document() (interface{}, error) {
	if v.Kind() != KindJSON {
		return nil, dberr.NewDecodeError("value of kind %s is not json", v.Kind())
	}
	dec := json.NewDecoder(bytes.NewReader(v.b))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, dberr.NewEncodingError("stored json is malformed: %v", err).WithCause(err)
	}
	return doc, nil
}

// Interface returns the Go representation of v.
func (v Value) Interface() interface{} {
	switch v.Kind() {
	case KindInteger:
		return v.i
	case KindFloat:
		return v.f
	case KindText:
		return v.s
	case KindBlob:
		return v.b
	case KindBoolean:
		return v.Bool()
	case KindDateTime:
		return v.t
	case KindDecimal:
		return v.d
	case KindUUID:
		return v.u
	case KindJSON:
		return json.RawMessage(v.b)
	default:
		return nil
	}
}

// String renders v for logs. Uuid renders in canonical hyphenated form.
func (v Value) String() string {
	switch v.Kind() {
	case KindNull:
		return "NULL"
	case KindInteger:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindText:
		return fmt.Sprintf("%q", v.s)
	case KindBlob:
		return fmt.Sprintf("x'%x'", v.b)
	case KindBoolean:
		return fmt.Sprintf("%t", v.Bool())
	case KindDateTime:
		return FormatDateTime(v.t)
	case KindDecimal:
		return formatDecimal(v.d)
	case KindUUID:
		return v.u.String()
	case KindJSON:
		return string(v.b)
	}
	return "?"
}

// Equal reports exact equality: same kind, same payload, same offset for DateTime,
// same scale for Decimal.
func (v Value) Equal(o Value) bool {
	if v.Kind() != o.Kind() {
		return false
	}
	switch v.Kind() {
	case KindNull:
		return true
	case KindInteger, KindBoolean:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	case KindText:
		return v.s == o.s
	case KindBlob, KindJSON:
		return bytes.Equal(v.b, o.b)
	case KindDateTime:
		_, off1 := v.t.Zone()
		_, off2 := o.t.Zone()
		return v.t.Equal(o.t) && off1 == off2
	case KindDecimal:
		return v.d.Equal(o.d) && v.d.Exponent() == o.d.Exponent()
	case KindUUID:
		return v.u == o.u
	}
	return false
}

func canonicalJSON(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, dberr.NewEncodingError("malformed json: %v", err).WithCause(err)
	}
	if dec.More() {
		return nil, dberr.NewEncodingError("malformed json: trailing data after document")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, dberr.NewEncodingError("json value cannot be serialized: %v", err).WithCause(err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
