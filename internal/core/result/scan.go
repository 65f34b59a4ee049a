package result

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/satishbabariya/litesql/internal/core/dberr"
	"github.com/satishbabariya/litesql/internal/core/value"
)

var timeType = reflect.TypeOf(time.Time{})

// Scan copies records into dest, which must be a pointer to a struct (first record) or a
// pointer to a slice of structs or struct pointers. Fields are matched by `db` tag, then
// `json` tag, then lower-cased field name; unmatched columns are ignored.
func Scan(records []Record, dest interface{}) error {
	destValue := reflect.ValueOf(dest)
	if destValue.Kind() != reflect.Ptr || destValue.IsNil() {
		return dberr.NewDecodeError("scan destination must be a non-nil pointer, got %T", dest)
	}
	destValue = destValue.Elem()

	switch destValue.Kind() {
	case reflect.Struct:
		if len(records) == 0 {
			return dberr.NewDecodeError("no records to scan").WithCause(sql.ErrNoRows)
		}
		return scanStruct(records[0], destValue)

	case reflect.Slice:
		elemType := destValue.Type().Elem()
		isPtr := elemType.Kind() == reflect.Ptr
		if isPtr {
			elemType = elemType.Elem()
		}
		if elemType.Kind() != reflect.Struct {
			return dberr.NewDecodeError("scan destination must be a slice of structs, got %s", destValue.Type())
		}

		out := reflect.MakeSlice(destValue.Type(), 0, len(records))
		for _, rec := range records {
			elem := reflect.New(elemType)
			if err := scanStruct(rec, elem.Elem()); err != nil {
				return err
			}
			if isPtr {
				out = reflect.Append(out, elem)
			} else {
				out = reflect.Append(out, elem.Elem())
			}
		}
		destValue.Set(out)
		return nil
	}

	return dberr.NewDecodeError("unsupported scan destination %s", destValue.Type())
}

func scanStruct(rec Record, dest reflect.Value) error {
	destType := dest.Type()
	for i := 0; i < destType.NumField(); i++ {
		field := destType.Field(i)
		fieldValue := dest.Field(i)
		if !fieldValue.CanSet() {
			continue
		}

		name := columnName(field)
		if name == "-" {
			continue
		}
		v, ok := rec.Get(name)
		if !ok {
			v, ok = findCaseInsensitive(rec, name)
			if !ok {
				continue
			}
		}

		if err := setField(fieldValue, v); err != nil {
			return dberr.NewDecodeError("field %s: %v", field.Name, err).WithCause(err)
		}
	}
	return nil
}

func columnName(field reflect.StructField) string {
	for _, key := range []string{"db", "json"} {
		if tag := field.Tag.Get(key); tag != "" {
			if name := strings.Split(tag, ",")[0]; name != "" {
				return name
			}
		}
	}
	return strings.ToLower(field.Name)
}

func findCaseInsensitive(rec Record, name string) (value.Value, bool) {
	for i, n := range rec.names {
		if strings.EqualFold(n, name) {
			return rec.values[i], true
		}
	}
	return value.Null(), false
}

func setField(field reflect.Value, v value.Value) error {
	if v.IsNull() {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}

	if scanner, ok := field.Addr().Interface().(sql.Scanner); ok {
		return scanner.Scan(driverValue(v))
	}

	if field.Kind() == reflect.Ptr {
		ptr := reflect.New(field.Type().Elem())
		if err := setField(ptr.Elem(), v); err != nil {
			return err
		}
		field.Set(ptr)
		return nil
	}

	raw := reflect.ValueOf(v.Interface())
	if raw.Type().AssignableTo(field.Type()) {
		field.Set(raw)
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		switch v.Kind() {
		case value.KindText:
			field.SetString(v.Str())
		case value.KindBlob, value.KindJSON:
			field.SetString(string(v.Bytes()))
		default:
			field.SetString(v.String())
		}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v.Kind() != value.KindInteger && v.Kind() != value.KindBoolean {
			return fmt.Errorf("cannot convert %s to %s", v.Kind(), field.Type())
		}
		if field.OverflowInt(v.Int64()) {
			return fmt.Errorf("%d overflows %s", v.Int64(), field.Type())
		}
		field.SetInt(v.Int64())

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v.Kind() != value.KindInteger || v.Int64() < 0 {
			return fmt.Errorf("cannot convert %s to %s", v, field.Type())
		}
		if field.OverflowUint(uint64(v.Int64())) {
			return fmt.Errorf("%d overflows %s", v.Int64(), field.Type())
		}
		field.SetUint(uint64(v.Int64()))

	case reflect.Float32, reflect.Float64:
		switch v.Kind() {
		case value.KindFloat:
			field.SetFloat(v.Float64())
		case value.KindInteger:
			field.SetFloat(float64(v.Int64()))
		case value.KindDecimal:
			f, _ := v.Dec().Float64()
			field.SetFloat(f)
		default:
			return fmt.Errorf("cannot convert %s to %s", v.Kind(), field.Type())
		}

	case reflect.Bool:
		switch v.Kind() {
		case value.KindBoolean, value.KindInteger:
			field.SetBool(v.Int64() != 0)
		default:
			return fmt.Errorf("cannot convert %s to bool", v.Kind())
		}

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.Uint8 {
			return fmt.Errorf("unsupported field type %s", field.Type())
		}
		switch v.Kind() {
		case value.KindBlob, value.KindJSON:
			field.SetBytes(append([]byte(nil), v.Bytes()...))
		case value.KindText:
			field.SetBytes([]byte(v.Str()))
		case value.KindUUID:
			u := v.UUIDValue()
			field.SetBytes(u[:])
		default:
			return fmt.Errorf("cannot convert %s to []byte", v.Kind())
		}

	case reflect.Struct:
		if field.Type() != timeType {
			return fmt.Errorf("unsupported struct type %s", field.Type())
		}
		if v.Kind() != value.KindText {
			return fmt.Errorf("cannot convert %s to time.Time", v.Kind())
		}
		t, err := value.ParseDateTime(v.Str())
		if err != nil {
			return fmt.Errorf("cannot parse time: %w", err)
		}
		field.Set(reflect.ValueOf(t))

	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}

// driverValue is what a database/sql driver would hand a Scanner for v.
func driverValue(v value.Value) interface{} {
	switch v.Kind() {
	case value.KindUUID:
		u := v.UUIDValue()
		return u[:]
	case value.KindDecimal:
		return v.String()
	case value.KindJSON:
		return v.Bytes()
	}
	return v.Interface()
}
