package gdr

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
	"time"
)

// =====================================
// Result Materialization
// =====================================

// decodeRows materializes every envelope row into an entity value.
// Columns are matched to fields by column name; columns with no
// matching field are ignored so templates may select extra columns.
// Entities implementing AfterFindHook get their callback after all
// columns are assigned.
func decodeRows(ctx context.Context, desc *EntityDescriptor, env *ResultEnvelope) ([]reflect.Value, error) {
	fieldFor := make([][]int, len(env.Columns))
	for i, col := range env.Columns {
		if field, ok := desc.FieldByColumn(col); ok {
			fieldFor[i] = field.Index
		}
	}

	out := make([]reflect.Value, 0, len(env.Rows))
	for _, row := range env.Rows {
		entity := reflect.New(desc.GoType).Elem()
		for i, raw := range row {
			if i >= len(fieldFor) || fieldFor[i] == nil {
				continue
			}
			field := entity.FieldByIndex(fieldFor[i])
			if err := assignValue(field, raw); err != nil {
				return nil, NewErrorWithCause(ErrorKindTypeMismatch,
					fmt.Sprintf("cannot assign column %q of entity %s", env.Columns[i], desc.Name), err)
			}
		}
		if hook, ok := entity.Addr().Interface().(AfterFindHook); ok {
			if err := hook.AfterFind(ctx); err != nil {
				return nil, NewErrorWithCause(ErrorKindExecution,
					fmt.Sprintf("AfterFind hook failed for entity %s", desc.Name), err)
			}
		}
		out = append(out, entity)
	}
	return out, nil
}

// decodeSingle materializes a single-shape result: no rows reports
// absence, more than one row is a non-unique result.
func decodeSingle(ctx context.Context, desc *EntityDescriptor, env *ResultEnvelope) (reflect.Value, bool, error) {
	if len(env.Rows) == 0 {
		return reflect.Value{}, false, nil
	}
	if len(env.Rows) > 1 {
		return reflect.Value{}, false, NewErrorf(ErrorKindNonUniqueResult,
			"query for a single %s matched more than one row", desc.Name)
	}
	values, err := decodeRows(ctx, desc, env)
	if err != nil {
		return reflect.Value{}, false, err
	}
	return values[0], true, nil
}

// scalarInt64 extracts the first column of the first row as an
// integer, for count and exists results.
func scalarInt64(env *ResultEnvelope) (int64, error) {
	if len(env.Rows) == 0 || len(env.Rows[0]) == 0 {
		return 0, nil
	}
	n, err := toInt64(env.Rows[0][0])
	if err != nil {
		return 0, NewErrorWithCause(ErrorKindTypeMismatch, "scalar result is not numeric", err)
	}
	return n, nil
}

func toInt64(raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected scalar type %T", raw)
	}
}

// assignValue converts a driver value into a struct field. Drivers
// hand back int64, float64, bool, []byte, string, time.Time or nil;
// everything else goes through sql.Scanner when the field supports it.
func assignValue(dest reflect.Value, raw interface{}) error {
	if raw == nil {
		dest.Set(reflect.Zero(dest.Type()))
		return nil
	}
	if dest.Kind() == reflect.Ptr {
		elem := reflect.New(dest.Type().Elem())
		if err := assignValue(elem.Elem(), raw); err != nil {
			return err
		}
		dest.Set(elem)
		return nil
	}
	if dest.CanAddr() {
		if scanner, ok := dest.Addr().Interface().(sql.Scanner); ok {
			return scanner.Scan(raw)
		}
	}

	rv := reflect.ValueOf(raw)
	if rv.Type().AssignableTo(dest.Type()) {
		dest.Set(rv)
		return nil
	}

	switch dest.Kind() {
	case reflect.String:
		switch v := raw.(type) {
		case []byte:
			dest.SetString(string(v))
			return nil
		case string:
			dest.SetString(v)
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch v := raw.(type) {
		case int64:
			dest.SetInt(v)
			return nil
		case float64:
			dest.SetInt(int64(v))
			return nil
		case []byte:
			n, err := strconv.ParseInt(string(v), 10, 64)
			if err != nil {
				return err
			}
			dest.SetInt(n)
			return nil
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return err
			}
			dest.SetInt(n)
			return nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		switch v := raw.(type) {
		case int64:
			dest.SetUint(uint64(v))
			return nil
		case float64:
			dest.SetUint(uint64(v))
			return nil
		case []byte:
			n, err := strconv.ParseUint(string(v), 10, 64)
			if err != nil {
				return err
			}
			dest.SetUint(n)
			return nil
		case string:
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return err
			}
			dest.SetUint(n)
			return nil
		}
	case reflect.Float32, reflect.Float64:
		switch v := raw.(type) {
		case float64:
			dest.SetFloat(v)
			return nil
		case int64:
			dest.SetFloat(float64(v))
			return nil
		case []byte:
			f, err := strconv.ParseFloat(string(v), 64)
			if err != nil {
				return err
			}
			dest.SetFloat(f)
			return nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return err
			}
			dest.SetFloat(f)
			return nil
		}
	case reflect.Bool:
		switch v := raw.(type) {
		case bool:
			dest.SetBool(v)
			return nil
		case int64:
			dest.SetBool(v != 0)
			return nil
		case []byte:
			b, err := strconv.ParseBool(string(v))
			if err != nil {
				return err
			}
			dest.SetBool(b)
			return nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			dest.SetBool(b)
			return nil
		}
	case reflect.Slice:
		if dest.Type().Elem().Kind() == reflect.Uint8 {
			switch v := raw.(type) {
			case []byte:
				dest.SetBytes(append([]byte(nil), v...))
				return nil
			case string:
				dest.SetBytes([]byte(v))
				return nil
			}
		}
	case reflect.Struct:
		if dest.Type() == timeType {
			switch v := raw.(type) {
			case time.Time:
				dest.Set(reflect.ValueOf(v))
				return nil
			case []byte:
				return assignTime(dest, string(v))
			case string:
				return assignTime(dest, v)
			}
		}
	}

	if rv.Type().ConvertibleTo(dest.Type()) && isNumericKind(rv.Kind()) && isNumericKind(dest.Kind()) {
		dest.Set(rv.Convert(dest.Type()))
		return nil
	}
	return fmt.Errorf("cannot convert %T into %s", raw, dest.Type())
}

// assignTime parses a textual timestamp. SQLite stores time values as
// text, so common layouts are tried in order.
func assignTime(dest reflect.Value, s string) error {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			dest.Set(reflect.ValueOf(t))
			return nil
		}
	}
	return fmt.Errorf("cannot parse %q as time", s)
}
