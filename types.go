package firebolt

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// --- Semantic Types ---

// Kind identifies the semantic type of a result column value.
type Kind int

const (
	// KindInt covers all integer wire types (Int8 through UInt64).
	KindInt Kind = iota
	// KindFloat covers Float32 and Float64.
	KindFloat
	// KindString covers String, Nothing and any unrecognized wire type.
	KindString
	// KindDate is a calendar date without a time component.
	KindDate
	// KindDateTime is a date with a time component.
	KindDateTime
	// KindArray is an array of another semantic type, nested to any depth.
	KindArray
)

// kindNames maps each scalar kind to a canonical wire name that ParseType
// accepts back. Plain static table, computed once.
var kindNames = map[Kind]string{
	KindInt:      "Int32",
	KindFloat:    "Float64",
	KindString:   "String",
	KindDate:     "Date",
	KindDateTime: "DateTime",
}

// String returns the canonical wire name for the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ColumnType is the semantic type descriptor of a result column.
// For KindArray, Elem holds the element type.
type ColumnType struct {
	Kind Kind
	Elem *ColumnType
}

// ArrayOf returns the array type with the given element type.
func ArrayOf(elem ColumnType) ColumnType {
	return ColumnType{Kind: KindArray, Elem: &elem}
}

// String renders the type in wire syntax, e.g. "Array(Int32)".
func (t ColumnType) String() string {
	if t.Kind == KindArray && t.Elem != nil {
		return "Array(" + t.Elem.String() + ")"
	}
	return t.Kind.String()
}

// Equal reports whether two types are structurally equal.
func (t ColumnType) Equal(other ColumnType) bool {
	if t.Kind != other.Kind {
		return false
	}
	if t.Kind != KindArray {
		return true
	}
	if t.Elem == nil || other.Elem == nil {
		return t.Elem == other.Elem
	}
	return t.Elem.Equal(*other.Elem)
}

// --- Wire Type Parsing ---

const (
	arrayPrefix    = "Array("
	nullablePrefix = "Nullable("
)

// scalarKinds maps every known scalar wire type name to its kind.
// Nothing shows up only for 'select null' style queries.
var scalarKinds = map[string]Kind{
	"Int8":     KindInt,
	"UInt8":    KindInt,
	"Int16":    KindInt,
	"UInt16":   KindInt,
	"Int32":    KindInt,
	"UInt32":   KindInt,
	"Int64":    KindInt,
	"UInt64":   KindInt,
	"Float32":  KindFloat,
	"Float64":  KindFloat,
	"String":   KindString,
	"Date":     KindDate,
	"DateTime": KindDateTime,
	"Nothing":  KindString,
}

// ParseType parses a wire type name from query metadata into a ColumnType.
// Array(...) and Nullable(...) wrappers may be nested to any depth.
// Nullability is not tracked: Nullable is unwrapped and only the base type
// is kept. Unknown names are treated as strings rather than an error, so
// the caller still has a way to work with new server types.
func ParseType(raw string) ColumnType {
	if strings.HasPrefix(raw, arrayPrefix) && strings.HasSuffix(raw, ")") {
		elem := ParseType(raw[len(arrayPrefix) : len(raw)-1])
		return ColumnType{Kind: KindArray, Elem: &elem}
	}
	if strings.HasPrefix(raw, nullablePrefix) && strings.HasSuffix(raw, ")") {
		return ParseType(raw[len(nullablePrefix) : len(raw)-1])
	}
	if kind, ok := scalarKinds[raw]; ok {
		return ColumnType{Kind: kind}
	}
	return ColumnType{Kind: KindString}
}

// --- Date ---

// Date is a calendar date result or parameter value.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the Date on which t falls.
func DateOf(t time.Time) Date {
	year, month, day := t.Date()
	return Date{Year: year, Month: month, Day: day}
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// --- Value Conversion ---

// dateTimeFormats are tried in order when parsing date and datetime wire
// values. time.Parse accepts fractional seconds even when the layout
// omits them.
var dateTimeFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02",
}

// parseDateTime parses an ISO-8601-style timestamp or date string.
func parseDateTime(s string) (time.Time, error) {
	for _, format := range dateTimeFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse datetime %q", s)
}

// ParseValue converts a raw wire-decoded value into its native
// representation, driven by the column type. Null passes through
// unchanged regardless of type.
func ParseValue(raw any, ctype ColumnType) (any, error) {
	if raw == nil {
		return nil, nil
	}

	switch ctype.Kind {
	case KindInt:
		switch v := raw.(type) {
		case json.Number:
			n, err := v.Int64()
			if err != nil {
				return nil, &DataError{Message: fmt.Sprintf("invalid int value %s", v)}
			}
			return n, nil
		case float64:
			return int64(v), nil
		case int64:
			return v, nil
		case int:
			return int64(v), nil
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, &DataError{Message: fmt.Sprintf("invalid int value %q", v)}
			}
			return n, nil
		}
		return nil, &DataError{Message: fmt.Sprintf("invalid int value %v", raw)}

	case KindFloat:
		switch v := raw.(type) {
		case json.Number:
			f, err := v.Float64()
			if err != nil {
				return nil, &DataError{Message: fmt.Sprintf("invalid float value %s", v)}
			}
			return f, nil
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		case int:
			return float64(v), nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, &DataError{Message: fmt.Sprintf("invalid float value %q", v)}
			}
			return f, nil
		}
		return nil, &DataError{Message: fmt.Sprintf("invalid float value %v", raw)}

	case KindString:
		switch v := raw.(type) {
		case string:
			return v, nil
		case json.Number:
			return v.String(), nil
		}
		return fmt.Sprint(raw), nil

	case KindDate:
		s, ok := raw.(string)
		if !ok {
			return nil, &DataError{Message: fmt.Sprintf("invalid date value %v: string expected", raw)}
		}
		t, err := parseDateTime(s)
		if err != nil {
			return nil, &DataError{Message: err.Error()}
		}
		return DateOf(t), nil

	case KindDateTime:
		s, ok := raw.(string)
		if !ok {
			return nil, &DataError{Message: fmt.Sprintf("invalid datetime value %v: string expected", raw)}
		}
		t, err := parseDateTime(s)
		if err != nil {
			return nil, &DataError{Message: err.Error()}
		}
		return t, nil

	case KindArray:
		list, ok := raw.([]any)
		if !ok {
			return nil, &DataError{Message: fmt.Sprintf("invalid array value %v: list expected", raw)}
		}
		if ctype.Elem == nil {
			return nil, &DataError{Message: "array type has no element type"}
		}
		parsed := make([]any, len(list))
		for i, item := range list {
			value, err := ParseValue(item, *ctype.Elem)
			if err != nil {
				return nil, err
			}
			parsed[i] = value
		}
		return parsed, nil
	}

	return nil, &DataError{Message: fmt.Sprintf("unsupported data type returned: %s", ctype)}
}

// --- Parameter Formatting ---

// sqlEscapes escapes NUL, backslash and single quote inside string
// literals. No other characters are escaped.
var sqlEscapes = strings.NewReplacer(
	"\x00", `\0`,
	`\`, `\\`,
	`'`, `\'`,
)

// FormatValue renders a parameter value as a SQL literal for placeholder
// substitution.
func FormatValue(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if v {
			return "1", nil
		}
		return "0", nil
	case int:
		return strconv.Itoa(v), nil
	case int8:
		return strconv.FormatInt(int64(v), 10), nil
	case int16:
		return strconv.FormatInt(int64(v), 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case json.Number:
		return v.String(), nil
	case string:
		return "'" + sqlEscapes.Replace(v) + "'", nil
	case time.Time:
		// Sub-second precision is dropped by the engine, so it is dropped
		// here as well.
		if _, offset := v.Zone(); offset != 0 {
			v = v.UTC()
		}
		return "'" + v.Format("2006-01-02 15:04:05") + "'", nil
	case Date:
		return "'" + v.String() + "'", nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		items := make([]string, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			formatted, err := FormatValue(rv.Index(i).Interface())
			if err != nil {
				return "", err
			}
			items[i] = formatted
		}
		return "[" + strings.Join(items, ", ") + "]", nil
	}

	return "", &DataError{Message: fmt.Sprintf("unsupported parameter type %T", value)}
}
