package pushdown

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fluree/fluree-go/pkg/apperr"
	"github.com/fluree/fluree-go/pkg/constant"
	"github.com/shopspring/decimal"
)

// XSD datatype IRIs the coercer understands.
const (
	XSDInteger            = "http://www.w3.org/2001/XMLSchema#integer"
	XSDLong               = "http://www.w3.org/2001/XMLSchema#long"
	XSDInt                = "http://www.w3.org/2001/XMLSchema#int"
	XSDShort              = "http://www.w3.org/2001/XMLSchema#short"
	XSDByte               = "http://www.w3.org/2001/XMLSchema#byte"
	XSDNonNegativeInteger = "http://www.w3.org/2001/XMLSchema#nonNegativeInteger"
	XSDDecimal            = "http://www.w3.org/2001/XMLSchema#decimal"
	XSDDouble             = "http://www.w3.org/2001/XMLSchema#double"
	XSDFloat              = "http://www.w3.org/2001/XMLSchema#float"
	XSDBoolean            = "http://www.w3.org/2001/XMLSchema#boolean"
	XSDDateTime           = "http://www.w3.org/2001/XMLSchema#dateTime"
	XSDDate               = "http://www.w3.org/2001/XMLSchema#date"
	XSDString             = "http://www.w3.org/2001/XMLSchema#string"
)

// ColumnType is the native type of a backing column, from the source schema.
type ColumnType int

// The native column types.
const (
	ColUnknown ColumnType = iota
	ColInt64
	ColFloat64
	ColBool
	ColString
	ColTimestamp
)

// ColumnTypes is a per-column schema fragment supplied by the backend.
type ColumnTypes map[string]ColumnType

// Coerce converts a SPARQL literal to the column's value space. The target is
// the declared XSD datatype when the mapping carries one, otherwise the
// column's native type. A failed coercion is always observable: it returns a
// classified Coercion error, never a silent nil.
func Coerce(value any, datatype string, colType ColumnType) (any, error) {
	if datatype != "" {
		return coerceXSD(value, datatype)
	}

	return coerceNative(value, colType)
}

func coerceXSD(value any, datatype string) (any, error) {
	switch datatype {
	case XSDInteger, XSDLong, XSDInt, XSDShort, XSDByte, XSDNonNegativeInteger:
		return toInt64(value, datatype)
	case XSDDecimal, XSDDouble, XSDFloat:
		return toFloat64(value, datatype)
	case XSDBoolean:
		return toBool(value)
	case XSDDateTime:
		return toInstant(value, time.RFC3339, datatype)
	case XSDDate:
		return toInstant(value, "2006-01-02", datatype)
	case XSDString:
		return toStringValue(value)
	default:
		return nil, coercionError(value, datatype)
	}
}

func coerceNative(value any, colType ColumnType) (any, error) {
	switch colType {
	case ColInt64:
		return toInt64(value, "int64")
	case ColFloat64:
		return toFloat64(value, "float64")
	case ColBool:
		return toBool(value)
	case ColString:
		return toStringValue(value)
	case ColTimestamp:
		return toInstant(value, time.RFC3339, "timestamp")
	default:
		// No declared type on either side; the literal passes through unchanged.
		return value, nil
	}
}

func toInt64(value any, target string) (any, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != float64(int64(v)) {
			return nil, coercionError(value, target)
		}

		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, coercionError(value, target)
		}

		return n, nil
	default:
		return nil, coercionError(value, target)
	}
}

func toFloat64(value any, target string) (any, error) {
	switch v := value.(type) {
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		// Decimal parsing keeps the lexical-space check exact before the value
		// is narrowed to a float.
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, coercionError(value, target)
		}

		f, _ := d.Float64()

		return f, nil
	default:
		return nil, coercionError(value, target)
	}
}

// toBool is strict: actual booleans or exactly the two canonical strings.
func toBool(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		if v == "true" {
			return true, nil
		}

		if v == "false" {
			return false, nil
		}

		return nil, coercionError(value, XSDBoolean)
	default:
		return nil, coercionError(value, XSDBoolean)
	}
}

func toInstant(value any, layout, target string) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		t, err := time.Parse(layout, v)
		if err != nil {
			return nil, coercionError(value, target)
		}

		return t, nil
	default:
		return nil, coercionError(value, target)
	}
}

func toStringValue(value any) (any, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}

	return nil, coercionError(value, XSDString)
}

func coercionError(value any, target string) error {
	return apperr.NewWithCode(apperr.KindCoercion, constant.ErrCoercionFailed,
		"cannot coerce %v (%T) to %s", value, value, target)
}

// describeValue renders a literal for coercion-failure logging.
func describeValue(v any) string {
	return fmt.Sprintf("%v", v)
}
