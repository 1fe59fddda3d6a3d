package pushdown

import (
	"testing"
	"time"

	"github.com/fluree/fluree-go/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name      string
		value     any
		datatype  string
		colType   ColumnType
		want      any
		expectErr bool
	}{
		{name: "integer literal to xsd:integer", value: 123, datatype: XSDInteger, want: int64(123)},
		{name: "json number to xsd:integer", value: float64(123), datatype: XSDInteger, want: int64(123)},
		{name: "lexical integer to xsd:integer", value: "123", datatype: XSDInteger, want: int64(123)},
		{name: "string to xsd:integer fails", value: "abc", datatype: XSDInteger, expectErr: true},
		{name: "fractional to xsd:integer fails", value: 1.5, datatype: XSDInteger, expectErr: true},
		{name: "decimal string to xsd:decimal", value: "10.25", datatype: XSDDecimal, want: 10.25},
		{name: "garbage to xsd:decimal fails", value: "ten", datatype: XSDDecimal, expectErr: true},
		{name: "int to xsd:double", value: 2, datatype: XSDDouble, want: float64(2)},
		{name: "true to xsd:boolean", value: true, datatype: XSDBoolean, want: true},
		{name: "canonical string to xsd:boolean", value: "false", datatype: XSDBoolean, want: false},
		{name: "TRUE is not canonical", value: "TRUE", datatype: XSDBoolean, expectErr: true},
		{name: "one is not a boolean", value: 1, datatype: XSDBoolean, expectErr: true},
		{name: "dateTime parses", value: "2024-03-01T12:00:00Z", datatype: XSDDateTime, want: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		{name: "date parses", value: "2024-03-01", datatype: XSDDate, want: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{name: "malformed date fails", value: "03/01/2024", datatype: XSDDate, expectErr: true},
		{name: "string passes through", value: "US", datatype: XSDString, want: "US"},
		{name: "native int64 column", value: "42", colType: ColInt64, want: int64(42)},
		{name: "native string column rejects number", value: 42, colType: ColString, expectErr: true},
		{name: "untyped passes through", value: "anything", want: "anything"},
		{name: "unknown datatype fails", value: "x", datatype: "http://www.w3.org/2001/XMLSchema#hexBinary", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.value, tt.datatype, tt.colType)

			if tt.expectErr {
				// A failed coercion is observable, never a silent nil.
				require.Error(t, err)
				assert.True(t, apperr.IsKind(err, apperr.KindCoercion))
				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
