package ui

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/litesql/internal/core/query/domain"
	"github.com/satishbabariya/litesql/internal/core/result"
	"github.com/satishbabariya/litesql/internal/core/value"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev, prevColor := Out, color.NoColor
	Out, color.NoColor = &buf, true
	t.Cleanup(func() { Out, color.NoColor = prev, prevColor })
	return &buf
}

func TestFormatValue(t *testing.T) {
	captureOutput(t)

	tests := []struct {
		name string
		in   value.Value
		want string
	}{
		{"null", value.Null(), "NULL"},
		{"integer", value.Int(-42), "-42"},
		{"text is unquoted", value.MustText("hi there"), "hi there"},
		{"boolean", value.Bool(true), "true"},
		{"short blob", value.Blob([]byte{0xde, 0xad}), "x'dead'"},
		{"long blob", value.Blob(make([]byte, 20)), "x'00000000000000000000000000000000…' (20 bytes)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.in))
		})
	}
}

func TestTable(t *testing.T) {
	records := []result.Record{
		result.NewRecord([]string{"id", "name"}, []value.Value{value.Int(1), value.MustText("a")}),
		result.NewRecord([]string{"id", "name"}, []value.Value{value.Int(2), value.MustText("b")}),
	}
	headers, rows := Table(nil, records)
	assert.Equal(t, []string{"id", "name"}, headers)
	assert.Equal(t, [][]string{{"1", "a"}, {"2", "b"}}, rows)

	headers, rows = Table([]string{"x"}, nil)
	assert.Equal(t, []string{"x"}, headers)
	assert.Empty(t, rows)
}

func TestPrintRecordsAndResult(t *testing.T) {
	buf := captureOutput(t)

	records := []result.Record{result.NewRecord([]string{"n"}, []value.Value{value.Int(7)})}
	require.NoError(t, PrintRecords([]string{"n"}, records))
	assert.Contains(t, buf.String(), "(1 row)")

	buf.Reset()
	PrintResult(result.New(domain.CommandInsert, nil, nil, 2, 9))
	assert.Contains(t, buf.String(), "INSERT: 2 rows affected, last insert id 9")

	buf.Reset()
	PrintResult(result.New(domain.CommandCreate, nil, nil, 0, 0))
	assert.Contains(t, buf.String(), "CREATE")
}
