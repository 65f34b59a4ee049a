// Package ui renders CLI output: status lines, result tables and markdown.
package ui

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/pterm/pterm"

	"github.com/satishbabariya/litesql/internal/core/query/domain"
	"github.com/satishbabariya/litesql/internal/core/result"
	"github.com/satishbabariya/litesql/internal/core/value"
)

var (
	// Colors
	PrimaryColor   = lipgloss.Color("#00D9FF")
	SuccessColor   = lipgloss.Color("#00FF88")
	WarningColor   = lipgloss.Color("#FFB800")
	ErrorColor     = lipgloss.Color("#FF4444")
	SecondaryColor = lipgloss.Color("#6C757D")

	// Styles
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	SecondaryStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor)

	nullColor = color.New(color.Faint, color.Italic)
)

// Out is where regular output goes.
var Out io.Writer = os.Stdout

// PrintSuccess prints a success message
func PrintSuccess(format string, args ...interface{}) {
	fmt.Fprintln(Out, SuccessStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

// PrintError prints an error message
func PrintError(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, ErrorStyle.Render("✗ "+fmt.Sprintf(format, args...)))
}

// PrintWarning prints a warning message
func PrintWarning(format string, args ...interface{}) {
	fmt.Fprintln(Out, WarningStyle.Render("⚠ "+fmt.Sprintf(format, args...)))
}

// PrintInfo prints a secondary note
func PrintInfo(format string, args ...interface{}) {
	fmt.Fprintln(Out, SecondaryStyle.Render(fmt.Sprintf(format, args...)))
}

// PrintSection prints a section header
func PrintSection(title string) {
	width := 80
	if w := pterm.GetTerminalWidth(); w > 0 && w < width {
		width = w
	}

	section := lipgloss.NewStyle().
		Width(width).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(SecondaryColor).
		Render(TitleStyle.Render(title))

	fmt.Fprintln(Out, section)
}

// PrintTable prints a table using pterm
func PrintTable(headers []string, rows [][]string) error {
	tableData := pterm.TableData{headers}
	tableData = append(tableData, rows...)
	return pterm.DefaultTable.WithHasHeader().WithWriter(Out).WithData(tableData).Render()
}

// PrintRecords prints decoded records as a table followed by a row count.
func PrintRecords(columns []string, records []result.Record) error {
	headers, rows := Table(columns, records)
	if len(headers) > 0 {
		if err := PrintTable(headers, rows); err != nil {
			return err
		}
	}
	PrintInfo("(%d %s)", len(records), plural(len(records), "row", "rows"))
	return nil
}

// PrintResult prints the outcome of a statement that returned no rows.
func PrintResult(res *result.Result) {
	switch {
	case res.Command.IsDML():
		msg := fmt.Sprintf("%s: %d %s affected", strings.ToUpper(string(res.Command)), res.RowsAffected, plural(int(res.RowsAffected), "row", "rows"))
		if res.LastInsertID > 0 && res.Command == domain.CommandInsert {
			msg += fmt.Sprintf(", last insert id %d", res.LastInsertID)
		}
		PrintSuccess("%s", msg)
	default:
		PrintSuccess("%s", strings.ToUpper(string(res.Command)))
	}
}

// Table converts records to printable cells. columns is used when there are no records.
func Table(columns []string, records []result.Record) ([]string, [][]string) {
	headers := columns
	if len(records) > 0 {
		headers = records[0].Names()
	}
	rows := make([][]string, len(records))
	for i, rec := range records {
		cells := make([]string, rec.Len())
		for j, v := range rec.Values() {
			cells[j] = FormatValue(v)
		}
		rows[i] = cells
	}
	return headers, rows
}

// FormatValue renders one value for a table cell.
func FormatValue(v value.Value) string {
	switch v.Kind() {
	case value.KindNull:
		return nullColor.Sprint("NULL")
	case value.KindText:
		return v.Str()
	case value.KindBoolean:
		return strconv.FormatBool(v.Bool())
	case value.KindBlob:
		b := v.Bytes()
		if len(b) > 16 {
			return fmt.Sprintf("x'%x…' (%d bytes)", b[:16], len(b))
		}
		return fmt.Sprintf("x'%x'", b)
	default:
		return v.String()
	}
}

// PrintMarkdown renders markdown content
func PrintMarkdown(content string) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return err
	}

	out, err := r.Render(content)
	if err != nil {
		return err
	}

	fmt.Fprint(Out, out)
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
