package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/term"
)

// Renderer handles styled terminal output.
type Renderer struct {
	width  int
	styled bool

	Summary lipgloss.Style
	Muted   lipgloss.Style
	Data    lipgloss.Style
	Key     lipgloss.Style
	Error   lipgloss.Style
	Hint    lipgloss.Style

	Header    lipgloss.Style
	Cell      lipgloss.Style
	CellMuted lipgloss.Style
}

// NewRenderer creates a renderer. Styling is enabled when writing to a TTY,
// or when forceStyled is true, unless NO_COLOR is set.
func NewRenderer(w io.Writer, forceStyled bool) *Renderer {
	width, tty := terminalInfo(w)
	styled := (tty || forceStyled) && os.Getenv("NO_COLOR") == ""

	r := &Renderer{width: width, styled: styled}
	if !styled {
		plain := lipgloss.NewStyle()
		r.Summary, r.Muted, r.Data, r.Key = plain, plain, plain, plain
		r.Error, r.Hint = plain, plain
		r.Header, r.Cell, r.CellMuted = plain, plain, plain
		return r
	}

	r.Summary = lipgloss.NewStyle().Foreground(lipgloss.Color("#E6162D")).Bold(true)
	r.Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	r.Data = lipgloss.NewStyle()
	r.Key = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8200"))
	r.Error = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")).Bold(true)
	r.Hint = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080")).Italic(true)
	r.Header = lipgloss.NewStyle().Bold(true)
	r.Cell = lipgloss.NewStyle()
	r.CellMuted = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	return r
}

// terminalInfo returns the terminal width and whether the writer is a TTY.
func terminalInfo(w io.Writer) (width int, isTTY bool) {
	width = 80

	if f, ok := w.(*os.File); ok {
		if w, _, err := term.GetSize(f.Fd()); err == nil && w >= 40 {
			width = w
		}
		isTTY = term.IsTerminal(f.Fd())
	}
	return width, isTTY
}

// RenderResponse renders a success response to the writer.
func (r *Renderer) RenderResponse(w io.Writer, resp *Response) error {
	var b strings.Builder

	if resp.Summary != "" {
		b.WriteString(r.Summary.Render(resp.Summary))
		b.WriteString("\n\n")
	}

	r.renderData(&b, NormalizeData(resp.Data))

	if len(resp.Breadcrumbs) > 0 {
		b.WriteString("\n")
		for _, bc := range resp.Breadcrumbs {
			b.WriteString(r.Muted.Render(fmt.Sprintf("  %s  # %s", bc.Cmd, bc.Description)))
			b.WriteString("\n")
		}
	}

	if stats, ok := resp.Meta["stats"]; ok {
		b.WriteString("\n")
		b.WriteString(r.Muted.Render("Stats: " + formatStats(stats)))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderError renders an error response to the writer.
func (r *Renderer) RenderError(w io.Writer, resp *ErrorResponse) error {
	var b strings.Builder

	b.WriteString(r.Error.Render("Error: " + resp.Error))
	b.WriteString("\n")
	if resp.Hint != "" {
		b.WriteString(r.Hint.Render("Hint: " + resp.Hint))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) renderData(b *strings.Builder, data any) {
	switch d := data.(type) {
	case map[string]any:
		r.renderObject(b, d)
	case []any:
		if len(d) == 0 {
			b.WriteString(r.Muted.Render("(no results)"))
			b.WriteString("\n")
			return
		}
		if maps := toMapSlice(d); maps != nil {
			r.renderTable(b, maps)
			return
		}
		for _, item := range d {
			b.WriteString(r.Data.Render("- " + formatCell(item, r.width)))
			b.WriteString("\n")
		}
	case nil:
		b.WriteString(r.Muted.Render("(no data)"))
		b.WriteString("\n")
	default:
		b.WriteString(r.Data.Render(formatCell(d, r.width)))
		b.WriteString("\n")
	}
}

func (r *Renderer) renderObject(b *strings.Builder, obj map[string]any) {
	keys := make([]string, 0, len(obj))
	pad := 0
	for k := range obj {
		keys = append(keys, k)
		pad = max(pad, len(k))
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := priority(keys[i]), priority(keys[j])
		if pi != pj {
			return pi < pj
		}
		return keys[i] < keys[j]
	})

	for _, k := range keys {
		label := r.Key.Render(fmt.Sprintf("%-*s", pad, k))
		b.WriteString(label + "  " + r.Data.Render(formatCell(obj[k], r.width-pad-2)))
		b.WriteString("\n")
	}
}

// Column priority for table rendering (lower = higher priority)
var columnPriority = map[string]int{
	"id":              1,
	"screen_name":     2,
	"name":            2,
	"text":            3,
	"created_at":      4,
	"followers_count": 5,
	"friends_count":   5,
	"statuses_count":  5,
	"source":          6,
}

// Columns to render in muted style
var mutedColumns = map[string]bool{
	"id":         true,
	"created_at": true,
}

func priority(key string) int {
	if p, ok := columnPriority[key]; ok {
		return p
	}
	return 10
}

type column struct {
	key   string
	width int
}

func (r *Renderer) renderTable(b *strings.Builder, data []map[string]any) {
	columns := r.selectColumns(data)
	if len(columns) == 0 {
		return
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return r.Header
			}
			if col < len(columns) && mutedColumns[columns[col].key] {
				return r.CellMuted
			}
			return r.Cell
		})

	headers := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = c.key
	}
	t.Headers(headers...)

	for _, item := range data {
		row := make([]string, len(columns))
		for i, c := range columns {
			row[i] = formatCell(item[c.key], c.width)
		}
		t.Row(row...)
	}

	b.WriteString(t.String())
	b.WriteString("\n")
}

// selectColumns picks scalar columns from the first row by priority until
// the terminal width is used up.
func (r *Renderer) selectColumns(data []map[string]any) []column {
	var keys []string
	for k, v := range data[0] {
		switch v.(type) {
		case map[string]any, []any:
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := priority(keys[i]), priority(keys[j])
		if pi != pj {
			return pi < pj
		}
		return keys[i] < keys[j]
	})

	var cols []column
	used := 0
	for _, k := range keys {
		w := len(k)
		for _, item := range data {
			w = max(w, ansi.StringWidth(formatCell(item[k], 0)))
		}
		w = min(w, 48)
		if used+w+2 > r.width && len(cols) > 0 {
			break
		}
		cols = append(cols, column{key: k, width: w})
		used += w + 2
	}
	return cols
}

func toMapSlice(slice []any) []map[string]any {
	result := make([]map[string]any, 0, len(slice))
	for _, item := range slice {
		m, ok := item.(map[string]any)
		if !ok {
			return nil
		}
		result = append(result, m)
	}
	return result
}

// formatCell renders a scalar for display, truncated to limit terminal cells
// when limit is positive.
func formatCell(val any, limit int) string {
	var s string
	switch v := val.(type) {
	case nil:
		s = ""
	case string:
		s = v
	case bool:
		s = "no"
		if v {
			s = "yes"
		}
	case json.Number:
		s = v.String()
	case map[string]any, []any:
		b, _ := json.Marshal(v)
		s = string(b)
	default:
		s = fmt.Sprintf("%v", v)
	}
	s = strings.ReplaceAll(s, "\n", " ")
	if limit > 3 && ansi.StringWidth(s) > limit {
		s = ansi.Truncate(s, limit, "...")
	}
	return s
}

func formatStats(stats any) string {
	m, ok := NormalizeData(stats).(map[string]any)
	if !ok {
		return ""
	}
	var parts []string
	if n, ok := m["total_requests"].(json.Number); ok && n.String() != "0" {
		parts = append(parts, n.String()+" requests")
	}
	if n, ok := m["failed_operations"].(json.Number); ok && n.String() != "0" {
		parts = append(parts, n.String()+" failed")
	}
	if n, ok := m["bytes_received"].(json.Number); ok && n.String() != "0" {
		parts = append(parts, n.String()+" bytes")
	}
	return strings.Join(parts, " | ")
}

// NormalizeData converts typed values (structs, envelope values) into plain
// maps, slices and json.Number via a JSON round trip.
func NormalizeData(data any) any {
	switch data.(type) {
	case nil, map[string]any, []any, string, bool, json.Number:
		return data
	}
	b, err := json.Marshal(data)
	if err != nil {
		return data
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return data
	}
	return out
}
