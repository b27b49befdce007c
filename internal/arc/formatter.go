package arc

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
)

// Column widths of the recommendation table. With box borders and padding a
// row is 68 runes wide.
const (
	colItemWidth   = 20
	colQtyWidth    = 5
	colSellWidth   = 9
	colRclWidth    = 9
	colMarginWidth = 9
)

// Embed budget. A Discord embed description holds 4096 characters; the table
// chrome costs 283, every data row plus its separator 138, and the longest
// truncation footer 64.
const (
	MaxRowsWithFooter = 27
	MaxRowsPerEmbed   = 28
)

// EmptyMessage is rendered instead of a table with no rows.
const EmptyMessage = "No items to display."

// Cell alignments.
const (
	AlignLeft   = 'l'
	AlignRight  = 'r'
	AlignCenter = 'c'
)

// FormatNumber renders n with thousands separators: 1200 -> "1,200".
func FormatNumber(n int) string {
	return humanize.Comma(int64(n))
}

// FormatSigned renders n with an explicit sign: "+1,440", "-600", "0".
func FormatSigned(n int) string {
	if n > 0 {
		return "+" + FormatNumber(n)
	}
	return FormatNumber(n)
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	return string(r[:width-1]) + "…"
}

func alignCell(s string, width int, align byte) string {
	pad := width - utf8.RuneCountInString(s)
	if pad <= 0 {
		return s
	}
	switch align {
	case AlignRight:
		return strings.Repeat(" ", pad) + s
	case AlignCenter:
		left := pad/2 + (pad & width & 1)
		return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
	default:
		return s + strings.Repeat(" ", pad)
	}
}

func separator(widths []int, left, mid, right string) string {
	segs := make([]string, len(widths))
	for i, w := range widths {
		segs[i] = strings.Repeat("─", w+2)
	}
	return left + strings.Join(segs, mid) + right
}

func rowLine(cells []string, widths []int, aligns []byte) string {
	var b strings.Builder
	b.WriteString("│")
	for i, w := range widths {
		val := ""
		if i < len(cells) {
			val = cells[i]
		}
		b.WriteString(" ")
		b.WriteString(alignCell(val, w, aligns[i]))
		b.WriteString(" │")
	}
	return b.String()
}

// FormatTable draws a box-drawing table. A positive entry in widths fixes
// that column's width and truncates longer cells with an ellipsis; a zero
// entry (or a nil widths slice) sizes the column to its widest cell.
// aligns holds AlignLeft, AlignRight, or AlignCenter per column and
// defaults to left. Data rows are separated by rules. There is no trailing
// newline.
func FormatTable(headers []string, rows [][]string, aligns []byte, widths []int) string {
	n := len(headers)
	if aligns == nil {
		aligns = make([]byte, n)
		for i := range aligns {
			aligns[i] = AlignLeft
		}
	}
	fixed := make([]int, n)
	copy(fixed, widths)

	process := func(cells []string) []string {
		out := make([]string, len(cells))
		for i, c := range cells {
			if i < n && fixed[i] > 0 {
				c = truncate(c, fixed[i])
			}
			out[i] = c
		}
		return out
	}
	head := process(headers)
	body := make([][]string, len(rows))
	for i, r := range rows {
		body[i] = process(r)
	}

	colWidths := make([]int, n)
	for i := range n {
		if fixed[i] > 0 {
			colWidths[i] = fixed[i]
			continue
		}
		w := utf8.RuneCountInString(head[i])
		for _, r := range body {
			if i < len(r) {
				w = max(w, utf8.RuneCountInString(r[i]))
			}
		}
		colWidths[i] = w
	}

	mid := separator(colWidths, "├", "┼", "┤")
	lines := []string{
		separator(colWidths, "┌", "┬", "┐"),
		rowLine(head, colWidths, aligns),
		mid,
	}
	for i, r := range body {
		lines = append(lines, rowLine(r, colWidths, aligns))
		if i < len(body)-1 {
			lines = append(lines, mid)
		}
	}
	lines = append(lines, separator(colWidths, "└", "┴", "┘"))
	return strings.Join(lines, "\n")
}

// FormatTableForEmbed wraps FormatTable in a code block, followed by
// footer when it is not empty.
func FormatTableForEmbed(headers []string, rows [][]string, aligns []byte, widths []int, footer string) string {
	s := "```\n" + FormatTable(headers, rows, aligns, widths) + "\n```"
	if footer != "" {
		s += "\n" + footer
	}
	return s
}

// tableLayout is the header, alignment, and width set of one table kind.
type tableLayout struct {
	headers []string
	aligns  []byte
	widths  []int
}

var recLayout = tableLayout{
	headers: []string{"Item", "Qty", "Sell", "Rcl", "Margin"},
	aligns:  []byte{AlignLeft, AlignRight, AlignRight, AlignRight, AlignRight},
	widths:  []int{colItemWidth, colQtyWidth, colSellWidth, colRclWidth, colMarginWidth},
}

var perUnitLayout = tableLayout{
	headers: []string{"Item", "Sell/u", "Rcl/u"},
	aligns:  []byte{AlignLeft, AlignRight, AlignRight},
	widths:  []int{colItemWidth + colQtyWidth + colMarginWidth + 6, colSellWidth, colRclWidth},
}

var sourcesLayout = tableLayout{
	headers: []string{"Item", "Qty", "Each", "Total", "Via"},
	aligns:  []byte{AlignLeft, AlignRight, AlignRight, AlignRight, AlignLeft},
	widths:  []int{18, 5, 6, 7, 16},
}

func truncationFooter(remaining int, hint string) string {
	noun := "items"
	if remaining == 1 {
		noun = "item"
	}
	return fmt.Sprintf("... and %d more %s. use %s to see everything", remaining, noun, hint)
}

// render lays rows out as embed descriptions. Without showAll it returns
// one description of at most MaxRowsWithFooter rows and reports whether
// rows were cut; with showAll it pages at MaxRowsPerEmbed.
func (l tableLayout) render(rows [][]string, showAll bool, hint string) ([]string, bool) {
	if !showAll {
		if len(rows) <= MaxRowsWithFooter {
			return []string{FormatTableForEmbed(l.headers, rows, l.aligns, l.widths, "")}, false
		}
		footer := truncationFooter(len(rows)-MaxRowsWithFooter, hint)
		return []string{FormatTableForEmbed(l.headers, rows[:MaxRowsWithFooter], l.aligns, l.widths, footer)}, true
	}

	var pages []string
	for start := 0; start < len(rows); start += MaxRowsPerEmbed {
		end := min(start+MaxRowsPerEmbed, len(rows))
		pages = append(pages, FormatTableForEmbed(l.headers, rows[start:end], l.aligns, l.widths, ""))
	}
	return pages, false
}

func recommendationRow(r Recommendation) []string {
	return []string{
		r.Name,
		strconv.Itoa(r.Quantity),
		FormatNumber(r.SellValue),
		FormatNumber(r.RecycleValue),
		FormatSigned(r.Margin),
	}
}

// FormatRecommendations renders recommendations as embed descriptions with
// the Item, Qty, Sell, Rcl, Margin columns. The bool reports truncation.
func FormatRecommendations(recs []Recommendation, showAll bool, hint string) ([]string, bool) {
	if len(recs) == 0 {
		return []string{EmptyMessage}, false
	}
	rows := make([][]string, len(recs))
	for i, r := range recs {
		rows[i] = recommendationRow(r)
	}
	return recLayout.render(rows, showAll, hint)
}

// FormatRecommendationsWithTotal is FormatRecommendations with a TOTAL row
// summing every recommendation, including the ones cut from display. In
// single mode the total takes one of the rows; in paged mode it closes the
// last page.
func FormatRecommendationsWithTotal(recs []Recommendation, showAll bool, hint string) ([]string, bool) {
	if len(recs) == 0 {
		return []string{EmptyMessage}, false
	}

	var qty, sell, rcl, margin int
	rows := make([][]string, len(recs))
	for i, r := range recs {
		rows[i] = recommendationRow(r)
		qty += r.Quantity
		sell += r.SellValue
		rcl += r.RecycleValue
		margin += r.Margin
	}
	total := []string{"TOTAL", strconv.Itoa(qty), FormatNumber(sell), FormatNumber(rcl), FormatSigned(margin)}

	l := recLayout
	if !showAll {
		maxData := MaxRowsWithFooter - 1
		display := rows
		footer := ""
		truncated := len(rows) > maxData
		if truncated {
			display = rows[:maxData]
			footer = truncationFooter(len(rows)-maxData, hint)
		}
		display = append(display[:len(display):len(display)], total)
		return []string{FormatTableForEmbed(l.headers, display, l.aligns, l.widths, footer)}, truncated
	}

	var pages []string
	for start := 0; start < len(rows); start += MaxRowsPerEmbed {
		end := min(start+MaxRowsPerEmbed, len(rows))
		chunk := rows[start:end:end]
		if end == len(rows) && len(chunk) < MaxRowsPerEmbed {
			chunk = append(chunk, total)
		}
		pages = append(pages, FormatTableForEmbed(l.headers, chunk, l.aligns, l.widths, ""))
	}
	if len(rows)%MaxRowsPerEmbed == 0 {
		pages = append(pages, FormatTableForEmbed(l.headers, [][]string{total}, l.aligns, l.widths, ""))
	}
	return pages, false
}

func perUnit(total, qty int) int {
	if qty == 0 {
		return 0
	}
	return total / qty
}

func perUnitRows(recs []Recommendation) [][]string {
	rows := make([][]string, len(recs))
	for i, r := range recs {
		rows[i] = []string{
			fmt.Sprintf("%d× %s", r.Quantity, r.Name),
			FormatNumber(perUnit(r.SellValue, r.Quantity)),
			FormatNumber(perUnit(r.RecycleValue, r.Quantity)),
		}
	}
	return rows
}

// FormatSellRecommendations renders sell advice with per-unit values.
func FormatSellRecommendations(recs []Recommendation, showAll bool, hint string) ([]string, bool) {
	if len(recs) == 0 {
		return []string{EmptyMessage}, false
	}
	return perUnitLayout.render(perUnitRows(recs), showAll, hint)
}

// FormatRecycleRecommendations renders recycle advice with per-unit values.
func FormatRecycleRecommendations(recs []Recommendation, showAll bool, hint string) ([]string, bool) {
	if len(recs) == 0 {
		return []string{EmptyMessage}, false
	}
	return perUnitLayout.render(perUnitRows(recs), showAll, hint)
}

// via names the intermediate materials between a source and the target.
func via(chain []string) string {
	if len(chain) <= 2 {
		return "direct"
	}
	return strings.Join(chain[1:len(chain)-1], " › ")
}

// FormatRecycleSources renders the stash items that recycle into target.
func FormatRecycleSources(sources []RecycleSource, target string, showAll bool, hint string) ([]string, bool) {
	if len(sources) == 0 {
		return []string{fmt.Sprintf("Nothing in your stash recycles into %s.", target)}, false
	}
	rows := make([][]string, len(sources))
	for i, s := range sources {
		rows[i] = []string{
			s.Name,
			strconv.Itoa(s.Quantity),
			FormatNumber(s.YieldPerUnit),
			FormatNumber(s.TotalYield),
			via(s.Chain),
		}
	}
	return sourcesLayout.render(rows, showAll, hint)
}
