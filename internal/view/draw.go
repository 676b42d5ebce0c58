package view

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/uniseg"

	"github.com/dshills/taskexplorer/internal/explorer"
)

// Styles used by the tree view.
var (
	styleDefault = tcell.StyleDefault
	styleHeader  = tcell.StyleDefault.Bold(true)
	styleDim     = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleRunning = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	styleError   = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleCursor  = tcell.StyleDefault.Reverse(true)
)

const (
	markerExpanded  = "▾"
	markerCollapsed = "▸"
	markerRunning   = "●"
	helpLine        = "↑↓ move  → open/run  ← close  s stop  r refresh  e/c expand/collapse all  q quit"
)

// Draw renders the header, the visible rows and the status line.
func (v *TreeView) Draw() {
	v.screen.Clear()
	width, height := v.screen.Size()
	if width <= 0 || height <= 0 {
		return
	}

	v.drawText(0, 0, width, v.title, styleHeader)

	body := height - 2
	if body < 1 {
		v.screen.Show()
		return
	}
	v.scrollTo(body)

	if len(v.rows) == 0 {
		v.drawText(0, 1, width, "No tasks found.", styleDim)
	}
	for i := 0; i < body && v.offset+i < len(v.rows); i++ {
		idx := v.offset + i
		v.drawRow(1+i, width, v.rows[idx], idx == v.cursor)
	}

	status, style := helpLine, styleDim
	if v.message != "" {
		status, style = v.message, styleDefault
		if v.messageErr {
			style = styleError
		}
	}
	v.drawText(0, height-1, width, status, style)
	v.screen.Show()
}

// scrollTo keeps the cursor inside a window of body rows.
func (v *TreeView) scrollTo(body int) {
	if v.cursor < v.offset {
		v.offset = v.cursor
	}
	if v.cursor >= v.offset+body {
		v.offset = v.cursor - body + 1
	}
	if maxOffset := max(len(v.rows)-body, 0); v.offset > maxOffset {
		v.offset = maxOffset
	}
}

func (v *TreeView) drawRow(y, width int, r row, selected bool) {
	item := v.exp.Item(r.node)

	base := styleDefault
	if selected {
		base = styleCursor
		for x := 0; x < width; x++ {
			v.screen.SetContent(x, y, ' ', nil, base)
		}
	}

	x := 2 * r.depth
	marker := " "
	if r.node.IsGroup() {
		marker = markerCollapsed
		if v.expanded(r) {
			marker = markerExpanded
		}
	}
	x = v.drawText(x, y, width, marker+" "+item.Icon+" ", base)
	x = v.drawText(x, y, width, item.Label, base)

	if item.Status == explorer.StatusRunning {
		running := styleRunning
		if selected {
			running = running.Reverse(true)
		}
		x = v.drawText(x, y, width, " "+markerRunning, running)
	}

	dim := styleDim
	if selected {
		dim = base
	}
	if item.Description != "" {
		v.drawText(x, y, width, "  "+item.Description, dim)
	}
}

// drawText writes s starting at x and returns the column after it. Text
// past width is clipped.
func (v *TreeView) drawText(x, y, width int, s string, style tcell.Style) int {
	for _, r := range s {
		w := uniseg.StringWidth(string(r))
		if w == 0 {
			w = 1
		}
		if x+w > width {
			break
		}
		v.screen.SetContent(x, y, r, nil, style)
		x += w
	}
	return x
}

// Line returns the text drawn on screen row y with trailing blanks
// trimmed.
func (v *TreeView) Line(y int) string {
	width, _ := v.screen.Size()
	var b strings.Builder
	for x := 0; x < width; x++ {
		//nolint:staticcheck // GetContent is deprecated but used for compatibility
		r, _, _, w := v.screen.GetContent(x, y)
		if r == 0 {
			r = ' '
		}
		b.WriteRune(r)
		if w > 1 {
			x += w - 1
		}
	}
	return strings.TrimRight(b.String(), " ")
}
