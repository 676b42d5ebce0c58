package view

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/taskexplorer/internal/config"
	"github.com/dshills/taskexplorer/internal/explorer"
)

// Tree drawing prefixes.
const (
	branchPrefix   = "├── "
	lastPrefix     = "└── "
	continuePrefix = "│   "
	indentPrefix   = "    "
)

// PrintOptions controls Print.
type PrintOptions struct {
	// Color enables ANSI styling.
	Color bool
	// Collapsed stops at groups whose expansion is collapsed instead of
	// printing every task.
	Collapsed bool
}

type printer struct {
	w    io.Writer
	exp  *explorer.Explorer
	opts PrintOptions

	group   lipgloss.Style
	dim     lipgloss.Style
	running lipgloss.Style
}

// Print writes the explorer's tree to w.
func Print(ctx context.Context, w io.Writer, exp *explorer.Explorer, opts PrintOptions) error {
	r := lipgloss.NewRenderer(w)
	p := &printer{
		w:       w,
		exp:     exp,
		opts:    opts,
		group:   r.NewStyle().Bold(true),
		dim:     r.NewStyle().Faint(true),
		running: r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
	}

	roots, err := exp.Children(ctx, nil)
	if err != nil {
		return err
	}
	if len(roots) == 0 {
		_, err := fmt.Fprintln(w, "No tasks found.")
		return err
	}
	for _, root := range roots {
		if err := p.node(ctx, root, "", ""); err != nil {
			return err
		}
	}
	return nil
}

func (p *printer) node(ctx context.Context, n *explorer.Node, prefix, childPrefix string) error {
	item := p.exp.Item(n)

	var line strings.Builder
	line.WriteString(prefix)
	line.WriteString(item.Icon)
	line.WriteString(" ")
	if n.IsGroup() {
		line.WriteString(p.style(p.group, item.Label))
	} else {
		line.WriteString(item.Label)
	}
	if item.Status == explorer.StatusRunning {
		line.WriteString(" ")
		line.WriteString(p.style(p.running, markerRunning+" running"))
	}
	if item.Description != "" {
		line.WriteString(" ")
		line.WriteString(p.style(p.dim, "("+item.Description+")"))
	}
	if _, err := fmt.Fprintln(p.w, line.String()); err != nil {
		return err
	}

	if !n.IsGroup() || (p.opts.Collapsed && n.Expansion == config.Collapsed) {
		return nil
	}
	children, err := p.exp.Children(ctx, n)
	if err != nil {
		return err
	}
	for i, c := range children {
		last := i == len(children)-1
		branch, next := branchPrefix, continuePrefix
		if last {
			branch, next = lastPrefix, indentPrefix
		}
		if err := p.node(ctx, c, childPrefix+branch, childPrefix+next); err != nil {
			return err
		}
	}
	return nil
}

func (p *printer) style(s lipgloss.Style, text string) string {
	if !p.opts.Color {
		return text
	}
	return s.Render(text)
}
