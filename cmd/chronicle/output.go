package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/pders01/chronicle/internal/gateway"
)

// printer writes command results, coloured unless disabled.
type printer struct {
	out       io.Writer
	useColors bool
}

func newPrinter(out io.Writer) *printer {
	useColors := !noColor
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		useColors = false
	}
	if os.Getenv("TERM") == "dumb" {
		useColors = false
	}
	return &printer{out: out, useColors: useColors}
}

func (p *printer) print(attr color.Attribute, format string, args ...interface{}) {
	if p.useColors {
		color.New(attr).Fprintf(p.out, format+"\n", args...)
		return
	}
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *printer) Success(format string, args ...interface{}) {
	p.print(color.FgGreen, "✓ "+format, args...)
}

func (p *printer) Info(format string, args ...interface{}) {
	p.print(color.FgCyan, format, args...)
}

func (p *printer) Warn(format string, args ...interface{}) {
	p.print(color.FgYellow, format, args...)
}

func (p *printer) Header(format string, args ...interface{}) {
	if p.useColors {
		color.New(color.FgHiWhite, color.Bold).Fprintf(p.out, format+"\n", args...)
		return
	}
	fmt.Fprintf(p.out, format+"\n", args...)
}

// status colours an article status for table cells.
func (p *printer) status(s gateway.Status) string {
	if !p.useColors {
		return string(s)
	}
	if s == gateway.StatusDraft {
		return color.YellowString(string(s))
	}
	return color.GreenString(string(s))
}

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoWrap: tw.WrapNone,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoFormat: tw.On,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{
					ShowHeader: tw.Off,
				},
			},
		}),
	)
}

// printArticles renders articles as a table. showStatus adds the status
// column for the author's own listings.
func (p *printer) printArticles(articles []gateway.Article, showStatus bool) {
	if len(articles) == 0 {
		p.Warn("No articles")
		return
	}

	header := []string{"ID", "Title", "Author", "Date", "Category", "Views"}
	if showStatus {
		header = append(header, "Status")
	}

	rows := make([][]string, 0, len(articles))
	for _, a := range articles {
		row := []string{
			strconv.Itoa(a.ID),
			clip(a.Title, 48),
			clip(a.AuthorName, 24),
			a.PublishedDate(),
			a.CategoryName,
			strconv.Itoa(a.ViewsCount),
		}
		if showStatus {
			row = append(row, p.status(a.Status))
		}
		rows = append(rows, row)
	}

	table := newTable(p.out)
	table.Header(header)
	table.Bulk(rows)
	table.Render()
}

func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
