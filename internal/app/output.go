package app

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"omnisearch/internal/domain"
)

const maxTitleWidth = 60

func writeJSON(w io.Writer, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printSearchResponse(w io.Writer, resp domain.SearchResponse) error {
	fmt.Fprintf(w, "search %s: %d results from %d tools in %s\n",
		resp.SearchID, len(resp.Results), len(resp.Queried), resp.Duration.Round(time.Millisecond))

	if len(resp.Results) > 0 {
		table := tablewriter.NewTable(w,
			tablewriter.WithHeader([]string{"Score", "Tool", "Type", "Title", "Date"}),
		)
		for _, r := range resp.Results {
			row := []string{
				strconv.FormatFloat(r.RelevanceScore, 'f', 2, 64),
				r.ToolID,
				r.ContentType,
				truncate(r.Title, maxTitleWidth),
				r.Timestamp.Format("2006-01-02"),
			}
			if err := table.Append(row); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
	}

	warn := color.New(color.FgYellow)
	for _, failure := range resp.Failures {
		warn.Fprintf(w, "%s: %s\n", failure.ToolID, failure.Error)
	}
	if resp.Dropped > 0 {
		fmt.Fprintf(w, "%d duplicate results dropped\n", resp.Dropped)
	}
	return nil
}

func truncate(s string, width int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}
