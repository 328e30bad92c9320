package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/xzinc/IPL/pkg/common/structs"
	"github.com/xzinc/IPL/pkg/types"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

func printBackends(w io.Writer, resp *structs.BackendsResponse) {
	table := newTable(w, "", "name", "kind", "priority", "status", "usage", "failures", "last checked", "last error")
	for _, b := range resp.Backends {
		marker := ""
		if b.Name == resp.Active {
			marker = "*"
		}
		table.Append([]string{
			marker,
			b.Name,
			string(b.Kind),
			strconv.Itoa(b.Priority),
			string(b.Status),
			fmt.Sprintf("%.1f%%", b.Usage*100),
			strconv.Itoa(b.ConsecutiveFailures),
			since(b.LastChecked),
			b.LastError,
		})
	}
	table.Render()
}

func printHealth(w io.Writer, results map[string]types.HealthStatus) {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	table := newTable(w, "backend", "status")
	for _, name := range names {
		table.Append([]string{name, string(results[name])})
	}
	table.Render()
}

func printRefresh(w io.Writer, results []*structs.RefreshResponse) {
	table := newTable(w, "type", "entities")
	for _, r := range results {
		table.Append([]string{string(r.Type), strconv.Itoa(r.Count)})
	}
	table.Render()
}

func printPrune(w io.Writer, resp *structs.PruneResponse) {
	fmt.Fprintf(w, "removed %d interactions (max %d per user, older than %s)\n",
		resp.Removed, resp.MaxPerUser, resp.Before.Format(time.RFC3339))

	names := make([]string, 0, len(resp.PerBackend))
	for name := range resp.PerBackend {
		names = append(names, name)
	}
	sort.Strings(names)

	table := newTable(w, "backend", "removed")
	for _, name := range names {
		table.Append([]string{name, strconv.Itoa(resp.PerBackend[name])})
	}
	table.Render()
}

func printConfig(w io.Writer, v *structs.ConfigView) {
	table := newTable(w, "setting", "value")
	table.AppendBulk([][]string{
		{"learning_rate", v.LearningRate},
		{"learning_enabled", strconv.FormatBool(v.LearningEnabled)},
		{"high_water_mark", strconv.FormatFloat(v.HighWaterMark, 'f', -1, 64)},
		{"prune_threshold", strconv.FormatFloat(v.PruneThreshold, 'f', -1, 64)},
		{"auto_failover", strconv.FormatBool(v.AutoFailover)},
		{"failback", strconv.FormatBool(v.Failback)},
		{"freshness_ttl", v.FreshnessTTL},
		{"max_per_user", strconv.Itoa(v.MaxPerUser)},
		{"retention", v.Retention},
	})
	table.Render()
}

func since(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return time.Since(t).Round(time.Second).String() + " ago"
}
