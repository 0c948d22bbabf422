package outwriter

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/schema"
)

// pathResult is the JSON shape of a query answer.
type pathResult struct {
	Path   schema.QueryPath `json:"path"`
	Result any              `json:"result"`
}

func formatters(cfg *contract.Config) (fmtFloat func(float64) string, fmtRate func(float64) string) {
	fmtFloat = func(v float64) string { return strconv.FormatFloat(v, 'f', cfg.Precision, 64) }
	fmtRate = func(v float64) string { return strconv.FormatFloat(v*100, 'f', 1, 64) + "%" }
	return fmtFloat, fmtRate
}

func rateLabel(cfg *contract.Config, rate float64) string {
	if cfg.UseColors {
		return ColorRateLabel(rate)
	}
	return PlainRateLabel(rate)
}

// KeyValueReport prints labelled values as a two-column table.
func KeyValueReport(title string, pairs [][2]string, data any) Report {
	rows := make([][]string, len(pairs))
	for i, p := range pairs {
		rows[i] = []string{p[0], p[1]}
	}
	return Report{Title: title, Header: []string{"Field", "Value"}, Rows: rows, Data: data}
}

// SchedulesReport lists stored schedules.
func SchedulesReport(list []schema.ScheduleInfo, cfg *contract.Config) Report {
	_, fmtRate := formatters(cfg)
	rows := make([][]string, 0, len(list))
	for _, s := range list {
		rate := 0.0
		if s.BlockCount > 0 {
			rate = float64(s.ScheduledCount) / float64(s.BlockCount)
		}
		rows = append(rows, []string{
			strconv.FormatInt(s.ID, 10),
			truncate(s.Name, maxNameWidth()),
			s.UploadedAt.Format(time.DateTime),
			strconv.Itoa(s.BlockCount),
			strconv.Itoa(s.ScheduledCount),
			fmtRate(rate),
			rateLabel(cfg, rate),
			truncate(s.Checksum, 12),
		})
	}
	return Report{
		Header: []string{"ID", "Name", "Uploaded", "Blocks", "Scheduled", "Rate", "Label", "Checksum"},
		Rows:   rows,
		Footer: fmt.Sprintf("%d schedules", len(list)),
		Data:   list,
	}
}

// MetricsReport prints the aggregate metrics of a schedule.
func MetricsReport(m schema.ScheduleMetrics, path schema.QueryPath, cfg *contract.Config) Report {
	fmtFloat, fmtRate := formatters(cfg)
	r := KeyValueReport("", [][2]string{
		{"Blocks", strconv.Itoa(m.TotalCount)},
		{"Scheduled", strconv.Itoa(m.ScheduledCount)},
		{"Zero visibility", strconv.Itoa(m.ZeroVisibilityCount)},
		{"Scheduling rate", fmtRate(m.SchedulingRate) + " " + rateLabel(cfg, m.SchedulingRate)},
		{"Priority min/mean/max", fmtFloat(m.PriorityMin) + " / " + fmtFloat(m.PriorityMean) + " / " + fmtFloat(m.PriorityMax)},
		{"Visibility hours min/mean/max", fmtFloat(m.VisibilityMin) + " / " + fmtFloat(m.VisibilityMean) + " / " + fmtFloat(m.VisibilityMax)},
		{"Requested hours min/mean/max", fmtFloat(m.RequestedMin) + " / " + fmtFloat(m.RequestedMean) + " / " + fmtFloat(m.RequestedMax)},
	}, pathResult{Path: path, Result: m})
	r.Footer = footer(path)
	return r
}

// SummaryReport prints the full summary row of a schedule.
func SummaryReport(s schema.SummaryAnalytics, path schema.QueryPath, cfg *contract.Config) Report {
	fmtFloat, fmtRate := formatters(cfg)
	r := KeyValueReport("", [][2]string{
		{"Blocks", strconv.Itoa(s.TotalBlocks)},
		{"Scheduled / unscheduled", strconv.Itoa(s.ScheduledBlocks) + " / " + strconv.Itoa(s.UnscheduledBlocks)},
		{"Impossible", strconv.Itoa(s.ImpossibleBlocks)},
		{"Scheduling rate", fmtRate(s.SchedulingRate) + " " + rateLabel(cfg, s.SchedulingRate)},
		{"Priority median", fmtFloat(s.PriorityMedian)},
		{"Priority mean scheduled / unscheduled", fmtFloat(s.PriorityScheduledMean) + " / " + fmtFloat(s.PriorityUnscheduledMean)},
		{"Visibility hours total", fmtFloat(s.VisibilityTotalHours)},
		{"Requested hours total", fmtFloat(s.RequestedTotalHours)},
		{"Scheduled hours total", fmtFloat(s.ScheduledTotalHours)},
		{"Spearman priority~visibility", fmtFloat(s.CorrPriorityVisibility)},
		{"Spearman priority~requested", fmtFloat(s.CorrPriorityRequested)},
		{"Spearman visibility~requested", fmtFloat(s.CorrVisibilityRequested)},
		{"Conflicts", strconv.Itoa(s.ConflictCount)},
	}, pathResult{Path: path, Result: s})
	r.Footer = footer(path)
	return r
}

// PriorityRatesReport prints scheduling rates per integer priority.
func PriorityRatesReport(bins []schema.PriorityRateBin, path schema.QueryPath, cfg *contract.Config) Report {
	fmtFloat, fmtRate := formatters(cfg)
	rows := make([][]string, 0, len(bins))
	for _, b := range bins {
		rows = append(rows, []string{
			strconv.Itoa(b.PriorityValue),
			strconv.Itoa(b.TotalCount),
			strconv.Itoa(b.ScheduledCount),
			fmtRate(b.SchedulingRate),
			rateLabel(cfg, b.SchedulingRate),
			fmtFloat(b.VisibilityMeanHours),
			fmtFloat(b.RequestedMeanHours),
		})
	}
	return Report{
		Header: []string{"Priority", "Blocks", "Scheduled", "Rate", "Label", "Mean Vis (h)", "Mean Req (h)"},
		Rows:   rows,
		Footer: footer(path),
		Data:   pathResult{Path: path, Result: bins},
	}
}

// RateBinsReport prints equal-width bins with their scheduling rates.
func RateBinsReport(bins []schema.RateBin, path schema.QueryPath, cfg *contract.Config) Report {
	fmtFloat, fmtRate := formatters(cfg)
	rows := make([][]string, 0, len(bins))
	for _, b := range bins {
		rows = append(rows, []string{
			strconv.Itoa(b.BinIndex),
			b.Label,
			fmtFloat(b.MidValue),
			strconv.Itoa(b.TotalCount),
			strconv.Itoa(b.ScheduledCount),
			fmtRate(b.SchedulingRate),
			rateLabel(cfg, b.SchedulingRate),
		})
	}
	return Report{
		Header: []string{"Bin", "Range", "Mid", "Blocks", "Scheduled", "Rate", "Label"},
		Rows:   rows,
		Footer: footer(path),
		Data:   pathResult{Path: path, Result: bins},
	}
}

// HeatmapReport prints the non-empty heatmap cells.
func HeatmapReport(bins []schema.HeatmapBin, path schema.QueryPath, cfg *contract.Config) Report {
	fmtFloat, fmtRate := formatters(cfg)
	rows := make([][]string, 0, len(bins))
	for _, b := range bins {
		rows = append(rows, []string{
			strconv.Itoa(b.XIndex),
			strconv.Itoa(b.YIndex),
			fmtFloat(b.XMean),
			fmtFloat(b.YMean),
			strconv.Itoa(b.TotalCount),
			fmtRate(b.SchedulingRate),
		})
	}
	return Report{
		Header: []string{"X", "Y", "Mean Vis (h)", "Mean Req (h)", "Blocks", "Rate"},
		Rows:   rows,
		Footer: footer(path),
		Data:   pathResult{Path: path, Result: bins},
	}
}

// TrendsReport prints the smoothed scheduling rate curves side by side.
func TrendsReport(t schema.Trends, path schema.QueryPath, cfg *contract.Config) Report {
	fmtFloat, fmtRate := formatters(cfg)
	n := max(len(t.SmoothedVisibility), len(t.SmoothedRequested))
	rows := make([][]string, 0, n)
	cells := func(points []schema.SmoothedPoint, i int) []string {
		if i >= len(points) {
			return []string{"", "", ""}
		}
		p := points[i]
		return []string{fmtFloat(p.X), fmtRate(p.Rate), strconv.Itoa(p.Samples)}
	}
	for i := 0; i < n; i++ {
		row := cells(t.SmoothedVisibility, i)
		rows = append(rows, append(row, cells(t.SmoothedRequested, i)...))
	}
	return Report{
		Header: []string{"Vis (h)", "Rate", "Samples", "Req (h)", "Rate", "Samples"},
		Rows:   rows,
		Footer: footer(path),
		Data:   pathResult{Path: path, Result: t},
	}
}

// ConflictsReport prints overlapping scheduled blocks.
func ConflictsReport(conflicts []schema.Conflict, path schema.QueryPath, cfg *contract.Config) Report {
	fmtFloat, _ := formatters(cfg)
	rows := make([][]string, 0, len(conflicts))
	for _, c := range conflicts {
		rows = append(rows, []string{
			c.OriginalA,
			c.OriginalB,
			fmtFloat(c.OverlapStart),
			fmtFloat(c.OverlapStop),
			fmtFloat(c.OverlapHours),
		})
	}
	r := Report{
		Header: []string{"Block A", "Block B", "Overlap Start (MJD)", "Overlap Stop (MJD)", "Overlap (h)"},
		Rows:   rows,
		Footer: fmt.Sprintf("%d conflicts", len(conflicts)),
		Data:   pathResult{Path: path, Result: conflicts},
	}
	if f := footer(path); f != "" {
		r.Footer += ". " + f
	}
	return r
}

// BlocksReport prints block analytics rows with the columns of view.
func BlocksReport(rows []schema.AnalyticsBlockRow, view schema.AnalyticsView, path schema.QueryPath, cfg *contract.Config) Report {
	fmtFloat, _ := formatters(cfg)
	cols := view.Columns()[1:] // every row shares the schedule id
	out := make([][]string, 0, len(rows))
	for i := range rows {
		row := make([]string, len(cols))
		for j, col := range cols {
			row[j] = formatField(rows[i].FieldPtr(col), fmtFloat)
		}
		out = append(out, row)
	}
	return Report{
		Header: cols,
		Rows:   out,
		Footer: footer(path),
		Data:   pathResult{Path: path, Result: rows},
	}
}

func formatField(p any, fmtFloat func(float64) string) string {
	switch v := p.(type) {
	case *int64:
		return strconv.FormatInt(*v, 10)
	case *int:
		return strconv.Itoa(*v)
	case *string:
		return truncate(*v, maxNameWidth())
	case *float64:
		return fmtFloat(*v)
	case *bool:
		return strconv.FormatBool(*v)
	case **float64:
		if *v == nil {
			return "-"
		}
		return fmtFloat(**v)
	}
	return ""
}

// StatusReport prints row counts per table.
func StatusReport(status schema.StoreStatus) Report {
	tables := make([]string, 0, len(status.Tables))
	for name := range status.Tables {
		tables = append(tables, name)
	}
	sort.Strings(tables)
	rows := make([][]string, 0, len(tables))
	for _, name := range tables {
		rows = append(rows, []string{name, strconv.FormatInt(status.Tables[name], 10)})
	}
	return Report{
		Title:  fmt.Sprintf("Backend: %s (connected: %t)", status.Backend, status.Connected),
		Header: []string{"Table", "Rows"},
		Rows:   rows,
		Data:   status,
	}
}

// ValidationReport prints the stored validation results of a schedule.
func ValidationReport(results []schema.ValidationResult) Report {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			strconv.FormatInt(r.BlockID, 10),
			string(r.Status),
			string(r.Category),
			string(r.Criticality),
			r.FieldName,
			r.Description,
		})
	}
	return Report{
		Header: []string{"Block", "Status", "Category", "Criticality", "Field", "Description"},
		Rows:   rows,
		Footer: fmt.Sprintf("%d results", len(results)),
		Data:   results,
	}
}

var (
	riseColor = color.New(color.FgGreen)
	fallColor = color.New(color.FgRed)
	flatColor = color.New(color.FgYellow)
)

// compareMetric is one row of the comparison table. better is +1 when a rise is an
// improvement, -1 when a fall is and 0 when neither.
type compareMetric struct {
	name     string
	cur, cmp *float64
	better   int
	isCount  bool
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v *int) *float64 {
	if v == nil {
		return nil
	}
	return floatPtr(float64(*v))
}

// formatDelta marks the change with an arrow, colored by whether it is an improvement.
func formatDelta(delta float64, better int, format func(float64) string, useColors bool) string {
	var text string
	var c *color.Color
	switch {
	case delta > 0:
		text = "+" + format(delta) + " ▲"
		c = riseColor
		if better < 0 {
			c = fallColor
		}
	case delta < 0:
		text = format(delta) + " ▼"
		c = fallColor
		if better < 0 {
			c = riseColor
		}
	default:
		text = format(0)
		c = flatColor
	}
	if !useColors || (better == 0 && delta != 0) {
		return text
	}
	return c.Sprint(text)
}

// CompareReport prints the per side statistics of two schedules with their deltas.
// The footer counts the block set differences and scheduling changes.
func CompareReport(c schema.ScheduleComparison, cfg *contract.Config) Report {
	fmtFloat, _ := formatters(cfg)
	fmtCount := func(v float64) string { return strconv.FormatFloat(v, 'f', 0, 64) }
	cur, cmp := c.CurrentStats, c.ComparisonStats

	metrics := []compareMetric{
		{name: "Blocks", cur: floatPtr(float64(c.CurrentBlocks)), cmp: floatPtr(float64(c.ComparisonBlocks)), isCount: true},
		{name: "Scheduled", cur: floatPtr(float64(cur.ScheduledCount)), cmp: floatPtr(float64(cmp.ScheduledCount)), better: 1, isCount: true},
		{name: "Unscheduled", cur: floatPtr(float64(cur.UnscheduledCount)), cmp: floatPtr(float64(cmp.UnscheduledCount)), better: -1, isCount: true},
		{name: "Total priority", cur: floatPtr(cur.TotalPriority), cmp: floatPtr(cmp.TotalPriority), better: 1},
		{name: "Mean priority", cur: floatPtr(cur.MeanPriority), cmp: floatPtr(cmp.MeanPriority), better: 1},
		{name: "Median priority", cur: floatPtr(cur.MedianPriority), cmp: floatPtr(cmp.MedianPriority), better: 1},
		{name: "Scheduled hours", cur: floatPtr(cur.TotalHours), cmp: floatPtr(cmp.TotalHours), better: 1},
		{name: "Gaps", cur: intPtr(cur.GapCount), cmp: intPtr(cmp.GapCount), isCount: true},
		{name: "Gap mean (h)", cur: cur.GapMeanHours, cmp: cmp.GapMeanHours, better: -1},
		{name: "Gap median (h)", cur: cur.GapMedianHours, cmp: cmp.GapMedianHours, better: -1},
	}

	rows := make([][]string, 0, len(metrics))
	for _, m := range metrics {
		format := fmtFloat
		if m.isCount {
			format = fmtCount
		}
		cell := func(v *float64) string {
			if v == nil {
				return "-"
			}
			return format(*v)
		}
		delta := "-"
		if m.cur != nil && m.cmp != nil {
			delta = formatDelta(*m.cmp-*m.cur, m.better, format, cfg.UseColors)
		}
		rows = append(rows, []string{m.name, cell(m.cur), cell(m.cmp), delta})
	}

	newly := len(c.Changes(schema.NewlyScheduled))
	return Report{
		Title: fmt.Sprintf("Comparing %s (#%d) with %s (#%d)",
			c.CurrentName, c.CurrentID, c.ComparisonName, c.ComparisonID),
		Header: []string{"Metric", "Current", "Comparison", "Delta"},
		Rows:   rows,
		Footer: fmt.Sprintf("Common blocks: %d, only in current: %d, only in comparison: %d\nNewly scheduled: %d, newly unscheduled: %d",
			len(c.CommonIDs), len(c.OnlyInCurrent), len(c.OnlyInComparison),
			newly, len(c.SchedulingChanges)-newly),
		Data: c,
	}
}

// CompareChangesReport lists the blocks whose scheduled state flipped.
func CompareChangesReport(c schema.ScheduleComparison, cfg *contract.Config) Report {
	fmtFloat, _ := formatters(cfg)
	rows := make([][]string, 0, len(c.SchedulingChanges))
	for _, ch := range c.SchedulingChanges {
		label := "scheduled"
		if ch.ChangeType == schema.NewlyUnscheduled {
			label = "unscheduled"
		}
		rows = append(rows, []string{ch.BlockID, label, fmtFloat(ch.Priority)})
	}
	return Report{
		Header: []string{"Block", "Now", "Priority"},
		Rows:   rows,
		Footer: fmt.Sprintf("%d changes", len(c.SchedulingChanges)),
		Data:   c.SchedulingChanges,
	}
}
