package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Joseda-hg/lazydash/internal/format"
	"github.com/Joseda-hg/lazydash/internal/model"
	"github.com/Joseda-hg/lazydash/internal/view"
)

const (
	colorRed   = "\x1b[31m"
	colorGreen = "\x1b[32m"
	colorDim   = "\x1b[2m"
	colorReset = "\x1b[0m"
)

// stateText renders one panel: a placeholder while nothing was loaded yet,
// the error in red after a failure, the data otherwise.
func stateText[P any, T any](state view.State[P, T], width int, render func(T, int) string) string {
	switch state.Status {
	case view.Loading:
		return colorDim + "loading..." + colorReset
	case view.Failed:
		return colorRed + state.Err + colorReset
	case view.Loaded:
		return render(state.Data, width)
	default:
		return ""
	}
}

func panelTitle(title string, status view.Status, stale bool) string {
	if stale || status == view.Loading {
		return title + " …"
	}
	return title
}

func rowPrefix(index, selected int) string {
	if index == selected {
		return ">"
	}
	return " "
}

func renderOverview(overview model.Overview, _ int) string {
	var comparison model.OverviewComparison
	if overview.Comparison != nil {
		comparison = *overview.Comparison
	}
	s := overview.Summary
	lines := []string{
		fmt.Sprintf("Queries            %10s  %s", format.Count(s.TotalQueries), format.Change(comparison.TotalQueriesChange)),
		fmt.Sprintf("RAG retrieval      %10s  %s", format.Count(s.RagRetrievalCount), format.Change(comparison.RagRetrievalChange)),
		fmt.Sprintf("Direct injection   %10s", format.Count(s.DirectInjectionCount)),
		fmt.Sprintf("Selected documents %10s", format.Count(s.SelectedDocumentsCount)),
		fmt.Sprintf("Active KBs         %10s", format.Count(s.ActiveKBCount)),
		fmt.Sprintf("Active users       %10s", format.Count(s.ActiveUserCount)),
	}
	return strings.Join(lines, "\n")
}

func renderTrends(trends model.Trends, _ int) string {
	if len(trends.Data) == 0 {
		return "no data in range"
	}
	total := make([]int, 0, len(trends.Data))
	rag := make([]int, 0, len(trends.Data))
	peak := 0
	for _, point := range trends.Data {
		total = append(total, point.TotalQueries)
		rag = append(rag, point.RagRetrievalCount)
		peak = max(peak, point.TotalQueries)
	}
	first, last := trends.Data[0].Date, trends.Data[len(trends.Data)-1].Date
	return strings.Join([]string{
		"queries " + format.Sparkline(total),
		"rag     " + format.Sparkline(rag),
		fmt.Sprintf("%s .. %s, %d points, peak %s", first, last, len(trends.Data), format.Count(peak)),
	}, "\n")
}

func renderTopKnowledgeBases(top model.TopKnowledgeBases, width int, selected int) string {
	if len(top.Items) == 0 {
		return "no queries in range"
	}
	var b strings.Builder
	for i, item := range top.Items {
		name := format.Truncate(item.KnowledgeName, max(width-28, 8))
		fmt.Fprintf(&b, "%s %2d. %s  %s (%s)\n", rowPrefix(i, selected), item.Rank, name, format.Count(item.TotalQueries), format.Label(item.PrimaryMode))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderHourly(hourly model.HourlyStats, width int) string {
	if len(hourly.Hourly) == 0 {
		return "no queries on " + hourly.Date
	}
	peak := 0
	for _, hour := range hourly.Hourly {
		peak = max(peak, hour.TotalQueries)
	}
	barWidth := max(width-16, 4)
	var b strings.Builder
	for _, hour := range hourly.Hourly {
		fmt.Fprintf(&b, "%02d:00 %6s %s\n", hour.Hour, format.Count(hour.TotalQueries), format.Bar(hour.TotalQueries, peak, barWidth))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderSync(status model.SyncStatus, now time.Time) string {
	if !status.RawDBConfigured {
		return colorRed + "raw database not configured" + colorReset
	}
	line := func(label string, checkpoint *model.SyncCheckpoint) string {
		if checkpoint == nil {
			return label + ": never"
		}
		text := fmt.Sprintf("%s: %s, %s, %s records", label, checkpoint.Status, format.Ago(checkpoint.LastSyncTime, now), format.Count(checkpoint.RecordsSynced))
		if checkpoint.ErrorMessage != "" {
			text += "\n  " + colorRed + checkpoint.ErrorMessage + colorReset
		}
		return text
	}
	return line("hourly", status.Hourly) + "\n" + line("daily", status.Daily)
}

func renderKnowledgeBases(page model.Page[model.KnowledgeBase], width int, selected int) string {
	if len(page.Items) == 0 {
		return "no knowledge bases"
	}
	var b strings.Builder
	for i, kb := range page.Items {
		name := format.Truncate(kb.Name, max(width-40, 10))
		fmt.Fprintf(&b, "%s #%-5d %s  %s  %s recent\n", rowPrefix(i, selected), kb.ID, name, kb.Namespace, format.Count(kb.RecentQueries))
	}
	fmt.Fprint(&b, pageLine(page.Page, page.PageCount(), page.Total))
	return b.String()
}

func renderKnowledgeBaseDetail(detail model.KnowledgeBaseDetail, _ int) string {
	active := "unknown"
	if detail.IsActive != nil {
		active = fmt.Sprintf("%t", *detail.IsActive)
	}
	owner := detail.CreatedByUserName
	if owner == "" {
		owner = "unknown"
	}
	return strings.Join([]string{
		fmt.Sprintf("%s (#%d)", detail.Name, detail.ID),
		"namespace " + detail.Namespace,
		"type      " + format.Label(detail.KBType),
		"active    " + active,
		"owner     " + owner,
		"created   " + detail.CreatedAt,
	}, "\n")
}

func renderKnowledgeBaseStats(stats model.KnowledgeBaseStats, _ int) string {
	s := stats.Summary
	daily := make([]int, 0, len(stats.Daily))
	for _, day := range stats.Daily {
		daily = append(daily, day.TotalQueries)
	}
	return strings.Join([]string{
		fmt.Sprintf("queries %s  rag %s  direct %s  selected %s",
			format.Count(s.TotalQueries), format.Count(s.RagRetrievalCount),
			format.Count(s.DirectInjectionCount), format.Count(s.SelectedDocumentsCount)),
		format.Sparkline(daily),
	}, "\n")
}

func renderQueryRecords(page model.Page[model.QueryRecord], width int, selected int) string {
	if len(page.Items) == 0 {
		return "no queries"
	}
	var b strings.Builder
	for i, record := range page.Items {
		query := format.Truncate(record.Query, max(width-42, 10))
		fmt.Fprintf(&b, "%s %s %-18s %-10s %s\n", rowPrefix(i, selected), record.RecordDate, format.Label(record.InjectionMode), record.EvaluationStatus, query)
	}
	fmt.Fprint(&b, pageLine(page.Page, page.PageCount(), page.Total))
	return b.String()
}

func renderEvaluationTrends(trends model.EvaluationTrends, _ int) string {
	if len(trends.Trends) == 0 {
		return "no evaluations in range"
	}
	passed := make([]int, 0, len(trends.Trends))
	evaluated := 0
	for _, point := range trends.Trends {
		passed = append(passed, point.PassCount)
		evaluated += point.EvaluatedCount
	}
	latest := trends.Trends[len(trends.Trends)-1]
	lines := []string{
		"pass    " + format.Sparkline(passed),
		fmt.Sprintf("evaluated %s, latest pass rate %s, avg score %s",
			format.Count(evaluated), format.Rate(latest.PassRate), format.Score(latest.AvgTotalScore)),
	}
	if stats := trends.NonRagStats; stats != nil {
		lines = append(lines, fmt.Sprintf("non-RAG %s of traffic", format.Ratio(stats.NonRagRatio)))
	}
	return strings.Join(lines, "\n")
}

func renderEvaluationComparison(c model.EvaluationComparison, _ int) string {
	line := func(label string, period model.PeriodStats) string {
		return fmt.Sprintf("%-9s %-23s %5s evaluated  pass %6s  score %s", label, period.DateRange,
			format.Count(period.EvaluatedCount), format.Rate(period.PassRate), format.Score(period.AvgTotalScore))
	}
	verdict := "no improvement"
	if c.Changes.Improvement {
		verdict = colorGreen + "improved" + colorReset
	}
	return strings.Join([]string{
		line("previous", c.Period1),
		line("selected", c.Period2),
		fmt.Sprintf("pass %s  score %s  %s", format.Points(c.Changes.PassRateChange), format.ScoreChange(c.Changes.AvgScoreChange), verdict),
	}, "\n")
}

func renderLowScoreQueries(queries model.LowScoreQueries, width int, selected int, page, pageSize int) string {
	if len(queries.Records) == 0 {
		return "no low-scoring queries"
	}
	var b strings.Builder
	for i, record := range queries.Records {
		prompt := format.Truncate(record.UserPrompt, max(width-36, 10))
		fmt.Fprintf(&b, "%s %5s %-6s %-14s %s\n", rowPrefix(i, selected), format.Score(record.TotalScore), record.EvaluationJudgment,
			format.Truncate(record.KnowledgeName, 14), prompt)
	}
	fmt.Fprint(&b, pageLine(page, model.PageCount(queries.Total, pageSize), queries.Total))
	return b.String()
}

func renderLowScoreKnowledgeBases(kbs model.LowScoreKnowledgeBases, width int) string {
	if len(kbs.KnowledgeBases) == 0 {
		return "no evaluated knowledge bases"
	}
	var b strings.Builder
	for _, kb := range kbs.KnowledgeBases {
		fmt.Fprintf(&b, "%5s %6s fail  %s\n", format.Score(kb.AvgTotalScore), format.Rate(kb.FailRate), format.Truncate(kb.KnowledgeName, max(width-20, 10)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderKnowledgeBaseEvaluation(stats model.KnowledgeBaseEvaluationStats, _ int) string {
	lines := []string{fmt.Sprintf("evaluated %s of %s RAG queries (%s)",
		format.Count(stats.EvaluatedCount), format.Count(stats.RagRetrievalCount), format.Ratio(stats.EvaluationCoverage))}
	if stats.EvaluatedCount > 0 {
		lines = append(lines, fmt.Sprintf("pass %s  fail %s  undetermined %s  pass rate %s  avg score %s",
			format.Count(stats.PassCount), format.Count(stats.FailCount), format.Count(stats.UndeterminedCount),
			format.Rate(stats.PassRate), format.Score(stats.AvgTotalScore)))
	}
	return strings.Join(lines, "\n")
}

func renderRecordEvaluation(ev model.RecordEvaluation, _ int) string {
	result := ev.Result
	if result == nil {
		return colorDim + "not evaluated (" + ev.EvaluationStatus + ")" + colorReset
	}
	judgment := result.EvaluationJudgment
	if judgment == "" {
		judgment = "undetermined"
	}
	m := result.CoreMetrics
	return strings.Join([]string{
		fmt.Sprintf("%s  total %s / %.2f  retrieval %s  generation %s", judgment, format.Score(result.TotalScore),
			result.Threshold, format.Score(result.RetrievalScore), format.Score(result.GenerationScore)),
		fmt.Sprintf("faithfulness %s  groundedness %s  query relevance %s  context relevance %s  precision %s",
			format.Score(m.FaithfulnessScore), format.Score(m.TrulensGroundedness), format.Score(m.RagasQueryContextRelevance),
			format.Score(m.TrulensContextRelevance), format.Score(m.RagasContextPrecisionEmb)),
	}, "\n")
}

func renderRecord(record model.RagRecord, width int) string {
	lines := []string{
		fmt.Sprintf("#%d %s", record.ID, record.Name),
		fmt.Sprintf("date %s  mode %s  context %s", record.RecordDate, format.Label(record.InjectionMode), record.ContextType),
		"evaluation " + record.EvaluationStatus,
		"",
	}
	if record.ExtractedText != "" {
		lines = append(lines, format.Truncate(record.ExtractedText, max(width*8, 80)))
	}
	return strings.Join(lines, "\n")
}

func pageLine(page, pageCount, total int) string {
	return fmt.Sprintf("%spage %d of %d, %s total%s", colorDim, page, max(pageCount, 1), format.Count(total), colorReset)
}

// filterSummary is the second header line: every filter of the page that is
// currently set.
func filterSummary(params model.FilterParams, keyword string) string {
	parts := []string{}
	if !params.StartDate.IsZero() {
		parts = append(parts, fmt.Sprintf("range %s..%s (%dd)", params.StartDate, params.EndDate, params.Days()))
	}
	if keyword != "" || params.Query != "" {
		parts = append(parts, fmt.Sprintf("search %q", keyword))
	}
	if params.Mode != "" {
		parts = append(parts, "mode "+format.Label(params.Mode))
	}
	if params.Status != "" {
		parts = append(parts, "status "+params.Status)
	}
	if params.SortBy != "" {
		parts = append(parts, "sort "+params.SortBy)
	}
	if params.Judgment != "" {
		parts = append(parts, "judgment "+params.Judgment)
	}
	if params.Page > 1 {
		parts = append(parts, fmt.Sprintf("page %d", params.Page))
	}
	if len(parts) == 0 {
		return "no filters"
	}
	return strings.Join(parts, " | ")
}
