package web

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/Joseda-hg/lazydash/internal/format"
	"github.com/Joseda-hg/lazydash/internal/model"
	"github.com/Joseda-hg/lazydash/internal/screens"
	"github.com/Joseda-hg/lazydash/internal/view"
)

type link struct {
	Label  string
	Href   string
	Active bool
}

type option struct {
	Value    string
	Label    string
	Selected bool
}

// field is one input of the filter form. Kind is date, text or select.
type field struct {
	Name    string
	Label   string
	Kind    string
	Value   string
	Options []option
}

type cell struct {
	Text string
	Href string
}

type panelData struct {
	Title   string
	Loading bool
	Stale   bool
	Err     string
	Lines   []string
	Headers []string
	Rows    [][]cell
}

type actionData struct {
	Label  string
	Path   string
	Hidden map[string]string
}

type pageData struct {
	Title     string
	Address   string
	Path      string
	Tabs      []link
	Summary   string
	Fields    []field
	Panels    []panelData
	Prev      string
	Next      string
	PageLine  string
	Actions   []actionData
	Status    string
	StatusErr bool
	Generated string
}

type recordData struct {
	Title   string
	Tabs    []link
	Panels  []panelData
	Back    string
	Summary string
}

var tabs = []struct {
	label string
	path  string
}{
	{"Dashboard", screens.PathDashboard},
	{"Knowledge bases", screens.PathKnowledgeBases},
	{"Queries", screens.PathQueries},
	{"Evaluation", screens.PathEvaluation},
}

func tabLinks(path string) []link {
	links := make([]link, 0, len(tabs))
	for _, tab := range tabs {
		active := path == tab.path
		if tab.path == screens.PathKnowledgeBases && len(path) > len(tab.path) && path[:len(tab.path)+1] == tab.path+"/" {
			active = true
		}
		links = append(links, link{Label: tab.label, Href: tab.path, Active: active})
	}
	return links
}

// panelOf turns a committed panel state into template data; fill only runs
// once data is loaded.
func panelOf[P any, T any](title string, state view.State[P, T], fill func(*panelData, T)) panelData {
	data := panelData{Title: title, Stale: state.Stale}
	switch state.Status {
	case view.Loading:
		data.Loading = true
	case view.Failed:
		data.Err = state.Err
	case view.Loaded:
		fill(&data, state.Data)
	}
	return data
}

func describe(screen screens.Screen, location *view.Location, now time.Time) pageData {
	page := screen.Page()
	params := page.Params()
	data := pageData{
		Title:     screen.Title(),
		Address:   location.String(),
		Path:      location.Path(),
		Tabs:      tabLinks(location.Path()),
		Summary:   summary(params, page.Keyword()),
		Generated: now.Format(time.DateTime),
	}
	data.Status, data.StatusErr = page.Status()

	switch s := screen.(type) {
	case *screens.Dashboard:
		data.Fields = []field{dateField("start_date", "From", params.StartDate), dateField("end_date", "To", params.EndDate)}
		data.Panels = []panelData{
			panelOf("Overview", s.Overview.State(), fillOverview),
			panelOf("Daily trend", s.Trends.State(), fillTrends),
			panelOf("Top knowledge bases", s.TopKnowledgeBases.State(), fillTopKnowledgeBases),
			panelOf("Hourly ("+params.EndDate.String()+")", s.Hourly.State(), fillHourly),
			panelOf("Sync", s.Sync.State(), func(d *panelData, status model.SyncStatus) { fillSync(d, status, now) }),
		}
		for _, syncType := range []string{model.SyncHourly, model.SyncDaily, model.SyncFull} {
			data.Actions = append(data.Actions, actionData{
				Label:  "Sync " + syncType,
				Path:   "/actions/sync",
				Hidden: map[string]string{"type": syncType},
			})
		}
	case *screens.KnowledgeBases:
		data.Fields = []field{{Name: "q", Label: "Search", Kind: "text", Value: params.Query}}
		state := s.List.State()
		data.Panels = []panelData{panelOf("Knowledge bases", state, fillKnowledgeBases)}
		if state.IsLoaded() {
			paginate(&data, location, params.Page, state.Data.PageCount(), state.Data.Total)
		}
	case *screens.KnowledgeBase:
		data.Fields = []field{
			selectField("mode", "Mode", params.Mode, withAll(model.Modes)),
			selectField("status", "Evaluation", params.Status, withAll(model.RecordStatuses)),
		}
		state := s.Queries.State()
		data.Panels = []panelData{
			panelOf("Knowledge base", s.Detail.State(), fillKnowledgeBaseDetail),
			panelOf("Usage", s.Stats.State(), fillKnowledgeBaseStats),
			panelOf("Evaluation", s.EvaluationStats.State(), fillKnowledgeBaseEvaluation),
			panelOf("Queries", state, fillQueryRecords),
		}
		if state.IsLoaded() {
			paginate(&data, location, params.Page, state.Data.PageCount(), state.Data.Total)
		}
		data.Actions = evaluateActions()
	case *screens.Queries:
		data.Fields = []field{
			selectField("mode", "Mode", params.Mode, withAll(model.Modes)),
			dateField("start_date", "From", params.StartDate),
			dateField("end_date", "To", params.EndDate),
		}
		state := s.List.State()
		data.Panels = []panelData{panelOf("Queries", state, fillQueryRecords)}
		if state.IsLoaded() {
			paginate(&data, location, params.Page, state.Data.PageCount(), state.Data.Total)
		}
	case *screens.Evaluation:
		data.Fields = []field{
			dateField("start_date", "From", params.StartDate),
			dateField("end_date", "To", params.EndDate),
			selectField("sort_by", "Sort", params.SortBy, model.LowScoreQuerySorts),
			selectField("judgment", "Judgment", params.Judgment, []string{model.JudgmentAll, model.JudgmentFail}),
		}
		state := s.LowScoreQueries.State()
		data.Panels = []panelData{
			panelOf("Evaluation trend", s.Trends.State(), fillEvaluationTrends),
			panelOf("vs previous period", s.Comparison.State(), fillEvaluationComparison),
			panelOf("Low-score queries", state, fillLowScoreQueries),
			panelOf("Low-score knowledge bases", s.LowScoreKnowledgeBases.State(), fillLowScoreKnowledgeBases),
		}
		if state.IsLoaded() {
			paginate(&data, location, params.Page, model.PageCount(state.Data.Total, params.PageSize), state.Data.Total)
		}
		data.Actions = evaluateActions()
	}
	return data
}

func describeRecord(record *screens.Record) recordData {
	state := record.Panel.State()
	data := recordData{
		Title: "RAG record",
		Tabs:  tabLinks(""),
		Back:  screens.PathQueries,
		Panels: []panelData{
			panelOf("Record", state, fillRecord),
			panelOf("Evaluation", record.Evaluation.State(), fillRecordEvaluation),
		},
	}
	if state.IsLoaded() {
		r := state.Data
		data.Title = fmt.Sprintf("#%d %s", r.ID, r.Name)
		data.Summary = fmt.Sprintf("%s | %s | %s", r.RecordDate, format.Label(r.InjectionMode), r.EvaluationStatus)
		if r.KnowledgeID != nil {
			data.Back = screens.KnowledgeBasePath(*r.KnowledgeID)
		}
	}
	return data
}

func evaluateActions() []actionData {
	return []actionData{
		{Label: "Evaluate pending", Path: "/actions/evaluate"},
		{Label: "Re-evaluate all", Path: "/actions/evaluate", Hidden: map[string]string{"force": "true"}},
	}
}

// paginate links the neighbouring pages, keeping the rest of the address.
func paginate(data *pageData, location *view.Location, current, count, total int) {
	count = max(count, 1)
	data.PageLine = fmt.Sprintf("page %d of %d, %s total", current, count, format.Count(total))
	href := func(page int) string {
		query := location.Query()
		if page > 1 {
			query.Set("page", strconv.Itoa(page))
		} else {
			query.Del("page")
		}
		return addressOf(location.Path(), query)
	}
	if current > 1 {
		data.Prev = href(current - 1)
	}
	if current < count {
		data.Next = href(current + 1)
	}
}

func addressOf(path string, query url.Values) string {
	if encoded := query.Encode(); encoded != "" {
		return path + "?" + encoded
	}
	return path
}

func dateField(name, label string, value model.Date) field {
	return field{Name: name, Label: label, Kind: "date", Value: value.String()}
}

func selectField(name, label, value string, values []string) field {
	f := field{Name: name, Label: label, Kind: "select", Value: value}
	for _, v := range values {
		f.Options = append(f.Options, option{Value: v, Label: format.Label(v), Selected: v == value})
	}
	return f
}

func withAll(values []string) []string {
	return append([]string{""}, values...)
}

func summary(params model.FilterParams, keyword string) string {
	text := ""
	add := func(part string) {
		if text != "" {
			text += " | "
		}
		text += part
	}
	if !params.StartDate.IsZero() {
		add(fmt.Sprintf("%s to %s (%d days)", params.StartDate, params.EndDate, params.Days()))
	}
	if keyword != "" {
		add(fmt.Sprintf("search %q", keyword))
	}
	if params.Mode != "" {
		add(format.Label(params.Mode))
	}
	if params.Status != "" {
		add("evaluation " + params.Status)
	}
	return text
}

func fillOverview(d *panelData, overview model.Overview) {
	var comparison model.OverviewComparison
	if overview.Comparison != nil {
		comparison = *overview.Comparison
	}
	s := overview.Summary
	d.Headers = []string{"Metric", "Value", "Change"}
	d.Rows = [][]cell{
		{{Text: "Queries"}, {Text: format.Count(s.TotalQueries)}, {Text: format.Change(comparison.TotalQueriesChange)}},
		{{Text: "RAG retrieval"}, {Text: format.Count(s.RagRetrievalCount)}, {Text: format.Change(comparison.RagRetrievalChange)}},
		{{Text: "Direct injection"}, {Text: format.Count(s.DirectInjectionCount)}, {}},
		{{Text: "Selected documents"}, {Text: format.Count(s.SelectedDocumentsCount)}, {}},
		{{Text: "Active knowledge bases"}, {Text: format.Count(s.ActiveKBCount)}, {}},
		{{Text: "Active users"}, {Text: format.Count(s.ActiveUserCount)}, {}},
	}
}

func fillTrends(d *panelData, trends model.Trends) {
	if len(trends.Data) == 0 {
		d.Lines = []string{"No data in range."}
		return
	}
	total := make([]int, 0, len(trends.Data))
	for _, point := range trends.Data {
		total = append(total, point.TotalQueries)
	}
	d.Lines = []string{format.Sparkline(total)}
	d.Headers = []string{"Date", "Queries", "RAG", "Direct", "Selected"}
	for _, point := range trends.Data {
		d.Rows = append(d.Rows, []cell{
			{Text: point.Date},
			{Text: format.Count(point.TotalQueries)},
			{Text: format.Count(point.RagRetrievalCount)},
			{Text: format.Count(point.DirectInjectionCount)},
			{Text: format.Count(point.SelectedDocumentsCount)},
		})
	}
}

func fillTopKnowledgeBases(d *panelData, top model.TopKnowledgeBases) {
	if len(top.Items) == 0 {
		d.Lines = []string{"No queries in range."}
		return
	}
	d.Headers = []string{"#", "Knowledge base", "Queries", "Primary mode"}
	for _, item := range top.Items {
		d.Rows = append(d.Rows, []cell{
			{Text: strconv.Itoa(item.Rank)},
			{Text: item.KnowledgeName, Href: screens.KnowledgeBasePath(item.KnowledgeID)},
			{Text: format.Count(item.TotalQueries)},
			{Text: format.Label(item.PrimaryMode)},
		})
	}
}

func fillHourly(d *panelData, hourly model.HourlyStats) {
	if len(hourly.Hourly) == 0 {
		d.Lines = []string{"No queries on " + hourly.Date + "."}
		return
	}
	peak := 0
	for _, hour := range hourly.Hourly {
		peak = max(peak, hour.TotalQueries)
	}
	d.Headers = []string{"Hour", "Queries", ""}
	for _, hour := range hourly.Hourly {
		d.Rows = append(d.Rows, []cell{
			{Text: fmt.Sprintf("%02d:00", hour.Hour)},
			{Text: format.Count(hour.TotalQueries)},
			{Text: format.Bar(hour.TotalQueries, peak, 30)},
		})
	}
}

func fillSync(d *panelData, status model.SyncStatus, now time.Time) {
	if !status.RawDBConfigured {
		d.Err = "Raw database not configured."
		return
	}
	d.Headers = []string{"Sync", "Status", "Last run", "Records", "Error"}
	for _, entry := range []struct {
		label      string
		checkpoint *model.SyncCheckpoint
	}{{"Hourly", status.Hourly}, {"Daily", status.Daily}} {
		if entry.checkpoint == nil {
			d.Rows = append(d.Rows, []cell{{Text: entry.label}, {Text: "never"}, {}, {}, {}})
			continue
		}
		c := entry.checkpoint
		d.Rows = append(d.Rows, []cell{
			{Text: entry.label},
			{Text: c.Status},
			{Text: format.Ago(c.LastSyncTime, now)},
			{Text: format.Count(c.RecordsSynced)},
			{Text: c.ErrorMessage},
		})
	}
}

func fillKnowledgeBases(d *panelData, page model.Page[model.KnowledgeBase]) {
	if len(page.Items) == 0 {
		d.Lines = []string{"No knowledge bases."}
		return
	}
	d.Headers = []string{"ID", "Name", "Namespace", "Type", "Recent queries"}
	for _, kb := range page.Items {
		d.Rows = append(d.Rows, []cell{
			{Text: strconv.FormatInt(kb.ID, 10)},
			{Text: kb.Name, Href: screens.KnowledgeBasePath(kb.ID)},
			{Text: kb.Namespace},
			{Text: format.Label(kb.KBType)},
			{Text: format.Count(kb.RecentQueries)},
		})
	}
}

func fillKnowledgeBaseDetail(d *panelData, detail model.KnowledgeBaseDetail) {
	active := "unknown"
	if detail.IsActive != nil {
		active = strconv.FormatBool(*detail.IsActive)
	}
	d.Headers = []string{"Field", "Value"}
	d.Rows = [][]cell{
		{{Text: "Namespace"}, {Text: detail.Namespace}},
		{{Text: "Type"}, {Text: format.Label(detail.KBType)}},
		{{Text: "Active"}, {Text: active}},
		{{Text: "Owner"}, {Text: detail.CreatedByUserName}},
		{{Text: "Created"}, {Text: detail.CreatedAt}},
	}
}

func fillKnowledgeBaseStats(d *panelData, stats model.KnowledgeBaseStats) {
	s := stats.Summary
	daily := make([]int, 0, len(stats.Daily))
	for _, day := range stats.Daily {
		daily = append(daily, day.TotalQueries)
	}
	d.Lines = []string{
		fmt.Sprintf("%s queries, %s RAG, %s direct, %s selected",
			format.Count(s.TotalQueries), format.Count(s.RagRetrievalCount),
			format.Count(s.DirectInjectionCount), format.Count(s.SelectedDocumentsCount)),
		format.Sparkline(daily),
	}
}

func fillQueryRecords(d *panelData, page model.Page[model.QueryRecord]) {
	if len(page.Items) == 0 {
		d.Lines = []string{"No queries."}
		return
	}
	d.Headers = []string{"Date", "Mode", "Evaluation", "Knowledge base", "Query"}
	for _, record := range page.Items {
		kb := cell{Text: record.KnowledgeName}
		if record.KnowledgeID != nil {
			kb.Href = screens.KnowledgeBasePath(*record.KnowledgeID)
		}
		d.Rows = append(d.Rows, []cell{
			{Text: record.RecordDate},
			{Text: format.Label(record.InjectionMode)},
			{Text: record.EvaluationStatus},
			kb,
			{Text: format.Truncate(record.Query, 120), Href: recordPath(record.ID)},
		})
	}
}

func fillEvaluationTrends(d *panelData, trends model.EvaluationTrends) {
	if len(trends.Trends) == 0 {
		d.Lines = []string{"No evaluations in range."}
		return
	}
	d.Headers = []string{"Date", "Evaluated", "Coverage", "Pass rate", "Avg score"}
	for _, point := range trends.Trends {
		d.Rows = append(d.Rows, []cell{
			{Text: point.Date},
			{Text: format.Count(point.EvaluatedCount)},
			{Text: format.Ratio(point.EvaluationCoverage)},
			{Text: format.Rate(point.PassRate)},
			{Text: format.Score(point.AvgTotalScore)},
		})
	}
	if stats := trends.NonRagStats; stats != nil {
		d.Lines = []string{fmt.Sprintf("Non-RAG traffic: %s", format.Ratio(stats.NonRagRatio))}
	}
}

func fillEvaluationComparison(d *panelData, c model.EvaluationComparison) {
	d.Headers = []string{"Period", "Evaluated", "Pass rate", "Avg score"}
	for _, period := range []model.PeriodStats{c.Period1, c.Period2} {
		d.Rows = append(d.Rows, []cell{
			{Text: period.DateRange},
			{Text: format.Count(period.EvaluatedCount)},
			{Text: format.Rate(period.PassRate)},
			{Text: format.Score(period.AvgTotalScore)},
		})
	}
	d.Rows = append(d.Rows, []cell{
		{Text: "Change"},
		{},
		{Text: format.Points(c.Changes.PassRateChange)},
		{Text: format.ScoreChange(c.Changes.AvgScoreChange)},
	})
	verdict := "No improvement over the previous period."
	if c.Changes.Improvement {
		verdict = "Improved over the previous period."
	}
	d.Lines = []string{verdict}
}

func fillLowScoreQueries(d *panelData, queries model.LowScoreQueries) {
	if len(queries.Records) == 0 {
		d.Lines = []string{"No low-scoring queries."}
		return
	}
	d.Headers = []string{"Score", "Judgment", "Knowledge base", "Prompt"}
	for _, record := range queries.Records {
		kb := cell{Text: record.KnowledgeName}
		if record.KnowledgeID != nil {
			kb.Href = screens.KnowledgeBasePath(*record.KnowledgeID)
		}
		d.Rows = append(d.Rows, []cell{
			{Text: format.Score(record.TotalScore)},
			{Text: record.EvaluationJudgment},
			kb,
			{Text: format.Truncate(record.UserPrompt, 120), Href: recordPath(record.RagRecordRefID)},
		})
	}
}

func fillLowScoreKnowledgeBases(d *panelData, kbs model.LowScoreKnowledgeBases) {
	if len(kbs.KnowledgeBases) == 0 {
		d.Lines = []string{"No evaluated knowledge bases."}
		return
	}
	d.Headers = []string{"Knowledge base", "Evaluated", "Avg score", "Fail rate"}
	for _, kb := range kbs.KnowledgeBases {
		d.Rows = append(d.Rows, []cell{
			{Text: kb.KnowledgeName, Href: screens.KnowledgeBasePath(kb.KnowledgeID)},
			{Text: format.Count(kb.EvaluatedCount)},
			{Text: format.Score(kb.AvgTotalScore)},
			{Text: format.Rate(kb.FailRate)},
		})
	}
}

func fillKnowledgeBaseEvaluation(d *panelData, stats model.KnowledgeBaseEvaluationStats) {
	d.Lines = []string{fmt.Sprintf("%s of %s RAG queries evaluated (%s)",
		format.Count(stats.EvaluatedCount), format.Count(stats.RagRetrievalCount), format.Ratio(stats.EvaluationCoverage))}
	if stats.EvaluatedCount == 0 {
		return
	}
	d.Headers = []string{"Pass", "Fail", "Undetermined", "Pass rate", "Avg score"}
	d.Rows = [][]cell{{
		{Text: format.Count(stats.PassCount)},
		{Text: format.Count(stats.FailCount)},
		{Text: format.Count(stats.UndeterminedCount)},
		{Text: format.Rate(stats.PassRate)},
		{Text: format.Score(stats.AvgTotalScore)},
	}}
}

func fillRecord(d *panelData, record model.RagRecord) {
	d.Lines = []string{
		"Context " + record.ContextType,
		"Created " + record.CreatedAt,
	}
	if record.ExtractedText != "" {
		d.Lines = append(d.Lines, "", record.ExtractedText)
	}
}

func fillRecordEvaluation(d *panelData, ev model.RecordEvaluation) {
	result := ev.Result
	if result == nil {
		d.Lines = []string{fmt.Sprintf("Not evaluated (%s).", ev.EvaluationStatus)}
		return
	}
	d.Lines = []string{fmt.Sprintf("%s, total %s against threshold %.2f, retrieval %s, generation %s",
		judgmentLabel(result.EvaluationJudgment), format.Score(result.TotalScore), result.Threshold,
		format.Score(result.RetrievalScore), format.Score(result.GenerationScore))}
	if raw := ev.RawData; raw != nil && raw.ChunksCount != nil {
		d.Lines = append(d.Lines, fmt.Sprintf("%d chunks retrieved", *raw.ChunksCount))
	}
	m := result.CoreMetrics
	d.Headers = []string{"Metric", "Score"}
	d.Rows = [][]cell{
		{{Text: "Faithfulness"}, {Text: format.Score(m.FaithfulnessScore)}},
		{{Text: "Groundedness"}, {Text: format.Score(m.TrulensGroundedness)}},
		{{Text: "Query/context relevance"}, {Text: format.Score(m.RagasQueryContextRelevance)}},
		{{Text: "Context relevance"}, {Text: format.Score(m.TrulensContextRelevance)}},
		{{Text: "Context precision"}, {Text: format.Score(m.RagasContextPrecisionEmb)}},
	}
}

func judgmentLabel(judgment string) string {
	if judgment == "" {
		return "undetermined"
	}
	return judgment
}

func recordPath(id int64) string {
	return fmt.Sprintf("/rag-records/%d", id)
}
