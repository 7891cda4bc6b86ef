package services

import (
	"math"
	"sort"
	"time"

	"github.com/soaringjerry/FormPulse/internal/models"
)

type ChoiceCount struct {
	Choice     string  `json:"choice"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type ScaleCount struct {
	Value      int     `json:"value"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// ChoiceStats is attached to MULTIPLE_CHOICE, CHECKBOXES and DROPDOWN questions.
type ChoiceStats struct {
	ChoiceDistribution []ChoiceCount `json:"choiceDistribution"`
}

// ScaleStats is attached to LINEAR_SCALE questions. Average is nil when no
// in-range numeric answer exists.
type ScaleStats struct {
	ScaleDistribution []ScaleCount `json:"scaleDistribution"`
	Average           *float64     `json:"average,omitempty"`
}

// QuestionAnalytics summarizes the answers to one question. At most one of
// the embedded stats is set, depending on the question type.
type QuestionAnalytics struct {
	QuestionID    string              `json:"questionId"`
	QuestionTitle string              `json:"questionTitle"`
	QuestionType  models.QuestionType `json:"questionType"`
	ResponseCount int                 `json:"responseCount"`
	*ChoiceStats
	*ScaleStats
}

type TrendPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// AnalyticsReport is the aggregate view of one form's response history.
type AnalyticsReport struct {
	FormID                       string              `json:"formId"`
	TotalResponses               int                 `json:"totalResponses"`
	CompletedResponses           int                 `json:"completedResponses"`
	CompletionRate               float64             `json:"completionRate"`
	AverageCompletionTimeSeconds int64               `json:"averageCompletionTimeSeconds"`
	QuestionAnalytics            []QuestionAnalytics `json:"questionAnalytics"`
	Trends                       []TrendPoint        `json:"trends"`
}

// trendDayLayout buckets completions by calendar day in UTC.
const trendDayLayout = "2006-01-02"

// ComputeAnalytics builds the report for a form from its question catalog
// and its complete response set. It reads its inputs only and never fails:
// degenerate input produces zero or empty values.
func ComputeAnalytics(formID string, questions []*models.Question, responses []*models.Response) *AnalyticsReport {
	total, completed := 0, 0
	answersByQuestion := map[string][]*models.Answer{}
	for _, r := range responses {
		if r == nil {
			continue
		}
		total++
		if r.Completed() {
			completed++
		}
		for _, a := range r.Answers {
			if a == nil {
				continue
			}
			answersByQuestion[a.QuestionID] = append(answersByQuestion[a.QuestionID], a)
		}
	}

	catalog := orderedQuestions(questions)
	items := make([]QuestionAnalytics, 0, len(catalog))
	for _, q := range catalog {
		items = append(items, analyzeQuestion(q, answersByQuestion[q.ID]))
	}

	return &AnalyticsReport{
		FormID:                       formID,
		TotalResponses:               total,
		CompletedResponses:           completed,
		CompletionRate:               percentOf(completed, total),
		AverageCompletionTimeSeconds: averageCompletionSeconds(responses),
		QuestionAnalytics:            items,
		Trends:                       buildTrends(responses),
	}
}

// orderedQuestions returns the non-nil questions sorted by Order, keeping the
// incoming order for ties.
func orderedQuestions(questions []*models.Question) []*models.Question {
	out := make([]*models.Question, 0, len(questions))
	for _, q := range questions {
		if q != nil {
			out = append(out, q)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func analyzeQuestion(q *models.Question, answers []*models.Answer) QuestionAnalytics {
	qa := QuestionAnalytics{
		QuestionID:    q.ID,
		QuestionTitle: q.Title,
		QuestionType:  q.Type,
		ResponseCount: len(answers),
	}
	switch q.Type {
	case models.MultipleChoice, models.Checkboxes, models.Dropdown:
		qa.ChoiceStats = choiceStats(q.Options.ChoiceList(), answers)
	case models.LinearScale:
		qa.ScaleStats = scaleStats(q.Options, answers)
	case models.ShortAnswer, models.LongAnswer, models.Date, models.Time,
		models.DateTime, models.FileUpload, models.RichText:
		// count only
	default:
		// unknown types are counted like free-text ones
	}
	return qa
}

// choiceStats counts each distinct element of an answer once, so a choice's
// percentage of answers never exceeds 100.
func choiceStats(choices []string, answers []*models.Answer) *ChoiceStats {
	counts := make(map[string]int, len(choices))
	for _, a := range answers {
		seen := map[string]bool{}
		for _, v := range a.Value.Elements() {
			if seen[v] {
				continue
			}
			seen[v] = true
			counts[v]++
		}
	}
	dist := make([]ChoiceCount, 0, len(choices))
	for _, c := range choices {
		dist = append(dist, ChoiceCount{
			Choice:     c,
			Count:      counts[c],
			Percentage: percentOf(counts[c], len(answers)),
		})
	}
	return &ChoiceStats{ChoiceDistribution: dist}
}

func scaleStats(opts *models.QuestionOptions, answers []*models.Answer) *ScaleStats {
	lo, hi, ok := opts.ScaleBounds()
	if !ok {
		return &ScaleStats{ScaleDistribution: []ScaleCount{}}
	}
	counts := make(map[int]int, hi-lo+1)
	var sum float64
	n := 0
	for _, a := range answers {
		v, isNum := a.Value.Number()
		if !isNum || v < float64(lo) || v > float64(hi) {
			continue
		}
		sum += v
		n++
		if v == math.Trunc(v) {
			counts[int(v)]++
		}
	}
	dist := make([]ScaleCount, 0, hi-lo+1)
	for v := lo; v <= hi; v++ {
		dist = append(dist, ScaleCount{
			Value:      v,
			Count:      counts[v],
			Percentage: percentOf(counts[v], len(answers)),
		})
	}
	st := &ScaleStats{ScaleDistribution: dist}
	if n > 0 {
		avg := round2(sum / float64(n))
		st.Average = &avg
	}
	return st
}

// averageCompletionSeconds averages completedAt-startedAt over responses with
// both timestamps, rounded to whole seconds. Responses completed before they
// started are ignored.
func averageCompletionSeconds(responses []*models.Response) int64 {
	var sum float64
	n := 0
	for _, r := range responses {
		if r == nil || r.CompletedAt == nil || r.StartedAt.IsZero() {
			continue
		}
		d := r.CompletedAt.Sub(r.StartedAt)
		if d < 0 {
			continue
		}
		sum += d.Seconds()
		n++
	}
	if n == 0 {
		return 0
	}
	return int64(math.Round(sum / float64(n)))
}

func buildTrends(responses []*models.Response) []TrendPoint {
	countsByDay := map[string]int{}
	for _, r := range responses {
		if r == nil || r.CompletedAt == nil {
			continue
		}
		countsByDay[r.CompletedAt.In(time.UTC).Format(trendDayLayout)]++
	}
	days := make([]string, 0, len(countsByDay))
	for d := range countsByDay {
		days = append(days, d)
	}
	sort.Strings(days)
	out := make([]TrendPoint, 0, len(days))
	for _, d := range days {
		out = append(out, TrendPoint{Date: d, Count: countsByDay[d]})
	}
	return out
}
