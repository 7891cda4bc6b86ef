package services

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/soaringjerry/FormPulse/internal/models"
)

func answer(qid string, v any) *models.Answer {
	return &models.Answer{QuestionID: qid, Value: models.AnswerValueOf(v)}
}

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func intp(v int) *int { return &v }

func completedResponse(id, completed string, answers ...*models.Answer) *models.Response {
	c := at(completed)
	return &models.Response{ID: id, StartedAt: c.Add(-time.Minute), CompletedAt: c, Answers: answers}
}

func TestComputeAnalyticsEmptyResponses(t *testing.T) {
	questions := []*models.Question{
		{ID: "Q1", Type: models.MultipleChoice, Title: "Pick", Options: &models.QuestionOptions{Choices: []string{"A", "B"}}},
		{ID: "Q2", Type: models.LinearScale, Title: "Rate"},
		{ID: "Q3", Type: models.ShortAnswer, Title: "Say"},
	}
	rep := ComputeAnalytics("F1", questions, nil)
	if rep.FormID != "F1" || rep.TotalResponses != 0 || rep.CompletedResponses != 0 {
		t.Fatalf("unexpected totals: %+v", rep)
	}
	if rep.CompletionRate != 0 || rep.AverageCompletionTimeSeconds != 0 {
		t.Fatalf("expected zero rates: %+v", rep)
	}
	if len(rep.Trends) != 0 || rep.Trends == nil {
		t.Fatalf("expected empty trends slice, got %#v", rep.Trends)
	}
	if len(rep.QuestionAnalytics) != 3 {
		t.Fatalf("expected 3 question entries, got %d", len(rep.QuestionAnalytics))
	}
	for _, qa := range rep.QuestionAnalytics {
		if qa.ResponseCount != 0 {
			t.Fatalf("%s responseCount = %d", qa.QuestionID, qa.ResponseCount)
		}
	}
	choice := rep.QuestionAnalytics[0].ChoiceStats
	if choice == nil || len(choice.ChoiceDistribution) != 2 || choice.ChoiceDistribution[0].Percentage != 0 {
		t.Fatalf("unexpected choice stats: %+v", choice)
	}
	scale := rep.QuestionAnalytics[1].ScaleStats
	if scale == nil || len(scale.ScaleDistribution) != 5 || scale.Average != nil {
		t.Fatalf("unexpected scale stats: %+v", scale)
	}
}

func TestComputeAnalyticsLinearScale(t *testing.T) {
	q := &models.Question{ID: "Q1", Type: models.LinearScale, Options: &models.QuestionOptions{Min: intp(1), Max: intp(5)}}
	var responses []*models.Response
	for i, v := range []int{1, 3, 3, 5, 7} {
		responses = append(responses, completedResponse(string(rune('a'+i)), "2025-09-18T10:00:00Z", answer("Q1", v)))
	}
	rep := ComputeAnalytics("F1", []*models.Question{q}, responses)
	qa := rep.QuestionAnalytics[0]
	if qa.ResponseCount != 5 {
		t.Fatalf("responseCount = %d", qa.ResponseCount)
	}
	want := []int{1, 0, 2, 0, 1}
	if len(qa.ScaleDistribution) != len(want) {
		t.Fatalf("distribution = %+v", qa.ScaleDistribution)
	}
	for i, sc := range qa.ScaleDistribution {
		if sc.Value != i+1 || sc.Count != want[i] {
			t.Fatalf("bucket %d = %+v, want value %d count %d", i, sc, i+1, want[i])
		}
	}
	if qa.ScaleDistribution[2].Percentage != 40 {
		t.Fatalf("percentage for 3 = %v", qa.ScaleDistribution[2].Percentage)
	}
	if qa.Average == nil || *qa.Average != 3 {
		t.Fatalf("average = %v", qa.Average)
	}
	if qa.ChoiceStats != nil {
		t.Fatalf("scale question must not carry choice stats")
	}
}

func TestComputeAnalyticsScaleAcceptsNumericStringsAndDefaults(t *testing.T) {
	q := &models.Question{ID: "Q1", Type: models.LinearScale}
	responses := []*models.Response{
		completedResponse("r1", "2025-09-18T10:00:00Z", answer("Q1", "2")),
		completedResponse("r2", "2025-09-18T10:00:00Z", answer("Q1", "x")),
		completedResponse("r3", "2025-09-18T10:00:00Z", answer("Q1", 4.5)),
	}
	qa := ComputeAnalytics("F1", []*models.Question{q}, responses).QuestionAnalytics[0]
	if len(qa.ScaleDistribution) != 5 || qa.ScaleDistribution[1].Count != 1 {
		t.Fatalf("unexpected distribution: %+v", qa.ScaleDistribution)
	}
	if qa.ScaleDistribution[3].Count != 0 || qa.ScaleDistribution[4].Count != 0 {
		t.Fatalf("non-integer values must not land in a bucket: %+v", qa.ScaleDistribution)
	}
	if qa.Average == nil || *qa.Average != 3.25 {
		t.Fatalf("average = %v", qa.Average)
	}
}

func TestComputeAnalyticsMalformedScale(t *testing.T) {
	q := &models.Question{ID: "Q1", Type: models.LinearScale, Options: &models.QuestionOptions{Min: intp(9), Max: intp(2)}}
	rep := ComputeAnalytics("F1", []*models.Question{q}, []*models.Response{
		completedResponse("r1", "2025-09-18T10:00:00Z", answer("Q1", 3)),
	})
	qa := rep.QuestionAnalytics[0]
	if qa.ResponseCount != 1 || len(qa.ScaleDistribution) != 0 || qa.Average != nil {
		t.Fatalf("unexpected stats: %+v %+v", qa, qa.ScaleStats)
	}
	b, err := json.Marshal(qa)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"scaleDistribution":[]`) || strings.Contains(string(b), "average") {
		t.Fatalf("unexpected json: %s", b)
	}
}

func TestComputeAnalyticsMultipleChoice(t *testing.T) {
	q := &models.Question{ID: "Q1", Type: models.MultipleChoice, Options: &models.QuestionOptions{Choices: []string{"A", "B"}}}
	responses := []*models.Response{
		completedResponse("r1", "2025-09-18T10:00:00Z", answer("Q1", "A")),
		completedResponse("r2", "2025-09-18T10:00:00Z", answer("Q1", "A")),
		completedResponse("r3", "2025-09-18T10:00:00Z", answer("Q1", "C")),
	}
	qa := ComputeAnalytics("F1", []*models.Question{q}, responses).QuestionAnalytics[0]
	if qa.ResponseCount != 3 {
		t.Fatalf("responseCount = %d", qa.ResponseCount)
	}
	want := []ChoiceCount{{Choice: "A", Count: 2, Percentage: 66.67}, {Choice: "B", Count: 0, Percentage: 0}}
	if len(qa.ChoiceDistribution) != len(want) {
		t.Fatalf("distribution = %+v", qa.ChoiceDistribution)
	}
	for i := range want {
		if qa.ChoiceDistribution[i] != want[i] {
			t.Fatalf("choice %d = %+v, want %+v", i, qa.ChoiceDistribution[i], want[i])
		}
	}
}

func TestComputeAnalyticsCheckboxes(t *testing.T) {
	q := &models.Question{ID: "Q1", Type: models.Checkboxes, Options: &models.QuestionOptions{Choices: []string{"X", "Y"}}}
	responses := []*models.Response{
		completedResponse("r1", "2025-09-18T10:00:00Z", answer("Q1", []string{"X", "Y"})),
	}
	qa := ComputeAnalytics("F1", []*models.Question{q}, responses).QuestionAnalytics[0]
	if qa.ChoiceDistribution[0].Count != 1 || qa.ChoiceDistribution[1].Count != 1 {
		t.Fatalf("both choices should count once: %+v", qa.ChoiceDistribution)
	}
	if qa.ChoiceDistribution[0].Percentage != 100 {
		t.Fatalf("percentage = %v", qa.ChoiceDistribution[0].Percentage)
	}
}

func TestComputeAnalyticsDropdownNumericChoices(t *testing.T) {
	var opts models.QuestionOptions
	if err := json.Unmarshal([]byte(`{"choices":[1,2,"three"]}`), &opts); err != nil {
		t.Fatalf("options: %v", err)
	}
	q := &models.Question{ID: "Q1", Type: models.Dropdown, Options: &opts}
	qa := ComputeAnalytics("F1", []*models.Question{q}, []*models.Response{
		completedResponse("r1", "2025-09-18T10:00:00Z", answer("Q1", 2)),
		completedResponse("r2", "2025-09-18T10:00:00Z", answer("Q1", "three")),
	}).QuestionAnalytics[0]
	got := []int{qa.ChoiceDistribution[0].Count, qa.ChoiceDistribution[1].Count, qa.ChoiceDistribution[2].Count}
	if got[0] != 0 || got[1] != 1 || got[2] != 1 {
		t.Fatalf("counts = %v", got)
	}
}

func TestComputeAnalyticsOtherTypesCarryNoStats(t *testing.T) {
	questions := []*models.Question{
		{ID: "Q1", Type: models.LongAnswer},
		{ID: "Q2", Type: models.QuestionType("MATRIX")},
	}
	rep := ComputeAnalytics("F1", questions, []*models.Response{
		completedResponse("r1", "2025-09-18T10:00:00Z", answer("Q1", "hi"), answer("Q2", "x"), answer("Q9", "orphan")),
	})
	for _, qa := range rep.QuestionAnalytics {
		if qa.ResponseCount != 1 || qa.ChoiceStats != nil || qa.ScaleStats != nil {
			t.Fatalf("unexpected analytics for %s: %+v", qa.QuestionID, qa)
		}
		b, _ := json.Marshal(qa)
		if strings.Contains(string(b), "Distribution") {
			t.Fatalf("no distribution expected in %s", b)
		}
	}
}

func TestComputeAnalyticsQuestionOrder(t *testing.T) {
	questions := []*models.Question{
		{ID: "Q2", Type: models.ShortAnswer, Order: 2},
		nil,
		{ID: "Q1", Type: models.ShortAnswer, Order: 1},
	}
	rep := ComputeAnalytics("F1", questions, nil)
	if len(rep.QuestionAnalytics) != 2 || rep.QuestionAnalytics[0].QuestionID != "Q1" {
		t.Fatalf("unexpected order: %+v", rep.QuestionAnalytics)
	}
}

func TestComputeAnalyticsCompletionAndTrends(t *testing.T) {
	responses := []*models.Response{
		{ID: "r1", StartedAt: *at("2025-09-18T10:00:00Z"), CompletedAt: at("2025-09-18T10:01:30Z")},
		{ID: "r2", StartedAt: *at("2025-09-18T20:00:00Z"), CompletedAt: at("2025-09-18T20:00:31Z")},
		// 23:30 at -02:00 is the next UTC day
		{ID: "r3", StartedAt: *at("2025-09-18T23:29:00-02:00"), CompletedAt: at("2025-09-18T23:30:00-02:00")},
		{ID: "r4", StartedAt: *at("2025-09-17T08:00:00Z")},
		// completion before start is not a duration
		{ID: "r5", StartedAt: *at("2025-09-16T08:00:00Z"), CompletedAt: at("2025-09-16T07:00:00Z")},
		nil,
	}
	rep := ComputeAnalytics("F1", nil, responses)
	if rep.TotalResponses != 5 || rep.CompletedResponses != 4 {
		t.Fatalf("totals = %d/%d", rep.CompletedResponses, rep.TotalResponses)
	}
	if rep.CompletionRate != 80 {
		t.Fatalf("completionRate = %v", rep.CompletionRate)
	}
	// (90 + 31 + 60) / 3 = 60.33
	if rep.AverageCompletionTimeSeconds != 60 {
		t.Fatalf("average completion = %d", rep.AverageCompletionTimeSeconds)
	}
	want := []TrendPoint{{"2025-09-16", 1}, {"2025-09-18", 2}, {"2025-09-19", 1}}
	if len(rep.Trends) != len(want) {
		t.Fatalf("trends = %+v", rep.Trends)
	}
	for i := range want {
		if rep.Trends[i] != want[i] {
			t.Fatalf("trend %d = %+v, want %+v", i, rep.Trends[i], want[i])
		}
		if i > 0 && rep.Trends[i-1].Date >= rep.Trends[i].Date {
			t.Fatalf("trends not strictly increasing: %+v", rep.Trends)
		}
	}
}

func TestComputeAnalyticsAverageCompletionRoundsHalfUp(t *testing.T) {
	responses := []*models.Response{
		{ID: "r1", StartedAt: *at("2025-09-18T10:00:00Z"), CompletedAt: at("2025-09-18T10:00:01Z")},
		{ID: "r2", StartedAt: *at("2025-09-18T10:00:00Z"), CompletedAt: at("2025-09-18T10:00:02Z")},
	}
	if got := ComputeAnalytics("F1", nil, responses).AverageCompletionTimeSeconds; got != 2 {
		t.Fatalf("average = %d, want 2", got)
	}
}

func TestPercentagesStayInRange(t *testing.T) {
	q := &models.Question{ID: "Q1", Type: models.Checkboxes, Options: &models.QuestionOptions{Choices: []string{"X"}}}
	rep := ComputeAnalytics("F1", []*models.Question{q}, []*models.Response{
		completedResponse("r1", "2025-09-18T10:00:00Z", answer("Q1", []string{"X", "X", "X"})),
		{ID: "r2", StartedAt: time.Now()},
		{ID: "r3", StartedAt: time.Now()},
	})
	check := func(v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 100 {
			t.Fatalf("out of range: %v", v)
		}
		if v != math.Round(v*100)/100 {
			t.Fatalf("not rounded to 2dp: %v", v)
		}
	}
	check(rep.CompletionRate)
	if rep.CompletionRate != 33.33 {
		t.Fatalf("completionRate = %v", rep.CompletionRate)
	}
	for _, c := range rep.QuestionAnalytics[0].ChoiceDistribution {
		check(c.Percentage)
	}
}
