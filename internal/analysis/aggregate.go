package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/mortality-audit/internal/records"
)

var (
	// ErrInsufficientMonths indicates a comparison needs at least two distinct months.
	ErrInsufficientMonths = errors.New("at least two distinct months are required to compare")
	// ErrMonthNotFound indicates a requested month has no records.
	ErrMonthNotFound = errors.New("month not present in dataset")
)

// Totals is an admission/death count with its mortality rate in percent.
type Totals struct {
	Admissions    int     `json:"admissions" yaml:"admissions"`
	Deaths        int     `json:"deaths" yaml:"deaths"`
	MortalityRate float64 `json:"mortality_rate" yaml:"mortality_rate"`
}

// MonthSummary is the aggregate row for one month.
type MonthSummary struct {
	Month  records.Month `json:"month" yaml:"month"`
	Totals `yaml:",inline"`
}

// Comparison holds two monthly rows and the rate change from A to B.
type Comparison struct {
	A         MonthSummary `json:"a" yaml:"a"`
	B         MonthSummary `json:"b" yaml:"b"`
	RateDelta float64      `json:"rate_delta" yaml:"rate_delta"`
}

// DatasetComparison contrasts the whole current upload with the previous one.
type DatasetComparison struct {
	Current   Totals  `json:"current" yaml:"current"`
	Previous  Totals  `json:"previous" yaml:"previous"`
	RateDelta float64 `json:"rate_delta" yaml:"rate_delta"`
}

// CategoryCount is a labelled count.
type CategoryCount struct {
	Value string `json:"value" yaml:"value"`
	Count int    `json:"count" yaml:"count"`
}

// TrendPoint is the admission count for one (month, diagnosis) pair.
type TrendPoint struct {
	Month      records.Month `json:"month" yaml:"month"`
	Diagnosis  string        `json:"diagnosis" yaml:"diagnosis"`
	Admissions int           `json:"admissions" yaml:"admissions"`
}

// Rate returns deaths/admissions*100 rounded to 2 decimals, 0 when there are no admissions.
func Rate(deaths, admissions int) float64 {
	if admissions <= 0 {
		return 0
	}
	return round2(float64(deaths) * 100 / float64(admissions))
}

func round2(x float64) float64 {
	return math.RoundToEven(x*100) / 100
}

// TotalsOf counts every record in ds regardless of month.
func TotalsOf(ds *records.Dataset) Totals {
	var t Totals
	if ds == nil {
		return t
	}
	for _, r := range ds.Records {
		t.Admissions++
		if r.IsDeath() {
			t.Deaths++
		}
	}
	t.MortalityRate = Rate(t.Deaths, t.Admissions)
	return t
}

// MonthlySummary returns one row per distinct known month across datasets, in
// chronological order. Records without a month are not counted.
func MonthlySummary(datasets ...*records.Dataset) []MonthSummary {
	byMonth := map[records.Month]*MonthSummary{}
	for _, ds := range datasets {
		if ds == nil {
			continue
		}
		for _, r := range ds.Records {
			if r.Month.IsZero() {
				continue
			}
			s, ok := byMonth[r.Month]
			if !ok {
				s = &MonthSummary{Month: r.Month}
				byMonth[r.Month] = s
			}
			s.Admissions++
			if r.IsDeath() {
				s.Deaths++
			}
		}
	}
	out := make([]MonthSummary, 0, len(byMonth))
	for _, s := range byMonth {
		s.MortalityRate = Rate(s.Deaths, s.Admissions)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

// CompareMonths summarizes months a and b of ds. It fails with
// ErrInsufficientMonths when ds spans fewer than two distinct months.
func CompareMonths(ds *records.Dataset, a, b records.Month) (Comparison, error) {
	summary := MonthlySummary(ds)
	if len(summary) < 2 {
		return Comparison{}, fmt.Errorf("%w: found %d", ErrInsufficientMonths, len(summary))
	}
	find := func(m records.Month) (MonthSummary, error) {
		for _, s := range summary {
			if s.Month == m {
				return s, nil
			}
		}
		return MonthSummary{}, fmt.Errorf("%w: %s", ErrMonthNotFound, m)
	}
	sa, err := find(a)
	if err != nil {
		return Comparison{}, err
	}
	sb, err := find(b)
	if err != nil {
		return Comparison{}, err
	}
	return compare(sa, sb), nil
}

// LatestChange compares the last two rows of a monthly summary.
func LatestChange(summary []MonthSummary) (Comparison, bool) {
	n := len(summary)
	if n < 2 {
		return Comparison{}, false
	}
	return compare(summary[n-2], summary[n-1]), true
}

func compare(a, b MonthSummary) Comparison {
	return Comparison{A: a, B: b, RateDelta: round2(b.MortalityRate - a.MortalityRate)}
}

// CompareDatasets contrasts the totals of two whole uploads.
func CompareDatasets(current, previous *records.Dataset) DatasetComparison {
	c := DatasetComparison{Current: TotalsOf(current), Previous: TotalsOf(previous)}
	c.RateDelta = round2(c.Current.MortalityRate - c.Previous.MortalityRate)
	return c
}

// DiagnosisCounts counts admissions per primary diagnosis, most frequent first.
func DiagnosisCounts(ds *records.Dataset) []CategoryCount {
	return countBy(ds, func(records.Record) bool { return true })
}

// DeathCauses counts deaths per primary diagnosis, most frequent first.
func DeathCauses(ds *records.Dataset) []CategoryCount {
	return countBy(ds, records.Record.IsDeath)
}

func countBy(ds *records.Dataset, keep func(records.Record) bool) []CategoryCount {
	if ds == nil {
		return []CategoryCount{}
	}
	counts := map[string]int{}
	for _, r := range ds.Records {
		if keep(r) {
			counts[r.PrimaryDiagnosis]++
		}
	}
	out := make([]CategoryCount, 0, len(counts))
	for k, v := range counts {
		out = append(out, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Value < out[j].Value
		}
		return out[i].Count > out[j].Count
	})
	return out
}

// MonthlyDiagnosisTrend counts admissions per observed (month, diagnosis) pair,
// ordered by month and then diagnosis.
func MonthlyDiagnosisTrend(ds *records.Dataset) []TrendPoint {
	if ds == nil {
		return []TrendPoint{}
	}
	type key struct {
		m records.Month
		d string
	}
	counts := map[key]int{}
	for _, r := range ds.Records {
		if r.Month.IsZero() {
			continue
		}
		counts[key{r.Month, r.PrimaryDiagnosis}]++
	}
	out := make([]TrendPoint, 0, len(counts))
	for k, v := range counts {
		out = append(out, TrendPoint{Month: k.m, Diagnosis: k.d, Admissions: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month.Before(out[j].Month)
		}
		return out[i].Diagnosis < out[j].Diagnosis
	})
	return out
}
