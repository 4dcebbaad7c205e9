package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/mortality-audit/internal/records"
)

func intp(v int) *int { return &v }

func TestAgeGroupOfBoundaries(t *testing.T) {
	cases := []struct {
		days *int
		want AgeGroup
	}{
		{nil, AgeUnknown},
		{intp(0), AgeUnder1Month},
		{intp(29), AgeUnder1Month},
		{intp(30), Age1To11Months},
		{intp(364), Age1To11Months},
		{intp(365), Age1To4Years},
		{intp(1824), Age1To4Years},
		{intp(1825), Age5To14Years},
		{intp(5474), Age5To14Years},
		{intp(5475), Age15Plus},
		{intp(40000), Age15Plus},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, AgeGroupOf(c.days))
	}
}

func TestAgeGroupDeathCountsIncludesEmptyBuckets(t *testing.T) {
	ds := &records.Dataset{Records: []records.Record{
		{Outcome: records.OutcomeDead, AgeDays: intp(3)},
		{Outcome: records.OutcomeDead, AgeDays: intp(400)},
		{Outcome: records.OutcomeDead},
		{Outcome: records.OutcomeAlive, AgeDays: intp(3)},
	}}
	got := AgeGroupDeathCounts(ds)
	require.Len(t, got, 6)
	assert.Equal(t, []AgeGroupCount{
		{AgeUnder1Month, 1}, {Age1To11Months, 0}, {Age1To4Years, 1},
		{Age5To14Years, 0}, {Age15Plus, 0}, {AgeUnknown, 1},
	}, got)

	for _, g := range AgeGroupDeathCounts(nil) {
		assert.Zero(t, g.Deaths)
	}
}

func TestDeathDurationsAndParticulars(t *testing.T) {
	day := func(d int) *time.Time {
		v := time.Date(2025, 9, d, 0, 0, 0, 0, time.UTC)
		return &v
	}
	ds := &records.Dataset{Records: []records.Record{
		{Initials: "J.M.M", Sex: records.SexMale, AgeDays: intp(10), Outcome: records.OutcomeDead, PrimaryDiagnosis: "Neonatal Sepsis", AdmissionDate: day(1), DeathDate: day(4)},
		{Initials: "A.B", Outcome: records.OutcomeDead, PrimaryDiagnosis: "Malaria", AdmissionDate: day(5), DeathDate: day(2)},
		{Initials: "C.D", Outcome: records.OutcomeDead, PrimaryDiagnosis: "Malaria"},
		{Initials: "E.F", Outcome: records.OutcomeAlive, AdmissionDate: day(1), DeathDate: day(9)},
	}}

	assert.Equal(t, []int{3}, DeathDurations(ds))

	ps := Particulars(ds)
	require.Len(t, ps, 3)
	assert.Equal(t, "J.M.M", ps[0].Initials)
	require.NotNil(t, ps[0].DurationDays)
	assert.Equal(t, 3, *ps[0].DurationDays)
	assert.Nil(t, ps[1].DurationDays, "negative duration is excluded")
	assert.Nil(t, ps[2].DurationDays)
}

func TestHistogram(t *testing.T) {
	assert.Empty(t, Histogram(nil, 5))

	bins := Histogram([]float64{0, 1, 2, 3, 4, 10}, 5)
	require.Len(t, bins, 5)
	assert.Equal(t, 0.0, bins[0].Low)
	assert.Equal(t, 10.0, bins[4].High)
	total := 0
	for _, b := range bins {
		total += b.Count
	}
	assert.Equal(t, 6, total)
	assert.Equal(t, 2, bins[0].Count)
	assert.Equal(t, 1, bins[4].Count)

	single := Histogram([]float64{7, 7}, 20)
	assert.Equal(t, []Bin{{Low: 7, High: 8, Count: 2}}, single)
}

func TestAgeHistogramOnlyCountsDeathsWithAge(t *testing.T) {
	ds := &records.Dataset{Records: []records.Record{
		{Outcome: records.OutcomeDead, AgeDays: intp(10)},
		{Outcome: records.OutcomeDead, AgeDays: intp(300)},
		{Outcome: records.OutcomeDead},
		{Outcome: records.OutcomeAlive, AgeDays: intp(5000)},
	}}
	bins := AgeHistogram(ds, 20)
	require.Len(t, bins, 20)
	assert.Equal(t, 10.0, bins[0].Low)
	assert.Equal(t, 300.0, bins[19].High)
	assert.Equal(t, 1, bins[0].Count)
	assert.Equal(t, 1, bins[19].Count)
}

func TestHistogramDefaultBins(t *testing.T) {
	day := func(d int) *time.Time {
		v := time.Date(2025, 9, d, 0, 0, 0, 0, time.UTC)
		return &v
	}
	ds := &records.Dataset{}
	for i := 1; i <= 12; i++ {
		ds.Records = append(ds.Records, records.Record{
			Outcome: records.OutcomeDead, AgeDays: intp(i * 10), AdmissionDate: day(1), DeathDate: day(i + 1),
		})
	}
	assert.Len(t, AgeHistogram(ds, 0), DefaultAgeBins)
	assert.Len(t, DurationHistogram(ds, 0), DefaultDurationBins)
	assert.Len(t, DurationHistogram(ds, 4), 4)

	r := BuildReport(ds, nil, Options{DurationBins: 3})
	assert.Len(t, r.Durations, 3)
	assert.Len(t, r.AgeHistogram, DefaultAgeBins)
}
