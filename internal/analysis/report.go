package analysis

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/mortality-audit/internal/records"
	"github.com/KaramelBytes/mortality-audit/internal/utils"
)

// ErrUnknownFormat indicates an unsupported report encoding.
var ErrUnknownFormat = errors.New("unknown report format")

// Options controls report contents.
type Options struct {
	// Month restricts everything except the monthly summary to one month.
	Month *records.Month
	// HistogramBins sets the age histogram resolution; 0 means DefaultAgeBins.
	HistogramBins int
	// DurationBins sets the death duration histogram resolution; 0 means DefaultDurationBins.
	DurationBins int
	// Warnings are carried into the [NOTES] section.
	Warnings []string
}

// DatasetInfo describes one uploaded dataset.
type DatasetInfo struct {
	Name    string          `json:"name" yaml:"name"`
	Records int             `json:"records" yaml:"records"`
	Anchor  string          `json:"anchor,omitempty" yaml:"anchor,omitempty"`
	Months  []records.Month `json:"months" yaml:"months"`
}

// Report is the complete mortality audit for a session.
type Report struct {
	GeneratedAt       time.Time          `json:"generated_at" yaml:"generated_at"`
	Current           *DatasetInfo       `json:"current,omitempty" yaml:"current,omitempty"`
	Previous          *DatasetInfo       `json:"previous,omitempty" yaml:"previous,omitempty"`
	Month             string             `json:"month,omitempty" yaml:"month,omitempty"`
	Totals            Totals             `json:"totals" yaml:"totals"`
	Monthly           []MonthSummary     `json:"monthly" yaml:"monthly"`
	Latest            *Comparison        `json:"latest_change,omitempty" yaml:"latest_change,omitempty"`
	Comparison        *Comparison        `json:"comparison,omitempty" yaml:"comparison,omitempty"`
	DatasetComparison *DatasetComparison `json:"dataset_comparison,omitempty" yaml:"dataset_comparison,omitempty"`
	DeathCauses       []CategoryCount    `json:"death_causes" yaml:"death_causes"`
	Diagnoses         []CategoryCount    `json:"diagnoses" yaml:"diagnoses"`
	AgeGroups         []AgeGroupCount    `json:"age_groups" yaml:"age_groups"`
	Particulars       []Particular       `json:"particulars" yaml:"particulars"`
	Durations         []Bin              `json:"death_durations" yaml:"death_durations"`
	AgeHistogram      []Bin              `json:"age_histogram" yaml:"age_histogram"`
	Trend             []TrendPoint       `json:"diagnosis_trend" yaml:"diagnosis_trend"`
	Warnings          []string           `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// BuildReport aggregates the current and optional previous datasets. The
// monthly summary spans both; every other section honours opt.Month.
func BuildReport(current, previous *records.Dataset, opt Options) *Report {
	combined := records.Concat(previous, current)
	scoped := combined
	r := &Report{GeneratedAt: time.Now().UTC(), Warnings: opt.Warnings}
	if opt.Month != nil && !opt.Month.IsZero() {
		scoped = combined.InMonth(*opt.Month)
		r.Month = opt.Month.String()
	}
	r.Current = describe(current)
	r.Previous = describe(previous)
	r.Totals = TotalsOf(scoped)
	r.Monthly = MonthlySummary(combined)
	if c, ok := LatestChange(r.Monthly); ok {
		r.Latest = &c
	}
	if current != nil && previous != nil {
		c := CompareDatasets(current, previous)
		r.DatasetComparison = &c
	}
	r.DeathCauses = DeathCauses(scoped)
	r.Diagnoses = DiagnosisCounts(scoped)
	r.AgeGroups = AgeGroupDeathCounts(scoped)
	r.Particulars = Particulars(scoped)
	r.Durations = DurationHistogram(scoped, opt.DurationBins)
	r.AgeHistogram = AgeHistogram(scoped, opt.HistogramBins)
	r.Trend = MonthlyDiagnosisTrend(scoped)
	return r
}

func describe(ds *records.Dataset) *DatasetInfo {
	if ds == nil {
		return nil
	}
	return &DatasetInfo{Name: ds.Name, Records: ds.Len(), Anchor: ds.Anchor, Months: ds.Months()}
}

// Encode renders the report as markdown, json or yaml.
func (r *Report) Encode(format string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "markdown", "md":
		return []byte(r.Markdown()), nil
	case "json":
		return utils.PrettyJSON(r)
	case "yaml", "yml":
		b, err := yaml.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshal yaml: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: %q (use markdown, json or yaml)", ErrUnknownFormat, format)
	}
}

// Markdown renders a compact audit report.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[AUDIT SUMMARY]\n")
	for _, d := range []struct {
		label string
		info  *DatasetInfo
	}{{"Current", r.Current}, {"Previous", r.Previous}} {
		if d.info == nil {
			continue
		}
		b.WriteString(fmt.Sprintf("%s: %s (%d records", d.label, safeName(d.info.Name), d.info.Records))
		if d.info.Anchor != "" {
			b.WriteString(fmt.Sprintf(", month from %s", d.info.Anchor))
		}
		b.WriteString(")\n")
	}
	if r.Month != "" {
		b.WriteString(fmt.Sprintf("Month: %s\n", r.Month))
	}
	b.WriteString(fmt.Sprintf("Admissions: %d\nDeaths: %d\nMortality: %.2f%%\n", r.Totals.Admissions, r.Totals.Deaths, r.Totals.MortalityRate))

	b.WriteString("\n[MONTHLY MORTALITY]\n")
	if len(r.Monthly) == 0 {
		b.WriteString("No records with a known month.\n")
	} else {
		b.WriteString("| month | admissions | deaths | mortality % |\n| --- | --- | --- | --- |\n")
		for _, m := range r.Monthly {
			b.WriteString(fmt.Sprintf("| %s | %d | %d | %.2f |\n", m.Month, m.Admissions, m.Deaths, m.MortalityRate))
		}
	}
	if r.Latest != nil {
		b.WriteString("\n[MONTH-TO-MONTH CHANGE]\n")
		b.WriteString(fmt.Sprintf("%s: %.2f%% -> %s: %.2f%% (%+.2f)\n",
			r.Latest.A.Month, r.Latest.A.MortalityRate, r.Latest.B.Month, r.Latest.B.MortalityRate, r.Latest.RateDelta))
	}
	if c := r.Comparison; c != nil {
		b.WriteString("\n[MONTH COMPARISON]\n")
		b.WriteString("| month | admissions | deaths | mortality % |\n| --- | --- | --- | --- |\n")
		for _, m := range []MonthSummary{c.A, c.B} {
			b.WriteString(fmt.Sprintf("| %s | %d | %d | %.2f |\n", m.Month, m.Admissions, m.Deaths, m.MortalityRate))
		}
		b.WriteString(fmt.Sprintf("Change: %+.2f\n", c.RateDelta))
	}
	if c := r.DatasetComparison; c != nil {
		b.WriteString("\n[CURRENT VS PREVIOUS]\n")
		b.WriteString(fmt.Sprintf("- Current: %d deaths / %d admissions (%.2f%%)\n", c.Current.Deaths, c.Current.Admissions, c.Current.MortalityRate))
		b.WriteString(fmt.Sprintf("- Previous: %d deaths / %d admissions (%.2f%%)\n", c.Previous.Deaths, c.Previous.Admissions, c.Previous.MortalityRate))
		b.WriteString(fmt.Sprintf("- Change: %+.2f\n", c.RateDelta))
	}

	writeCounts(&b, "CAUSES OF DEATH", r.DeathCauses, "No death records found.")
	writeCounts(&b, "ADMISSIONS BY DIAGNOSIS", r.Diagnoses, "No admissions.")

	b.WriteString("\n[DEATHS BY AGE GROUP]\n")
	for _, g := range r.AgeGroups {
		b.WriteString(fmt.Sprintf("- %s: %d\n", g.Group, g.Deaths))
	}

	if len(r.Particulars) > 0 {
		b.WriteString("\n[MORTALITY PARTICULARS]\n")
		b.WriteString("| initials | sex | age (days) | diagnosis | duration (days) |\n| --- | --- | --- | --- | --- |\n")
		for _, p := range r.Particulars {
			b.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
				safeVal(p.Initials), p.Sex, optInt(p.AgeDays), safeVal(p.PrimaryDiagnosis), optInt(p.DurationDays)))
		}
	}
	writeBins(&b, "DEATH DURATION (DAYS)", r.Durations)
	writeBins(&b, "AGE AT DEATH (DAYS)", r.AgeHistogram)

	if len(r.Trend) > 0 {
		b.WriteString("\n[DIAGNOSIS TREND]\n")
		for _, t := range r.Trend {
			b.WriteString(fmt.Sprintf("- %s %s: %d\n", t.Month, safeVal(t.Diagnosis), t.Admissions))
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func writeCounts(b *strings.Builder, title string, counts []CategoryCount, empty string) {
	b.WriteString("\n[" + title + "]\n")
	if len(counts) == 0 {
		b.WriteString(empty + "\n")
		return
	}
	for _, c := range counts {
		b.WriteString(fmt.Sprintf("- %s: %d\n", safeVal(c.Value), c.Count))
	}
}

func writeBins(b *strings.Builder, title string, bins []Bin) {
	if len(bins) == 0 {
		return
	}
	b.WriteString("\n[" + title + "]\n")
	for _, bin := range bins {
		b.WriteString(fmt.Sprintf("- %.4g to %.4g: %d\n", bin.Low, bin.High, bin.Count))
	}
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
