package analysis

import (
	"math"
	"sort"

	"github.com/KaramelBytes/mortality-audit/internal/records"
)

// AgeGroup is a fixed pediatric age bucket.
type AgeGroup string

const (
	AgeUnder1Month AgeGroup = "<1 month"
	Age1To11Months AgeGroup = "1–11 months"
	Age1To4Years   AgeGroup = "1–4 years"
	Age5To14Years  AgeGroup = "5–14 years"
	Age15Plus      AgeGroup = "15+ years"
	AgeUnknown     AgeGroup = "Unknown"
)

// AgeGroups lists every bucket in presentation order.
var AgeGroups = []AgeGroup{AgeUnder1Month, Age1To11Months, Age1To4Years, Age5To14Years, Age15Plus, AgeUnknown}

// AgeGroupOf places an age in days into exactly one bucket; nil is Unknown.
func AgeGroupOf(ageDays *int) AgeGroup {
	if ageDays == nil {
		return AgeUnknown
	}
	switch d := *ageDays; {
	case d < 30:
		return AgeUnder1Month
	case d < 365:
		return Age1To11Months
	case d < 5*365:
		return Age1To4Years
	case d < 15*365:
		return Age5To14Years
	default:
		return Age15Plus
	}
}

// AgeGroupCount is the number of deaths in one bucket.
type AgeGroupCount struct {
	Group  AgeGroup `json:"group" yaml:"group"`
	Deaths int      `json:"deaths" yaml:"deaths"`
}

// AgeGroupDeathCounts counts deaths per bucket. All six buckets are returned in
// order, including empty ones.
func AgeGroupDeathCounts(ds *records.Dataset) []AgeGroupCount {
	counts := map[AgeGroup]int{}
	if ds != nil {
		for _, r := range ds.Records {
			if r.IsDeath() {
				counts[AgeGroupOf(r.AgeDays)]++
			}
		}
	}
	out := make([]AgeGroupCount, len(AgeGroups))
	for i, g := range AgeGroups {
		out[i] = AgeGroupCount{Group: g, Deaths: counts[g]}
	}
	return out
}

// Particular is one row of the mortality particulars table.
type Particular struct {
	Initials         string      `json:"initials" yaml:"initials"`
	Sex              records.Sex `json:"sex_norm" yaml:"sex_norm"`
	AgeDays          *int        `json:"age_days" yaml:"age_days"`
	PrimaryDiagnosis string      `json:"primary_diagnosis" yaml:"primary_diagnosis"`
	DurationDays     *int        `json:"duration_days" yaml:"duration_days"`
}

// DeathDuration returns whole days from admission to death. ok is false when
// either date is unknown or death precedes admission.
func DeathDuration(r records.Record) (days int, ok bool) {
	if r.AdmissionDate == nil || r.DeathDate == nil {
		return 0, false
	}
	d := int(math.Floor(r.DeathDate.Sub(*r.AdmissionDate).Hours() / 24))
	if d < 0 {
		return 0, false
	}
	return d, true
}

// DeathDurations lists the known admission-to-death durations of deaths in ds.
func DeathDurations(ds *records.Dataset) []int {
	out := []int{}
	if ds == nil {
		return out
	}
	for _, r := range ds.Records {
		if !r.IsDeath() {
			continue
		}
		if d, ok := DeathDuration(r); ok {
			out = append(out, d)
		}
	}
	return out
}

// Particulars lists every death in input order.
func Particulars(ds *records.Dataset) []Particular {
	out := []Particular{}
	if ds == nil {
		return out
	}
	for _, r := range ds.Records {
		if !r.IsDeath() {
			continue
		}
		p := Particular{Initials: r.Initials, Sex: r.Sex, AgeDays: r.AgeDays, PrimaryDiagnosis: r.PrimaryDiagnosis}
		if d, ok := DeathDuration(r); ok {
			p.DurationDays = &d
		}
		out = append(out, p)
	}
	return out
}

// Bin is one histogram bucket covering [Low, High). The last bin also holds High.
type Bin struct {
	Low   float64 `json:"low" yaml:"low"`
	High  float64 `json:"high" yaml:"high"`
	Count int     `json:"count" yaml:"count"`
}

// Histogram splits vals into equal-width bins between their minimum and maximum.
func Histogram(vals []float64, bins int) []Bin {
	if len(vals) == 0 {
		return []Bin{}
	}
	if bins <= 0 {
		bins = 1
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if hi == lo {
		return []Bin{{Low: lo, High: lo + 1, Count: len(vals)}}
	}
	width := (hi - lo) / float64(bins)
	out := make([]Bin, bins)
	for i := range out {
		out[i].Low = lo + float64(i)*width
		out[i].High = lo + float64(i+1)*width
	}
	out[bins-1].High = hi
	for _, v := range sorted {
		i := int((v - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		out[i].Count++
	}
	return out
}

// Default bin counts used when a caller passes bins <= 0.
const (
	DefaultAgeBins      = 20
	DefaultDurationBins = 10
)

// AgeHistogram is the distribution of age in days among deaths with a known age.
// bins <= 0 means DefaultAgeBins.
func AgeHistogram(ds *records.Dataset, bins int) []Bin {
	if bins <= 0 {
		bins = DefaultAgeBins
	}
	var vals []float64
	if ds != nil {
		for _, r := range ds.Records {
			if r.IsDeath() && r.AgeDays != nil {
				vals = append(vals, float64(*r.AgeDays))
			}
		}
	}
	return Histogram(vals, bins)
}

// DurationHistogram is the distribution of admission-to-death durations.
// bins <= 0 means DefaultDurationBins.
func DurationHistogram(ds *records.Dataset, bins int) []Bin {
	if bins <= 0 {
		bins = DefaultDurationBins
	}
	durations := DeathDurations(ds)
	vals := make([]float64, len(durations))
	for i, d := range durations {
		vals[i] = float64(d)
	}
	return Histogram(vals, bins)
}
