package records

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/KaramelBytes/mortality-audit/internal/ingest"
)

// ErrMissingMinimalColumns is the only fatal normalization error.
var ErrMissingMinimalColumns = errors.New("file must contain at least one of the minimal columns: admission_date, outcome, primary_diagnosis")

// maxAgeDays bounds derived ages; larger values are treated as unknown.
const maxAgeDays = math.MaxInt32

// Field is an optional raw cell; Present is false when the column does not exist.
type Field struct {
	Value   string
	Present bool
}

// RawRecord is one uploaded row projected onto the recognized columns.
type RawRecord struct {
	PatientID     Field
	Initials      Field
	Sex           Field
	Ward          Field
	Age           Field
	AgeDays       Field
	AgeMonths     Field
	AgeYears      Field
	AdmissionDate Field
	DischargeDate Field
	DeathDate     Field
	Outcome       Field
	Diagnosis     Field
	Notes         Field
}

// Columns holds the header index of each recognized column, -1 when absent.
type Columns struct {
	PatientID, Initials, Sex, Ward          int
	Age, AgeDays, AgeMonths, AgeYears       int
	AdmissionDate, DischargeDate, DeathDate int
	Outcome, Diagnosis, Notes               int
	// DiagnosisColumn names the column feeding primary_diagnosis.
	DiagnosisColumn string
}

// DetectColumns resolves recognized columns from a table header by exact name after trimming.
func DetectColumns(t *ingest.Table) Columns {
	find := func(name string) int {
		i, _ := t.Column(name)
		return i
	}
	c := Columns{
		PatientID:     find(ColPatientID),
		Initials:      find(ColInitials),
		Sex:           find(ColSex),
		Ward:          find(ColWard),
		Age:           find(ColAge),
		AgeDays:       find(ColAgeDays),
		AgeMonths:     find(ColAgeMonths),
		AgeYears:      find(ColAgeYears),
		AdmissionDate: find(ColAdmissionDate),
		DischargeDate: find(ColDischargeDate),
		DeathDate:     find(ColDeathDate),
		Outcome:       find(ColOutcome),
		Diagnosis:     find(ColPrimaryDiagnosis),
		Notes:         find(ColNotes),
	}
	if c.Diagnosis >= 0 {
		c.DiagnosisColumn = ColPrimaryDiagnosis
	} else {
		for _, alt := range DiagnosisAliases {
			if i := find(alt); i >= 0 {
				c.Diagnosis, c.DiagnosisColumn = i, alt
				break
			}
		}
	}
	return c
}

// HasMinimal reports whether any minimal column is present.
func (c Columns) HasMinimal() bool {
	return c.AdmissionDate >= 0 || c.Outcome >= 0 || (c.Diagnosis >= 0 && c.DiagnosisColumn == ColPrimaryDiagnosis)
}

// Raw projects data row i of t onto the recognized columns.
func (c Columns) Raw(t *ingest.Table, i int) RawRecord {
	f := func(col int) Field {
		if col < 0 {
			return Field{}
		}
		return Field{Value: t.Value(i, col), Present: true}
	}
	return RawRecord{
		PatientID:     f(c.PatientID),
		Initials:      f(c.Initials),
		Sex:           f(c.Sex),
		Ward:          f(c.Ward),
		Age:           f(c.Age),
		AgeDays:       f(c.AgeDays),
		AgeMonths:     f(c.AgeMonths),
		AgeYears:      f(c.AgeYears),
		AdmissionDate: f(c.AdmissionDate),
		DischargeDate: f(c.DischargeDate),
		DeathDate:     f(c.DeathDate),
		Outcome:       f(c.Outcome),
		Diagnosis:     f(c.Diagnosis),
		Notes:         f(c.Notes),
	}
}

// AgeSource is the single age derivation path chosen for a dataset.
type AgeSource struct {
	Column string  `json:"column"`
	Factor float64 `json:"factor"`
}

// Known reports whether any age column is used.
func (a AgeSource) Known() bool { return a.Column != "" }

func (a AgeSource) field(r RawRecord) Field {
	switch a.Column {
	case ColAgeDays:
		return r.AgeDays
	case ColAge:
		return r.Age
	case ColAgeMonths:
		return r.AgeMonths
	case ColAgeYears:
		return r.AgeYears
	}
	return Field{}
}

// Plan carries the dataset-wide decisions applied to every row.
type Plan struct {
	Age    AgeSource
	Anchor string
}

// ToRecord maps a raw row to a normalized record under plan. It is pure.
func ToRecord(raw RawRecord, plan Plan) Record {
	rec := Record{
		PatientID:        raw.PatientID.Value,
		Initials:         raw.Initials.Value,
		Ward:             raw.Ward.Value,
		Notes:            raw.Notes.Value,
		Sex:              SexUnknown,
		Outcome:          OutcomeUnknown,
		PrimaryDiagnosis: DiagnosisUnknown,
	}
	if raw.Sex.Present {
		rec.Sex = NormalizeSex(raw.Sex.Value)
	}
	if raw.Outcome.Present {
		rec.Outcome = NormalizeOutcome(raw.Outcome.Value)
	}
	if raw.Diagnosis.Present && raw.Diagnosis.Value != "" {
		rec.PrimaryDiagnosis = raw.Diagnosis.Value
	}
	if plan.Age.Known() {
		if v, ok := ParseNumber(plan.Age.field(raw).Value); ok {
			d := math.RoundToEven(v * plan.Age.Factor)
			if d >= 0 && d <= maxAgeDays {
				days := int(d)
				rec.AgeDays = &days
			}
		}
	}
	rec.AdmissionDate = datePtr(raw.AdmissionDate)
	rec.DischargeDate = datePtr(raw.DischargeDate)
	rec.DeathDate = datePtr(raw.DeathDate)
	switch plan.Anchor {
	case ColAdmissionDate:
		if rec.AdmissionDate != nil {
			rec.Month = MonthOf(*rec.AdmissionDate)
		}
	case ColDeathDate:
		if rec.DeathDate != nil {
			rec.Month = MonthOf(*rec.DeathDate)
		}
	}
	return rec
}

// Result is the outcome of normalizing one table. Dataset is nil when Errors is non-empty.
type Result struct {
	Dataset  *Dataset
	Errors   []error
	Warnings []string
	// Missing counts records whose canonical field is unknown.
	Missing map[string]int
	Anchor  string
	Age     AgeSource
}

// Err joins the fatal errors, or returns nil.
func (r Result) Err() error { return errors.Join(r.Errors...) }

// Normalize derives canonical fields from a raw table. Problems other than a
// missing minimal column become warnings and processing continues.
func Normalize(t *ingest.Table) Result {
	var res Result
	cols := DetectColumns(t)
	if !cols.HasMinimal() {
		res.Errors = append(res.Errors, ErrMissingMinimalColumns)
		return res
	}
	raws := make([]RawRecord, len(t.Rows))
	for i := range t.Rows {
		raws[i] = cols.Raw(t, i)
	}

	var plan Plan
	var ageWarn string
	plan.Age, ageWarn = chooseAgeSource(cols, raws)
	if ageWarn != "" {
		res.Warnings = append(res.Warnings, ageWarn)
	}
	if cols.Sex < 0 {
		res.Warnings = append(res.Warnings, "No sex column found; sex_norm set to Unknown")
	}
	if cols.Outcome < 0 {
		res.Warnings = append(res.Warnings, "No outcome column found; outcome_norm set to Unknown. Please add outcome (Alive/Dead)")
	}
	switch {
	case cols.DiagnosisColumn == "":
		res.Warnings = append(res.Warnings, "No primary_diagnosis found; filled as UNKNOWN")
	case cols.DiagnosisColumn != ColPrimaryDiagnosis:
		res.Warnings = append(res.Warnings, fmt.Sprintf("Mapped diagnosis column '%s' to primary_diagnosis", cols.DiagnosisColumn))
	}
	plan.Anchor = chooseAnchor(raws)
	if plan.Anchor == "" {
		res.Warnings = append(res.Warnings, "No usable date to derive month")
	}

	ds := &Dataset{Name: t.Name, Anchor: plan.Anchor, Records: make([]Record, len(raws))}
	for i, raw := range raws {
		ds.Records[i] = ToRecord(raw, plan)
	}
	res.Dataset = ds
	res.Anchor = plan.Anchor
	res.Age = plan.Age
	res.Missing = missingReport(ds)
	return res
}

// chooseAgeSource applies age_days > age > age_months > age_years. A bare age
// column is read as days, months or years from its median (<=30, <100, else).
func chooseAgeSource(cols Columns, raws []RawRecord) (AgeSource, string) {
	const noAge = "No recognizable age columns found (age_days, age, age_months, age_years)"
	switch {
	case cols.AgeDays >= 0:
		return AgeSource{Column: ColAgeDays, Factor: 1}, ""
	case cols.Age >= 0:
		var sample []float64
		for _, r := range raws {
			if v, ok := ParseNumber(r.Age.Value); ok {
				sample = append(sample, v)
			}
		}
		if len(sample) == 0 {
			return AgeSource{}, noAge
		}
		switch m := median(sample); {
		case m <= 30:
			return AgeSource{Column: ColAge, Factor: 1}, ""
		case m < 100:
			return AgeSource{Column: ColAge, Factor: 30}, ""
		default:
			return AgeSource{Column: ColAge, Factor: 365}, ""
		}
	case cols.AgeMonths >= 0:
		return AgeSource{Column: ColAgeMonths, Factor: 30}, ""
	case cols.AgeYears >= 0:
		return AgeSource{Column: ColAgeYears, Factor: 365}, ""
	}
	return AgeSource{}, noAge
}

// chooseAnchor picks admission_date when any value parses, else death_date.
func chooseAnchor(raws []RawRecord) string {
	anyParses := func(get func(RawRecord) Field) bool {
		for _, r := range raws {
			if f := get(r); f.Present {
				if _, ok := ParseDate(f.Value); ok {
					return true
				}
			}
		}
		return false
	}
	if anyParses(func(r RawRecord) Field { return r.AdmissionDate }) {
		return ColAdmissionDate
	}
	if anyParses(func(r RawRecord) Field { return r.DeathDate }) {
		return ColDeathDate
	}
	return ""
}

func missingReport(ds *Dataset) map[string]int {
	m := map[string]int{
		ColPatientID:        0,
		"sex_norm":          0,
		ColAgeDays:          0,
		"outcome_norm":      0,
		ColPrimaryDiagnosis: 0,
		ColAdmissionDate:    0,
		ColDischargeDate:    0,
		ColDeathDate:        0,
		"month":             0,
	}
	for _, r := range ds.Records {
		if r.PatientID == "" {
			m[ColPatientID]++
		}
		if r.Sex == SexUnknown {
			m["sex_norm"]++
		}
		if r.AgeDays == nil {
			m[ColAgeDays]++
		}
		if r.Outcome == OutcomeUnknown {
			m["outcome_norm"]++
		}
		if r.PrimaryDiagnosis == DiagnosisUnknown {
			m[ColPrimaryDiagnosis]++
		}
		if r.AdmissionDate == nil {
			m[ColAdmissionDate]++
		}
		if r.DischargeDate == nil {
			m[ColDischargeDate]++
		}
		if r.DeathDate == nil {
			m[ColDeathDate]++
		}
		if r.Month.IsZero() {
			m["month"]++
		}
	}
	return m
}

func datePtr(f Field) *time.Time {
	if !f.Present {
		return nil
	}
	t, ok := ParseDate(f.Value)
	if !ok {
		return nil
	}
	return &t
}
