package records

import (
	"sort"
	"time"
)

// Recognized column names. Matching is exact after trimming whitespace.
const (
	ColPatientID        = "patient_id"
	ColInitials         = "initials"
	ColSex              = "sex"
	ColAge              = "age"
	ColAgeDays          = "age_days"
	ColAgeMonths        = "age_months"
	ColAgeYears         = "age_years"
	ColWard             = "ward"
	ColAdmissionDate    = "admission_date"
	ColDischargeDate    = "discharge_date"
	ColDeathDate        = "death_date"
	ColOutcome          = "outcome"
	ColPrimaryDiagnosis = "primary_diagnosis"
	ColNotes            = "Notes"
)

// MinimalColumns lists the columns of which at least one must be present.
var MinimalColumns = []string{ColAdmissionDate, ColOutcome, ColPrimaryDiagnosis}

// DiagnosisAliases are tried in order when primary_diagnosis is absent.
var DiagnosisAliases = []string{"diagnosis", "dx", "primary_dx"}

// DiagnosisUnknown fills primary_diagnosis when no diagnosis column exists.
const DiagnosisUnknown = "UNKNOWN"

// Record is one normalized admission.
type Record struct {
	PatientID        string     `json:"patient_id,omitempty" yaml:"patient_id,omitempty"`
	Initials         string     `json:"initials,omitempty" yaml:"initials,omitempty"`
	Ward             string     `json:"ward,omitempty" yaml:"ward,omitempty"`
	Sex              Sex        `json:"sex_norm" yaml:"sex_norm"`
	AgeDays          *int       `json:"age_days" yaml:"age_days"`
	Outcome          Outcome    `json:"outcome_norm" yaml:"outcome_norm"`
	PrimaryDiagnosis string     `json:"primary_diagnosis" yaml:"primary_diagnosis"`
	AdmissionDate    *time.Time `json:"admission_date,omitempty" yaml:"admission_date,omitempty"`
	DischargeDate    *time.Time `json:"discharge_date,omitempty" yaml:"discharge_date,omitempty"`
	DeathDate        *time.Time `json:"death_date,omitempty" yaml:"death_date,omitempty"`
	Month            Month      `json:"month" yaml:"month"`
	Notes            string     `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// IsDeath reports whether the normalized outcome is Dead.
func (r Record) IsDeath() bool { return r.Outcome == OutcomeDead }

// Dataset is an ordered, immutable sequence of normalized records from one upload.
type Dataset struct {
	Name       string    `json:"name"`
	Anchor     string    `json:"anchor,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
	Records    []Record  `json:"records"`
}

// Len returns the number of records; a nil dataset is empty.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Months returns the distinct known months in chronological order.
func (d *Dataset) Months() []Month {
	if d == nil {
		return nil
	}
	seen := map[Month]struct{}{}
	out := []Month{}
	for _, r := range d.Records {
		if r.Month.IsZero() {
			continue
		}
		if _, ok := seen[r.Month]; ok {
			continue
		}
		seen[r.Month] = struct{}{}
		out = append(out, r.Month)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Filter returns a new dataset holding the records for which keep is true.
func (d *Dataset) Filter(keep func(Record) bool) *Dataset {
	out := &Dataset{}
	if d == nil {
		return out
	}
	out.Name, out.Anchor, out.UploadedAt = d.Name, d.Anchor, d.UploadedAt
	for _, r := range d.Records {
		if keep(r) {
			out.Records = append(out.Records, r)
		}
	}
	return out
}

// InMonth returns the records bucketed into m.
func (d *Dataset) InMonth(m Month) *Dataset {
	return d.Filter(func(r Record) bool { return r.Month == m })
}

// Deaths returns the records whose outcome is Dead.
func (d *Dataset) Deaths() *Dataset {
	return d.Filter(Record.IsDeath)
}

// Concat joins datasets in order, skipping nils. The result shares no slice with its inputs.
func Concat(datasets ...*Dataset) *Dataset {
	out := &Dataset{Name: "combined"}
	for _, d := range datasets {
		if d == nil {
			continue
		}
		out.Records = append(out.Records, d.Records...)
	}
	return out
}
