package records

import (
	"bytes"

	"github.com/KaramelBytes/mortality-audit/internal/ingest"
)

// SampleFileName is the download name of the template.
const SampleFileName = "mortality_sample.csv"

var sampleHeader = []string{
	ColPatientID, ColInitials, ColSex, ColAgeDays, ColWard, ColAdmissionDate, ColDischargeDate,
	ColOutcome, ColDeathDate, ColPrimaryDiagnosis, ColNotes, ColAgeMonths,
}

var sampleRows = [][]string{
	{"45991", "J.M.M", "M", "10", "NBU", "2025-09-01", "0000-00-00", "Dead", "2025-09-04", "Neonatal Sepsis", "SP puncture done", ""},
	{"46781", "D.S.J", "F", "", "Pediatrics", "2025-09-02", "2025-09-09", "Alive", "2025-09-04", "Severe Pneumonia", "Counseled on danger signs", "10"},
}

// SampleTable returns the two-row template covering every recognized column:
// one death and one survival, one neonate aged in days and one infant aged in months.
func SampleTable() *ingest.Table {
	return ingest.NewTable(SampleFileName, sampleHeader, sampleRows)
}

// SampleCSV encodes SampleTable as CSV bytes.
func SampleCSV() ([]byte, error) {
	var buf bytes.Buffer
	if err := ingest.WriteCSV(&buf, SampleTable()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
