package records

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2025-09-01", "2025-09-01", true},
		{" 2025-09-01 14:30 ", "2025-09-01", true},
		{"2025/9/4", "2025-09-04", true},
		{"09/04/2025", "2025-09-04", true},
		{"25/09/2025", "2025-09-25", true},
		{"4 Sep 2025", "2025-09-04", true},
		{"45901", "2025-09-01", true},
		{"12", "", false},
		{"0000-00-00", "", false},
		{"", "", false},
		{"soon", "", false},
	}
	for _, c := range cases {
		got, ok := ParseDate(c.in)
		if !assert.Equal(t, c.ok, ok, "input %q", c.in) || !ok {
			continue
		}
		assert.Equal(t, c.want, got.Format("2006-01-02"), "input %q", c.in)
	}
}

func TestParseNumber(t *testing.T) {
	v, ok := ParseNumber("1,5")
	require.True(t, ok)
	assert.Equal(t, 1.5, v)

	_, ok = ParseNumber("1,000.5")
	assert.False(t, ok)
	_, ok = ParseNumber("NaN")
	assert.False(t, ok)
	_, ok = ParseNumber(" ")
	assert.False(t, ok)
}

func TestMedian(t *testing.T) {
	vals := []float64{9, 1, 5, 3}
	assert.Equal(t, 4.0, median(vals))
	assert.Equal(t, []float64{9, 1, 5, 3}, vals)
	assert.Equal(t, 0.0, median(nil))
}

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2025-10")
	require.NoError(t, err)
	assert.Equal(t, Month{Year: 2025, Month: time.October}, m)
	assert.Equal(t, "2025-10", m.String())

	m, err = ParseMonth("Sep 2025")
	require.NoError(t, err)
	assert.Equal(t, "2025-09", m.String())

	_, err = ParseMonth("October")
	assert.True(t, errors.Is(err, ErrInvalidMonth))
}

func TestMonthOrderingAndText(t *testing.T) {
	a := Month{Year: 2024, Month: time.December}
	b := Month{Year: 2025, Month: time.January}
	assert.True(t, a.Before(b))
	assert.False(t, b.Before(a))
	assert.Equal(t, "", Month{}.String())

	data, err := json.Marshal(struct {
		M Month `json:"m"`
	}{b})
	require.NoError(t, err)
	assert.JSONEq(t, `{"m":"2025-01"}`, string(data))

	var back Month
	require.NoError(t, back.UnmarshalText([]byte("2025-01")))
	assert.Equal(t, b, back)
}

func TestDatasetMonthsAndConcat(t *testing.T) {
	sep := Month{Year: 2025, Month: time.September}
	oct := Month{Year: 2025, Month: time.October}
	prev := &Dataset{Name: "prev", Records: []Record{{Month: oct, Outcome: OutcomeDead}, {}}}
	cur := &Dataset{Name: "cur", Records: []Record{{Month: sep, Outcome: OutcomeAlive}, {Month: oct}}}

	all := Concat(prev, nil, cur)
	assert.Equal(t, "combined", all.Name)
	assert.Equal(t, 4, all.Len())
	assert.Equal(t, []Month{sep, oct}, all.Months())
	assert.Equal(t, 2, all.InMonth(oct).Len())
	assert.Equal(t, 1, all.Deaths().Len())

	all.Records[0].Outcome = OutcomeAlive
	assert.Equal(t, OutcomeDead, prev.Records[0].Outcome)

	var none *Dataset
	assert.Equal(t, 0, none.Len())
	assert.Nil(t, none.Months())
}
