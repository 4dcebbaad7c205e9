package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/mortality-audit/internal/records"
)

var (
	// ErrNoCurrentDataset indicates an analysis was requested before a current dataset was stored.
	ErrNoCurrentDataset = errors.New("no current dataset: upload and validate the current month first")
	// ErrNotFound indicates the session does not exist or has expired.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidSlot indicates a dataset slot other than current or previous.
	ErrInvalidSlot = errors.New("invalid dataset slot")
)

// Slot names one of the two datasets a session can hold.
type Slot string

const (
	SlotCurrent  Slot = "current"
	SlotPrevious Slot = "previous"
)

// ParseSlot validates a slot name.
func ParseSlot(s string) (Slot, error) {
	switch Slot(strings.ToLower(strings.TrimSpace(s))) {
	case SlotCurrent:
		return SlotCurrent, nil
	case SlotPrevious:
		return SlotPrevious, nil
	}
	return "", fmt.Errorf("%w: %q (use current or previous)", ErrInvalidSlot, s)
}

// Upload records the result of the last upload into a slot.
type Upload struct {
	FileName string            `json:"file_name"`
	Rows     int               `json:"rows"`
	Anchor   string            `json:"anchor,omitempty"`
	Age      records.AgeSource `json:"age_source"`
	Warnings []string          `json:"warnings"`
	Missing  map[string]int    `json:"missing"`
	Stored   bool              `json:"stored"`
	At       time.Time         `json:"at"`
}

// State is everything one dashboard session holds.
type State struct {
	ID          string
	Current     *records.Dataset
	Previous    *records.Dataset
	ChosenMonth *records.Month
	Uploads     map[Slot]Upload
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Dataset returns the dataset held in slot.
func (s *State) Dataset(slot Slot) *records.Dataset {
	if slot == SlotPrevious {
		return s.Previous
	}
	return s.Current
}

// SetDataset replaces the dataset in slot; nil clears it. A chosen month that
// no longer occurs in either dataset is cleared.
func (s *State) SetDataset(slot Slot, ds *records.Dataset) {
	switch slot {
	case SlotCurrent:
		s.Current = ds
	case SlotPrevious:
		s.Previous = ds
	}
	if s.ChosenMonth != nil && !s.hasMonth(*s.ChosenMonth) {
		s.ChosenMonth = nil
	}
}

func (s *State) hasMonth(m records.Month) bool {
	for _, x := range s.Months() {
		if x == m {
			return true
		}
	}
	return false
}

// RecordUpload remembers the upload whose dataset is stored in slot.
func (s *State) RecordUpload(slot Slot, u Upload) {
	if s.Uploads == nil {
		s.Uploads = map[Slot]Upload{}
	}
	s.Uploads[slot] = u
}

// RequireCurrent fails with ErrNoCurrentDataset until a current dataset is stored.
func (s *State) RequireCurrent() error {
	if s == nil || s.Current == nil {
		return ErrNoCurrentDataset
	}
	return nil
}

// Combined returns previous followed by current, or current alone.
func (s *State) Combined() *records.Dataset {
	if s.Previous == nil {
		return s.Current
	}
	return records.Concat(s.Previous, s.Current)
}

// Scoped is Combined restricted to the chosen month, when one is set.
func (s *State) Scoped() *records.Dataset {
	ds := s.Combined()
	if s.ChosenMonth == nil || s.ChosenMonth.IsZero() {
		return ds
	}
	return ds.InMonth(*s.ChosenMonth)
}

// Months lists the distinct months across both datasets.
func (s *State) Months() []records.Month {
	return records.Concat(s.Previous, s.Current).Months()
}

// Clone returns a copy that can be modified without affecting s. Datasets are
// shared because they are never modified after normalization.
func (s *State) Clone() *State {
	c := *s
	if s.ChosenMonth != nil {
		m := *s.ChosenMonth
		c.ChosenMonth = &m
	}
	if s.Uploads != nil {
		c.Uploads = make(map[Slot]Upload, len(s.Uploads))
		for k, v := range s.Uploads {
			c.Uploads[k] = v
		}
	}
	return &c
}
