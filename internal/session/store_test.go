package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/mortality-audit/internal/records"
)

var (
	sep = records.Month{Year: 2025, Month: time.September}
	oct = records.Month{Year: 2025, Month: time.October}
)

func dataset(name string, m records.Month, outcomes ...records.Outcome) *records.Dataset {
	ds := &records.Dataset{Name: name}
	for _, o := range outcomes {
		ds.Records = append(ds.Records, records.Record{Month: m, Outcome: o, PrimaryDiagnosis: records.DiagnosisUnknown})
	}
	return ds
}

func TestStoreLifecycle(t *testing.T) {
	s := New(10, time.Minute)
	st := s.Create()
	require.NotEmpty(t, st.ID)
	assert.Equal(t, 1, s.Len())

	got, err := s.Get(st.ID)
	require.NoError(t, err)
	assert.True(t, errors.Is(got.RequireCurrent(), ErrNoCurrentDataset))

	got.SetDataset(SlotCurrent, dataset("oct.csv", oct, records.OutcomeDead))
	got.RecordUpload(SlotCurrent, Upload{FileName: "oct.csv", Rows: 1, Stored: true})

	// Not visible until saved.
	again, err := s.Get(st.ID)
	require.NoError(t, err)
	assert.Nil(t, again.Current)

	s.Save(got)
	again, err = s.Get(st.ID)
	require.NoError(t, err)
	require.NoError(t, again.RequireCurrent())
	assert.Equal(t, "oct.csv", again.Uploads[SlotCurrent].FileName)

	assert.True(t, s.Delete(st.ID))
	_, err = s.Get(st.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, s.Delete(st.ID))
}

func TestStoreEvictsLeastRecentlyUsed(t *testing.T) {
	var evicted []string
	s := New(2, time.Minute, WithOnEvict(func(id string) { evicted = append(evicted, id) }))
	a := s.Create()
	b := s.Create()
	_, _ = s.Get(a.ID)
	c := s.Create()

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{b.ID}, evicted)
	_, err := s.Get(c.ID)
	assert.NoError(t, err)
}

func TestStoreExpires(t *testing.T) {
	s := New(10, 20*time.Millisecond)
	st := s.Create()
	require.Eventually(t, func() bool {
		_, err := s.Get(st.ID)
		return errors.Is(err, ErrNotFound)
	}, time.Second, 10*time.Millisecond)
}

func TestStateCombinedAndScoped(t *testing.T) {
	st := &State{
		Current:  dataset("oct.csv", oct, records.OutcomeDead, records.OutcomeAlive),
		Previous: dataset("sep.csv", sep, records.OutcomeAlive),
	}
	combined := st.Combined()
	require.Equal(t, 3, combined.Len())
	assert.Equal(t, sep, combined.Records[0].Month, "previous comes first")
	assert.Equal(t, []records.Month{sep, oct}, st.Months())

	st.ChosenMonth = &oct
	assert.Equal(t, 2, st.Scoped().Len())

	st.Previous = nil
	assert.Same(t, st.Current, st.Combined())
}

func TestStateCloneIsIndependent(t *testing.T) {
	st := &State{ID: "x", ChosenMonth: &sep}
	st.RecordUpload(SlotCurrent, Upload{FileName: "a.csv"})

	c := st.Clone()
	c.ChosenMonth.Month = time.December
	c.RecordUpload(SlotPrevious, Upload{FileName: "b.csv"})

	assert.Equal(t, time.September, st.ChosenMonth.Month)
	assert.Len(t, st.Uploads, 1)
}

func TestParseSlot(t *testing.T) {
	s, err := ParseSlot(" Previous ")
	require.NoError(t, err)
	assert.Equal(t, SlotPrevious, s)

	_, err = ParseSlot("next")
	assert.True(t, errors.Is(err, ErrInvalidSlot))
}

func TestStoreUpdateSerializesWriters(t *testing.T) {
	s := New(10, time.Minute)
	st := s.Create()

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(st.ID, func(st *State) error {
				up := st.Uploads[SlotCurrent]
				up.Rows++
				st.RecordUpload(SlotCurrent, up)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.Get(st.ID)
	require.NoError(t, err)
	assert.Equal(t, writers, got.Uploads[SlotCurrent].Rows)
	assert.Empty(t, s.locks.locks, "idle locks are released")
}

func TestStoreUpdateErrors(t *testing.T) {
	s := New(10, time.Minute)
	_, err := s.Update("missing", func(*State) error { return nil })
	assert.True(t, errors.Is(err, ErrNotFound))

	st := s.Create()
	boom := errors.New("boom")
	_, err = s.Update(st.ID, func(st *State) error {
		st.SetDataset(SlotCurrent, dataset("oct.csv", oct, records.OutcomeDead))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	got, err := s.Get(st.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Current, "failed update is not saved")
}

func TestStoreLockBlocksSameSessionOnly(t *testing.T) {
	s := New(10, time.Minute)
	unlockA := s.Lock("a")

	done := make(chan struct{})
	go func() {
		unlock := s.Lock("b")
		unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another session blocked")
	}

	acquired := make(chan struct{})
	go func() {
		unlock := s.Lock("a")
		close(acquired)
		unlock()
	}()
	select {
	case <-acquired:
		t.Fatal("second lock on the same session did not wait")
	case <-time.After(50 * time.Millisecond):
	}
	unlockA()
	unlockA() // releasing twice is harmless
	<-acquired
}

func TestSetDatasetClearsStaleChosenMonth(t *testing.T) {
	st := &State{}
	st.SetDataset(SlotPrevious, dataset("sep.csv", sep, records.OutcomeAlive))
	st.SetDataset(SlotCurrent, dataset("oct.csv", oct, records.OutcomeDead))
	m := sep
	st.ChosenMonth = &m

	st.SetDataset(SlotCurrent, dataset("oct2.csv", oct, records.OutcomeAlive))
	require.NotNil(t, st.ChosenMonth, "month still present in previous")

	st.SetDataset(SlotPrevious, nil)
	assert.Nil(t, st.ChosenMonth)
}
