package dashboard

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KaramelBytes/mortality-audit/internal/analysis"
	"github.com/KaramelBytes/mortality-audit/internal/ingest"
	"github.com/KaramelBytes/mortality-audit/internal/records"
	"github.com/KaramelBytes/mortality-audit/internal/session"
)

var slotLabels = map[session.Slot]string{session.SlotCurrent: "Current", session.SlotPrevious: "Previous"}

type datasetView struct {
	Name       string          `json:"name"`
	Records    int             `json:"records"`
	Anchor     string          `json:"anchor,omitempty"`
	Months     []records.Month `json:"months"`
	UploadedAt time.Time       `json:"uploaded_at"`
}

type sessionView struct {
	ID          string                          `json:"id"`
	Current     *datasetView                    `json:"current"`
	Previous    *datasetView                    `json:"previous"`
	ChosenMonth string                          `json:"chosen_month,omitempty"`
	Months      []records.Month                 `json:"months"`
	Uploads     map[session.Slot]session.Upload `json:"uploads"`
}

type previewView struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

type uploadResponse struct {
	Slot session.Slot `json:"slot"`
	session.Upload
	Months  []records.Month `json:"months"`
	Preview previewView     `json:"preview"`
}

func viewDataset(ds *records.Dataset) *datasetView {
	if ds == nil {
		return nil
	}
	return &datasetView{Name: ds.Name, Records: ds.Len(), Anchor: ds.Anchor, Months: ds.Months(), UploadedAt: ds.UploadedAt}
}

func viewSession(st *session.State) sessionView {
	v := sessionView{
		ID:       st.ID,
		Current:  viewDataset(st.Current),
		Previous: viewDataset(st.Previous),
		Months:   st.Months(),
		Uploads:  st.Uploads,
	}
	if st.ChosenMonth != nil {
		v.ChosenMonth = st.ChosenMonth.String()
	}
	if v.Uploads == nil {
		v.Uploads = map[session.Slot]session.Upload{}
	}
	return v
}

func requestLog(c *gin.Context) *zap.Logger {
	if l, ok := c.Get(ctxLogger); ok {
		return l.(*zap.Logger)
	}
	return zap.NewNop()
}

func (s *Server) handleSample(c *gin.Context) {
	data, err := records.SampleCSV()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", records.SampleFileName))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

func (s *Server) handleGetSession(c *gin.Context) {
	respondOK(c, viewSession(currentSession(c)))
}

func (s *Server) handleResetSession(c *gin.Context) {
	st := currentSession(c)
	s.sessions.Delete(st.ID)
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	respondMessage(c, gin.H{"id": st.ID}, "session cleared")
}

// handleUpload ingests and normalizes one file into a slot. With store=false
// the file is only validated.
func (s *Server) handleUpload(c *gin.Context) {
	slot, err := session.ParseSlot(c.Param("slot"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.UploadMaxBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondServiceError(c, err)
			return
		}
		respondError(c, http.StatusBadRequest, "", "multipart field \"file\" is required")
		return
	}
	store := true
	raw := c.Query("store")
	if raw == "" {
		raw = c.PostForm("store")
	}
	if raw != "" {
		if store, err = strconv.ParseBool(raw); err != nil {
			respondError(c, http.StatusBadRequest, "", "store must be true or false")
			return
		}
	}

	log := requestLog(c).With(zap.String("slot", string(slot)), zap.String("file", fh.Filename))
	f, err := fh.Open()
	if err != nil {
		respondServiceError(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer f.Close()

	tab, err := ingest.Read(fh.Filename, f, ingest.Options{MaxRows: s.cfg.MaxRows})
	if err != nil {
		s.metrics.UploadsTotal.WithLabelValues(string(slot), "unreadable").Inc()
		log.Warn("upload unreadable", zap.Error(err))
		if errors.Is(err, ingest.ErrUnsupported) || errors.Is(err, ingest.ErrTooManyRows) || errors.Is(err, ingest.ErrEmpty) {
			respondServiceError(c, err)
			return
		}
		respondError(c, http.StatusBadRequest, CodeUnreadable, "error reading file: "+err.Error())
		return
	}

	res := records.Normalize(tab)
	if err := res.Err(); err != nil {
		s.metrics.UploadsTotal.WithLabelValues(string(slot), "rejected").Inc()
		log.Warn("upload failed validation", zap.Error(err))
		respondServiceError(c, err)
		return
	}
	ds := res.Dataset
	ds.UploadedAt = s.now().UTC()

	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	up := session.Upload{
		FileName: fh.Filename,
		Rows:     ds.Len(),
		Anchor:   res.Anchor,
		Age:      res.Age,
		Warnings: warnings,
		Missing:  res.Missing,
		Stored:   store,
		At:       ds.UploadedAt,
	}
	st := currentSession(c)
	result := "validated"
	if store {
		st.SetDataset(slot, ds)
		st.RecordUpload(slot, up)
		result = "stored"
	}
	s.sessions.Save(st)

	s.metrics.UploadsTotal.WithLabelValues(string(slot), result).Inc()
	s.metrics.UploadRows.Observe(float64(ds.Len()))
	s.metrics.NormalizeWarnings.WithLabelValues(string(slot)).Add(float64(len(res.Warnings)))
	log.Info("upload validated", zap.Int("rows", ds.Len()), zap.Int("warnings", len(res.Warnings)), zap.Bool("stored", store))

	msg := fmt.Sprintf("%s month data validated", slotLabels[slot])
	if store {
		msg += " and stored in session"
	}
	respondMessage(c, uploadResponse{
		Slot:    slot,
		Upload:  up,
		Months:  ds.Months(),
		Preview: previewView{Header: tab.Header, Rows: tab.Head(s.cfg.PreviewRows)},
	}, msg)
}

func (s *Server) handleDeleteDataset(c *gin.Context) {
	slot, err := session.ParseSlot(c.Param("slot"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	st := currentSession(c)
	st.SetDataset(slot, nil)
	delete(st.Uploads, slot)
	s.sessions.Save(st)
	respondOK(c, viewSession(st))
}

func (s *Server) handleMonths(c *gin.Context) {
	st := currentSession(c)
	if err := st.RequireCurrent(); err != nil {
		respondServiceError(c, err)
		return
	}
	v := viewSession(st)
	respondOK(c, gin.H{"months": v.Months, "chosen_month": v.ChosenMonth})
}

type setMonthRequest struct {
	Month string `json:"month"`
}

// handleSetMonth selects the month every scoped view is restricted to; an
// empty month clears the selection.
func (s *Server) handleSetMonth(c *gin.Context) {
	st := currentSession(c)
	if err := st.RequireCurrent(); err != nil {
		respondServiceError(c, err)
		return
	}
	var req setMonthRequest
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Month) == "" {
		st.ChosenMonth = nil
	} else {
		m, err := records.ParseMonth(req.Month)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		if !containsMonth(st.Months(), m) {
			respondServiceError(c, fmt.Errorf("%w: %s", analysis.ErrMonthNotFound, m))
			return
		}
		st.ChosenMonth = &m
	}
	s.sessions.Save(st)
	respondOK(c, viewSession(st))
}

func containsMonth(ms []records.Month, m records.Month) bool {
	for _, x := range ms {
		if x == m {
			return true
		}
	}
	return false
}

type summaryView struct {
	ChosenMonth       string                      `json:"chosen_month,omitempty"`
	Totals            analysis.Totals             `json:"totals"`
	Monthly           []analysis.MonthSummary     `json:"monthly"`
	LatestChange      *analysis.Comparison        `json:"latest_change"`
	DatasetComparison *analysis.DatasetComparison `json:"dataset_comparison"`
	DeathCauses       []analysis.CategoryCount    `json:"death_causes"`
}

// handleSummary serves the monthly mortality overview.
func (s *Server) handleSummary(c *gin.Context) {
	st := currentSession(c)
	if err := st.RequireCurrent(); err != nil {
		respondServiceError(c, err)
		return
	}
	scoped := st.Scoped()
	v := summaryView{
		Totals:      analysis.TotalsOf(scoped),
		Monthly:     analysis.MonthlySummary(st.Combined()),
		DeathCauses: analysis.DeathCauses(scoped),
	}
	if st.ChosenMonth != nil {
		v.ChosenMonth = st.ChosenMonth.String()
	}
	if cmp, ok := analysis.LatestChange(v.Monthly); ok {
		v.LatestChange = &cmp
	}
	if st.Previous != nil {
		dc := analysis.CompareDatasets(st.Current, st.Previous)
		v.DatasetComparison = &dc
	}
	respondOK(c, v)
}

// handleCompare compares two months; a and b default to the first two months.
func (s *Server) handleCompare(c *gin.Context) {
	st := currentSession(c)
	if err := st.RequireCurrent(); err != nil {
		respondServiceError(c, err)
		return
	}
	combined := st.Combined()
	months := combined.Months()
	if len(months) < 2 {
		respondServiceError(c, fmt.Errorf("%w: found %d", analysis.ErrInsufficientMonths, len(months)))
		return
	}
	a, b := months[0], months[1]
	for _, q := range []struct {
		key string
		dst *records.Month
	}{{"a", &a}, {"b", &b}} {
		if raw := c.Query(q.key); raw != "" {
			m, err := records.ParseMonth(raw)
			if err != nil {
				respondServiceError(c, err)
				return
			}
			*q.dst = m
		}
	}
	cmp, err := analysis.CompareMonths(combined, a, b)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"comparison": cmp, "trend": analysis.MonthlySummary(combined), "direction": direction(cmp.RateDelta)})
}

func direction(delta float64) string {
	switch {
	case delta > 0:
		return "increased"
	case delta < 0:
		return "decreased"
	default:
		return "unchanged"
	}
}

func (s *Server) handleDiagnoses(c *gin.Context) {
	st := currentSession(c)
	if err := st.RequireCurrent(); err != nil {
		respondServiceError(c, err)
		return
	}
	scoped := st.Scoped()
	respondOK(c, gin.H{
		"diagnoses":    analysis.DiagnosisCounts(scoped),
		"death_causes": analysis.DeathCauses(scoped),
	})
}

func (s *Server) handleAgeGroups(c *gin.Context) {
	st := currentSession(c)
	if err := st.RequireCurrent(); err != nil {
		respondServiceError(c, err)
		return
	}
	scoped := st.Scoped()
	respondOK(c, gin.H{
		"age_groups": analysis.AgeGroupDeathCounts(scoped),
		"histogram":  analysis.AgeHistogram(scoped, s.cfg.HistogramBins),
	})
}

func (s *Server) handleTrend(c *gin.Context) {
	st := currentSession(c)
	if err := st.RequireCurrent(); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"trend": analysis.MonthlyDiagnosisTrend(st.Scoped())})
}

func (s *Server) handleDeaths(c *gin.Context) {
	st := currentSession(c)
	if err := st.RequireCurrent(); err != nil {
		respondServiceError(c, err)
		return
	}
	scoped := st.Scoped()
	respondOK(c, gin.H{
		"particulars":        analysis.Particulars(scoped),
		"durations":          analysis.DeathDurations(scoped),
		"duration_histogram": analysis.DurationHistogram(scoped, s.cfg.DurationBins),
	})
}

var reportContentTypes = map[string]string{
	"markdown": "text/markdown; charset=utf-8",
	"md":       "text/markdown; charset=utf-8",
	"json":     "application/json; charset=utf-8",
	"yaml":     "application/yaml; charset=utf-8",
	"yml":      "application/yaml; charset=utf-8",
}

func (s *Server) handleReport(c *gin.Context) {
	st := currentSession(c)
	if err := st.RequireCurrent(); err != nil {
		respondServiceError(c, err)
		return
	}
	format := strings.ToLower(strings.TrimSpace(c.Query("format")))
	if format == "" {
		format = "markdown"
	}
	var warnings []string
	for _, slot := range []session.Slot{session.SlotPrevious, session.SlotCurrent} {
		if up, ok := st.Uploads[slot]; ok {
			for _, w := range up.Warnings {
				warnings = append(warnings, fmt.Sprintf("%s: %s", slot, w))
			}
		}
	}
	rep := analysis.BuildReport(st.Current, st.Previous, analysis.Options{
		Month:         st.ChosenMonth,
		HistogramBins: s.cfg.HistogramBins,
		DurationBins:  s.cfg.DurationBins,
		Warnings:      warnings,
	})
	body, err := rep.Encode(format)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	s.metrics.ReportsTotal.WithLabelValues(format).Inc()
	c.Data(http.StatusOK, reportContentTypes[format], body)
}
