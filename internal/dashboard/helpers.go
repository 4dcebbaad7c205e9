package dashboard

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KaramelBytes/mortality-audit/internal/analysis"
	"github.com/KaramelBytes/mortality-audit/internal/ingest"
	"github.com/KaramelBytes/mortality-audit/internal/records"
	"github.com/KaramelBytes/mortality-audit/internal/session"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodePrecondition     = "precondition_failed"
	CodeInsufficientData = "insufficient_data"
	CodeValidation       = "validation_failed"
	CodeUnsupported      = "unsupported_format"
	CodeUnreadable       = "unreadable_file"
	CodeTooLarge         = "too_large"
	CodeUnknownMonth     = "unknown_month"
	CodeRateLimited      = "rate_limited"
)

type APIResponse[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code,omitempty"`
	Details []string `json:"details,omitempty"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse[any]{Data: data})
}

func respondMessage(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, APIResponse[any]{Data: data, Message: message})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{Error: message, Code: code})
}

// respondServiceError maps domain errors to HTTP statuses.
func respondServiceError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, session.ErrNoCurrentDataset):
		respondError(c, http.StatusConflict, CodePrecondition, err.Error())

	case errors.Is(err, analysis.ErrInsufficientMonths):
		respondError(c, http.StatusUnprocessableEntity, CodeInsufficientData, err.Error())

	case errors.Is(err, analysis.ErrMonthNotFound):
		respondError(c, http.StatusUnprocessableEntity, CodeUnknownMonth, err.Error())

	case errors.Is(err, records.ErrMissingMinimalColumns):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Code:    CodeValidation,
			Details: errorStrings(err),
		})

	case errors.Is(err, ingest.ErrUnsupported):
		respondError(c, http.StatusUnsupportedMediaType, CodeUnsupported, err.Error())

	case errors.As(err, &tooLarge), errors.Is(err, ingest.ErrTooManyRows):
		respondError(c, http.StatusRequestEntityTooLarge, CodeTooLarge, err.Error())

	case errors.Is(err, ingest.ErrEmpty):
		respondError(c, http.StatusBadRequest, CodeUnreadable, err.Error())

	case errors.Is(err, records.ErrInvalidMonth),
		errors.Is(err, session.ErrInvalidSlot),
		errors.Is(err, analysis.ErrUnknownFormat):
		respondError(c, http.StatusBadRequest, "", err.Error())

	default:
		if l, ok := c.Get(ctxLogger); ok {
			l.(*zap.Logger).Error("request failed", zap.Error(err))
		}
		respondError(c, http.StatusInternalServerError, "", "internal server error")
	}
}

// errorStrings flattens a joined error into its messages.
func errorStrings(err error) []string {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range j.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		respondError(c, http.StatusBadRequest, "", "invalid request: "+err.Error())
		return false
	}
	return true
}
