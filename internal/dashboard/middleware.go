package dashboard

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/KaramelBytes/mortality-audit/internal/metrics"
	"github.com/KaramelBytes/mortality-audit/internal/session"
)

const (
	ctxRequestID = "request_id"
	ctxSession   = "session"
	ctxLogger    = "logger"

	headerRequestID = "X-Request-ID"
	// SessionCookie carries the dashboard session ID.
	SessionCookie = "mortaudit_session"
)

// requestID tags each request with an X-Request-ID, reusing the caller's when present.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// securityHeaders adds the response headers a browser-facing dashboard needs.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

// requestLogger writes one structured entry per request and exposes a
// request-scoped logger to handlers.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqLog := log.With(zap.String("request_id", c.GetString(ctxRequestID)))
		c.Set(ctxLogger, reqLog)

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if st, ok := c.Get(ctxSession); ok {
			fields = append(fields, zap.String("session_id", st.(*session.State).ID))
		}
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			reqLog.Error("request", fields...)
		case status >= http.StatusBadRequest:
			reqLog.Warn("request", fields...)
		default:
			reqLog.Info("request", fields...)
		}
	}
}

// instrument records request counts, latency and in-flight requests.
func instrument(m *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.InFlightGauge.Inc()
		defer m.InFlightGauge.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.RequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

// rateLimit applies a token bucket per client IP. Limiters for the least
// recently seen clients are dropped once maxClients is reached.
func rateLimit(rps float64, burst, maxClients int, m *metrics.Collector) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst <= 0 {
		burst = 1
	}
	if maxClients <= 0 {
		maxClients = 10000
	}
	limiters, _ := lru.New[string, *rate.Limiter](maxClients)
	return func(c *gin.Context) {
		ip := c.ClientIP()
		lim, ok := limiters.Get(ip)
		if !ok {
			lim = rate.NewLimiter(rate.Limit(rps), burst)
			limiters.Add(ip, lim)
		}
		if !lim.Allow() {
			m.RateLimited.Inc()
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many requests", Code: CodeRateLimited})
			return
		}
		c.Next()
	}
}

// withSession loads the session named by the cookie, starting a new one when
// it is missing or expired.
func withSession(store *session.Store, ttl time.Duration, m *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		var st *session.State
		if id, err := c.Cookie(SessionCookie); err == nil && id != "" {
			// Requests of one session run one at a time so a Save never
			// overwrites a concurrent request's changes.
			unlock := store.Lock(id)
			defer unlock()
			st, _ = store.Get(id)
		}
		if st == nil {
			st = store.Create()
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookie, st.ID, int(ttl.Seconds()), "/", "", false, true)
		c.Set(ctxSession, st)

		c.Next()

		m.ActiveSessions.Set(float64(store.Len()))
	}
}

func currentSession(c *gin.Context) *session.State {
	return c.MustGet(ctxSession).(*session.State)
}
