package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	before := testutil.ToFloat64(linkFrames.WithLabelValues(DirectionSent, "chat"))
	RecordFrame(DirectionSent, "chat")
	RecordFrame(DirectionSent, "chat")
	if got := testutil.ToFloat64(linkFrames.WithLabelValues(DirectionSent, "chat")); got != before+2 {
		t.Fatalf("frames counter: got %v want %v", got, before+2)
	}

	errsBefore := testutil.ToFloat64(linkErrors.WithLabelValues("disconnected"))
	RecordLinkError("disconnected")
	if got := testutil.ToFloat64(linkErrors.WithLabelValues("disconnected")); got != errsBefore+1 {
		t.Fatalf("errors counter: got %v", got)
	}

	up := testutil.ToFloat64(linkEstablished)
	LinkUp()
	LinkDown()
	if got := testutil.ToFloat64(linkEstablished); got != up {
		t.Fatalf("established gauge drifted: got %v want %v", got, up)
	}

	RecordSentBytes(12)
	RecordAttempt("client", "ok", 24*time.Millisecond)
}

func TestHandlerExposesLinkMetrics(t *testing.T) {
	RecordFrame(DirectionReceived, "game_start")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), `awenet_link_frames_total{direction="received",kind="game_start"}`) {
		t.Fatalf("missing frames metric in exposition:\n%s", body)
	}
}

func TestRequestMiddlewareRecordsRoutePattern(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(zerolog.Nop()), RequestMetricsMiddleware())
	r.GET("/items/:id", func(c *gin.Context) { c.String(http.StatusTeapot, "short") })

	counter := httpRequests.WithLabelValues("GET", "/items/:id", "418")
	before := testutil.ToFloat64(counter)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/items/7", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Fatalf("request counter: got %v want %v", got, before+1)
	}

	missing := httpRequests.WithLabelValues("GET", "unmatched", "404")
	before = testutil.ToFloat64(missing)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nope", nil))
	if got := testutil.ToFloat64(missing); got != before+1 {
		t.Fatalf("unmatched counter: got %v", got)
	}
}
