package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/awenet/internal/link"
	"github.com/danmuck/awenet/internal/lobby"
	"github.com/danmuck/awenet/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func newServer(t *testing.T) (*Server, *lobby.Lobby) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tr := link.New(link.DefaultConfig())
	l, err := lobby.New(lobby.Config{Link: tr})
	if err != nil {
		t.Fatalf("lobby: %v", err)
	}
	t.Cleanup(func() {
		_ = l.Close()
		_ = tr.Close()
	})
	return New(l, zerolog.Nop(), nil), l
}

func serve(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.HTTPRouter().ServeHTTP(rr, req)
	return rr
}

func TestHealthAndReady(t *testing.T) {
	testlog.Start(t)
	s, _ := newServer(t)

	rr := serve(s, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("health status: %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "awectl" {
		t.Fatalf("unexpected health body: %#v", body)
	}

	if rr := serve(s, http.MethodGet, "/ready", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready on idle link: got %d", rr.Code)
	}
}

func TestStatusAndChatWhileIdle(t *testing.T) {
	testlog.Start(t)
	s, l := newServer(t)

	rr := serve(s, http.MethodGet, "/status", "")
	var st statusView
	if err := json.Unmarshal(rr.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.Role != "none" || st.State != "idle" || st.Phase != "idle" || st.LocalSeat != lobby.NoSeat {
		t.Fatalf("unexpected status: %+v", st)
	}
	if len(st.Ready) != lobby.SeatCount {
		t.Fatalf("ready board size: %d", len(st.Ready))
	}

	if rr := serve(s, http.MethodPost, "/chat", `{"text":"  "}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("empty chat: got %d", rr.Code)
	}
	if rr := serve(s, http.MethodPost, "/chat", `{"text":"hello"}`); rr.Code != http.StatusConflict {
		t.Fatalf("chat while idle: got %d body=%s", rr.Code, rr.Body.String())
	}
	if rr := serve(s, http.MethodPost, "/seat/ready", `{}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("ready without flag: got %d", rr.Code)
	}
	if rr := serve(s, http.MethodPost, "/seat/ready", `{"ready":true}`); rr.Code != http.StatusConflict {
		t.Fatalf("ready while idle: got %d", rr.Code)
	}

	l.Chat().Add(lobby.RecordNotice, "hello from test")
	rr = serve(s, http.MethodGet, "/chat", "")
	var chat struct {
		Records []recordView `json:"records"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &chat); err != nil {
		t.Fatalf("decode chat: %v", err)
	}
	if len(chat.Records) != 1 || chat.Records[0].Kind != "notice" || chat.Records[0].Text != "hello from test" {
		t.Fatalf("unexpected chat: %+v", chat.Records)
	}
}

func TestMetricsRoute(t *testing.T) {
	testlog.Start(t)
	s, _ := newServer(t)
	serve(s, http.MethodGet, "/health", "")

	rr := serve(s, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rr.Code)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte("awenet_admin_requests_total")) {
		t.Fatalf("admin request metric missing")
	}
}

func TestStartAndShutdown(t *testing.T) {
	testlog.Start(t)
	s, _ := newServer(t)
	if err := s.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("start: %v", err)
	}
	resp, err := http.Get("http://" + s.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health over tcp: %d", resp.StatusCode)
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
