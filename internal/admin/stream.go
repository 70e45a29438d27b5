package admin

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/danmuck/awenet/internal/lobby"
	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const streamBuffer = 64

// chatStream replays the chat log over a websocket, then pushes every new
// record. Inbound {"text": ...} frames are sent as chat; failures come
// back as records of kind "error". A record added during the replay may
// be delivered twice.
func (s *Server) chatStream(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns,
	})
	if err != nil {
		s.log.Debug().Err(err).Msg("admin: websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream ended")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	out := make(chan recordView, streamBuffer)
	push := func(v recordView) {
		select {
		case out <- v:
		default:
			s.log.Warn().Str("kind", v.Kind).Msg("admin: chat stream slow, record dropped")
		}
	}
	stop := s.lobby.Chat().Watch(func(rec lobby.Record) { push(viewOf(rec)) })
	defer stop()

	for _, rec := range s.lobby.Chat().Snapshot() {
		if err := wsjson.Write(ctx, conn, viewOf(rec)); err != nil {
			return
		}
	}

	go func() {
		defer cancel()
		for {
			var req chatRequest
			if err := wsjson.Read(ctx, conn, &req); err != nil {
				return
			}
			if err := s.lobby.SendChat(req.Text); err != nil {
				push(recordView{Kind: "error", Text: err.Error(), At: time.Now()})
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case v := <-out:
			if err := wsjson.Write(ctx, conn, v); err != nil {
				return
			}
		}
	}
}

func viewOf(rec lobby.Record) recordView {
	return recordView{Kind: rec.Kind.String(), Text: rec.Text, At: rec.At}
}

// originHosts maps CORS origins to the host patterns websocket.Accept
// checks against.
func originHosts(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		u, err := url.Parse(strings.TrimSpace(origin))
		if err != nil || u.Host == "" {
			continue
		}
		out = append(out, u.Host)
	}
	return out
}
