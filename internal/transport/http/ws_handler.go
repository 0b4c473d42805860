package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/parley-chat/parley-server/internal/core"
	"github.com/parley-chat/parley-server/internal/metrics"
	"github.com/parley-chat/parley-server/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to core clients.
type WSHandler struct {
	hub             *core.Hub
	log             *zerolog.Logger
	metrics         *metrics.Metrics
	maxFrameBytes   int64
	framesPerMinute int
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, logger *zerolog.Logger, m *metrics.Metrics, maxFrameBytes int64, framesPerMinute int) *WSHandler {
	return &WSHandler{
		hub:             hub,
		log:             logger,
		metrics:         m,
		maxFrameBytes:   maxFrameBytes,
		framesPerMinute: framesPerMinute,
	}
}

// ServeHTTP upgrades the connection and bridges it to a core client. It is
// mounted outside the gin router so the upgrade sees the raw ResponseWriter.
func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	if h.maxFrameBytes > 0 {
		conn.SetReadLimit(h.maxFrameBytes)
	}

	client := core.NewClient()
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// readLoop pulls frames off the wire and turns them into hub commands.
// Malformed or unknown frames are logged and dropped; they never bring the
// connection or the server down.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.framesPerMinute)
	defer limiter.stop()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		if !limiter.allow() {
			h.dropFrame(client, "rate limit exceeded", nil)
			if writeErr := wsjson.Write(ctx, conn, proto.Alert{
				Type:    proto.OutboundTypeAlert,
				Code:    "rate_limited",
				Message: "too many messages, slow down",
			}); writeErr != nil {
				return writeErr
			}
			continue
		}

		var envelope proto.Envelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			h.dropFrame(client, "malformed frame", err)
			continue
		}

		cmd, err := frameToCommand(client, envelope.Type, data)
		if err != nil {
			h.dropFrame(client, "unusable frame", err)
			continue
		}

		h.hub.Submit(cmd)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				// Hub closed the channel: queued frames are already
				// flushed, the connection is done.
				return nil
			}
			if err := wsjson.Write(ctx, conn, frameFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("conn_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) dropFrame(client *core.Client, why string, err error) {
	if h.metrics != nil {
		h.metrics.FramesDropped.Inc()
	}
	h.log.Debug().Err(err).Str("conn_id", client.ID).Msg(why + ", frame dropped")
}
