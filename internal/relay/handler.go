package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
	"nhooyr.io/websocket"
)

// relayed lists the client message types rebroadcast to everyone.
var relayed = map[string]bool{
	"join":       true,
	"leave":      true,
	"loadMap":    true,
	"loadGame":   true,
	"gameOver":   true,
	"PoiClaimed": true,
}

const writeTimeout = 5 * time.Second

type Handler struct {
	hub    *Hub
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger, hub *Hub) *Handler {
	return &Handler{hub: hub, logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.connect)
	return r
}

func (h *Handler) connect(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ch := h.hub.Subscribe()
	defer h.hub.Unsubscribe(ch)
	h.logger.Debug("websocket client connected", "clients", h.hub.Len())

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error { return h.readLoop(ctx, conn) })
	g.Go(func() error { return h.writeLoop(ctx, conn, ch) })

	if err := g.Wait(); err != nil {
		h.logger.Debug("websocket closed", "error", err)
	}
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		typ, msg, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}

		var m struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &m); err != nil {
			h.logger.Debug("dropping malformed message", "error", err)
			continue
		}
		if !relayed[m.Type] {
			h.logger.Debug("dropping message", "type", m.Type)
			continue
		}
		h.hub.Broadcast(msg)
	}
}

func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, ch <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data := <-ch:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
