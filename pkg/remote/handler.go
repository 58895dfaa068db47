package remote

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// Handler upgrades renderer connections and hands each accepted Host to
// serve. serve runs on the request goroutine and owns the Host until it
// returns; the Host is closed afterwards.
type Handler struct {
	Upgrader websocket.Upgrader
	Logger   *slog.Logger
	Options  []Option
	Serve    func(r *http.Request, h *Host)
}

// NewHandler returns a Handler with default buffer sizes. checkOrigin may
// be nil to accept same-origin requests only.
func NewHandler(serve func(r *http.Request, h *Host), checkOrigin func(*http.Request) bool, opts ...Option) *Handler {
	return &Handler{
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		Logger:  slog.Default(),
		Options: opts,
		Serve:   serve,
	}
}

func (hd *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := hd.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		hd.Logger.Error("websocket upgrade failed", "err", err)
		return
	}
	opts := append([]Option{WithLogger(hd.Logger)}, hd.Options...)
	h, err := Accept(conn, opts...)
	if err != nil {
		hd.Logger.Warn("renderer rejected", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer h.Close()
	hd.Serve(r, h)
}
