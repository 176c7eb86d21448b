package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/beamchat/server/internal/auth"
	"github.com/beamchat/server/internal/core"
	"github.com/beamchat/server/internal/proto"
)

// WSHandler authenticates handshakes, upgrades HTTP connections, and
// bridges them to core.Client.
type WSHandler struct {
	hub         *core.Hub
	authService *auth.Service
	log         *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, authService *auth.Service, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, authService: authService, log: logger}
}

// handshakeToken extracts the bearer credential supplied out-of-band at
// connection establishment: a "token" query parameter or an Authorization
// header.
func handshakeToken(r *stdhttp.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	// Authenticate before the upgrade: a rejected credential means the
	// connection is never established and no other component observes it.
	user, err := h.authService.Authenticate(ctx, handshakeToken(r))
	if err != nil {
		code := core.ErrCodeInvalidToken
		if errors.Is(err, auth.ErrUserNotFound) {
			code = core.ErrCodeUserNotFound
		}
		h.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("ws handshake rejected")
		stdhttp.Error(w, code, stdhttp.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := core.NewClient(uuid.NewString(), user)
	h.hub.RegisterClient(client)
	defer func() {
		h.hub.UnregisterClient(client)
		// Both loops have exited by now; stop the client's command loop.
		close(client.Commands)
	}()

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

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		cmd, protoErr, err := inboundToCommand(inbound)
		if err != nil {
			h.log.Warn().Err(err).Str("connection_id", client.ID).Msg("failed to map inbound")
			return err
		}
		if protoErr != nil {
			if writeErr := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: protoErr,
			}); writeErr != nil {
				return writeErr
			}
			continue
		}
		if cmd != nil {
			select {
			case client.Commands <- cmd:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("connection_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
