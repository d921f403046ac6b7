// Package ws upgrades HTTP requests to websocket connections and dispatches
// the JSON protocol frames they carry.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/fy-st0rm/lobic/internal/apperrors"
	"github.com/fy-st0rm/lobic/internal/conns"
	"github.com/fy-st0rm/lobic/internal/correlation"
	"github.com/fy-st0rm/lobic/internal/lobby"
	"github.com/fy-st0rm/lobic/internal/metrics"
	"github.com/fy-st0rm/lobic/internal/protocol"
)

// Handler owns the websocket endpoint: one goroutine per connection reads
// frames, dispatches them and writes responses through the connection's
// sender.
type Handler struct {
	registry *conns.Registry
	pool     *lobby.Pool
	clock    clockwork.Clock
	upgrader websocket.Upgrader
}

func NewHandler(registry *conns.Registry, pool *lobby.Pool, clock clockwork.Clock) *Handler {
	return &Handler{
		registry: registry,
		pool:     pool,
		clock:    clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// connState tracks what the read loop has learned about its connection: the
// user it speaks for and the lobby that user currently sits in. Only the
// read-loop goroutine touches it.
type connState struct {
	userID  string
	lobbyID string
	sender  *conns.Sender
}

// Handle upgrades the request and serves the protocol until the peer goes
// away.
func (h *Handler) Handle(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "websocket upgrade failed")
	}

	ctx := correlation.WithID(c.Request().Context(), correlation.NewID())
	metrics.ConnectionsTotal.Inc()
	slog.InfoContext(ctx, "websocket connection opened", "remote", conn.RemoteAddr().String())

	st := &connState{sender: conns.NewSender(conn, h.clock)}
	h.readLoop(ctx, conn, st)
	h.cleanup(ctx, st)
	return nil
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, st *connState) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.DebugContext(ctx, "websocket closed unexpectedly", "error", err)
			}
			return
		}

		var req protocol.Request
		if err := json.Unmarshal(data, &req); err != nil {
			st.sender.Send(protocol.Response{OpCode: protocol.OpError, Value: "malformed frame: not a valid request"})
			metrics.RequestsTotal.WithLabelValues("unknown", "error").Inc()
			continue
		}

		// Client-invented opcodes share one label so the metric's
		// cardinality stays bounded.
		opLabel := "unknown"
		if req.OpCode.Known() {
			opLabel = string(req.OpCode)
		}

		if err := h.dispatch(ctx, st, req); err != nil {
			structured := apperrors.AsError(err)
			if structured.Code == apperrors.CodeInternal {
				slog.ErrorContext(ctx, "request failed",
					"op_code", req.OpCode, "error", structured.Cause)
			}
			st.sender.Send(protocol.Error(req.OpCode, structured.Message))
			metrics.RequestsTotal.WithLabelValues(opLabel, "error").Inc()
			continue
		}
		metrics.RequestsTotal.WithLabelValues(opLabel, "ok").Inc()
	}
}

func (h *Handler) dispatch(ctx context.Context, st *connState, req protocol.Request) error {
	switch req.OpCode {
	case protocol.OpConnect:
		return h.handleConnect(ctx, st, req.Value)
	case protocol.OpCreateLobby:
		return h.handleCreateLobby(ctx, st, req.Value)
	case protocol.OpJoinLobby:
		return h.handleJoinLobby(ctx, st, req.Value)
	case protocol.OpLeaveLobby:
		return h.handleLeaveLobby(ctx, st, req.Value)
	case protocol.OpGetLobbyIDs:
		return h.handleGetLobbyIDs(ctx, st, req.Value)
	case protocol.OpGetLobbyMembers:
		return h.handleGetLobbyMembers(st, req.Value)
	case protocol.OpMessage:
		return h.handleMessage(ctx, st, req.Value)
	case protocol.OpGetMessages:
		return h.handleGetMessages(st, req.Value)
	case protocol.OpSetMusicState:
		return h.handleSetMusicState(ctx, st, req.Value)
	case protocol.OpSyncMusic:
		return h.handleSyncMusic(st, req.Value)
	case protocol.OpSetQueue:
		return h.handleSetQueue(ctx, st, req.Value)
	case protocol.OpSyncQueue:
		return h.handleSyncQueue(st, req.Value)
	case protocol.OpRequestMusicPlay:
		return h.handleRequestMusicPlay(ctx, st, req.Value)
	default:
		return apperrors.Malformed("unknown op_code: " + string(req.OpCode))
	}
}

func (h *Handler) handleConnect(ctx context.Context, st *connState, raw json.RawMessage) error {
	var p protocol.ConnectPayload
	if err := protocol.Decode(raw, &p); err != nil {
		return err
	}

	// A connection switching identity releases its previous binding first.
	if st.userID != "" && st.userID != p.UserID {
		h.registry.RemoveConn(st.userID, st.sender)
	}

	st.userID = p.UserID
	h.registry.Register(p.UserID, st.sender)

	slog.InfoContext(ctx, "user connected", "user_id", p.UserID)
	st.sender.Send(protocol.OK(protocol.OpConnect, "Successfully connected to lobic server"))
	return nil
}

func (h *Handler) handleCreateLobby(ctx context.Context, st *connState, raw json.RawMessage) error {
	var p protocol.CreateLobbyPayload
	if err := protocol.Decode(raw, &p); err != nil {
		return err
	}

	lobbyID, err := h.pool.Create(ctx, p.HostID)
	if err != nil {
		return err
	}

	// The CONNECT identity stays authoritative; a pre-CONNECT create binds it.
	if st.userID == "" {
		st.userID = p.HostID
	}
	if st.userID == p.HostID {
		st.lobbyID = lobbyID
	}
	st.sender.Send(protocol.OK(protocol.OpCreateLobby, map[string]string{"lobby_id": lobbyID}))

	h.broadcastLobbyIDs(ctx)
	return nil
}

func (h *Handler) handleJoinLobby(ctx context.Context, st *connState, raw json.RawMessage) error {
	var p protocol.JoinLobbyPayload
	if err := protocol.Decode(raw, &p); err != nil {
		return err
	}

	if _, err := h.pool.Join(ctx, p.LobbyID, p.UserID); err != nil {
		return err
	}

	if st.userID == "" {
		st.userID = p.UserID
	}
	// Track the lobby only when the join is for this connection's own
	// identity, so disconnect cleanup never leaves as someone else.
	if st.userID == p.UserID {
		st.lobbyID = p.LobbyID
	}
	st.sender.Send(protocol.OK(protocol.OpJoinLobby, "Successfully joined lobby"))
	return nil
}

func (h *Handler) handleLeaveLobby(ctx context.Context, st *connState, raw json.RawMessage) error {
	var p protocol.LeaveLobbyPayload
	if err := protocol.Decode(raw, &p); err != nil {
		return err
	}

	teardown, err := h.pool.Leave(ctx, p.LobbyID, p.UserID)
	if err != nil {
		return err
	}

	if st.lobbyID == p.LobbyID && st.userID == p.UserID {
		st.lobbyID = ""
	}
	st.sender.Send(protocol.OK(protocol.OpLeaveLobby, "Successfully left lobby"))

	if teardown {
		h.broadcastLobbyIDs(ctx)
	}
	return nil
}

func (h *Handler) handleGetLobbyIDs(ctx context.Context, st *connState, raw json.RawMessage) error {
	var p protocol.GetLobbyIDsPayload
	if err := protocol.Decode(raw, &p); err != nil {
		return err
	}

	ids, err := h.pool.IDsVisibleTo(ctx, p.UserID)
	if err != nil {
		return err
	}

	st.sender.Send(protocol.OK(protocol.OpGetLobbyIDs, ids))
	return nil
}

func (h *Handler) handleGetLobbyMembers(st *connState, raw json.RawMessage) error {
	var p protocol.GetLobbyMembersPayload
	if err := protocol.Decode(raw, &p); err != nil {
		return err
	}

	snap, ok := h.pool.Get(p.LobbyID)
	if !ok {
		return apperrors.LobbyNotFound(p.LobbyID)
	}

	st.sender.Send(protocol.OK(protocol.OpGetLobbyMembers, snap.Members))
	return nil
}

func (h *Handler) handleMessage(ctx context.Context, st *connState, raw json.RawMessage) error {
	var p protocol.MessagePayload
	if err := protocol.Decode(raw, &p); err != nil {
		return err
	}

	chat, members, err := h.pool.AppendChat(ctx, p.LobbyID, p.UserID, p.Message)
	if err != nil {
		return err
	}

	h.sendToUsers(members, "", protocol.OK(protocol.OpGetMessages, chat))
	return nil
}

func (h *Handler) handleGetMessages(st *connState, raw json.RawMessage) error {
	var p protocol.GetMessagesPayload
	if err := protocol.Decode(raw, &p); err != nil {
		return err
	}

	chat, ok := h.pool.Chat(p.LobbyID)
	if !ok {
		return apperrors.LobbyNotFound(p.LobbyID)
	}

	st.sender.Send(protocol.OK(protocol.OpGetMessages, chat))
	return nil
}

func (h *Handler) handleSetMusicState(ctx context.Context, st *connState, raw json.RawMessage) error {
	var p protocol.SetMusicStatePayload
	if err := protocol.Decode(raw, &p); err != nil {
		return err
	}

	members, err := h.pool.SetMusicState(ctx, p.LobbyID, p.UserID, p.Track())
	if err != nil {
		return err
	}

	// The host already has this state locally, everyone else syncs to it.
	h.sendToUsers(members, p.UserID, protocol.OK(protocol.OpSyncMusic, p.Track()))
	return nil
}

func (h *Handler) handleSyncMusic(st *connState, raw json.RawMessage) error {
	var p protocol.SyncMusicPayload
	if err := protocol.Decode(raw, &p); err != nil {
		return err
	}

	snap, ok := h.pool.Get(p.LobbyID)
	if !ok {
		return apperrors.LobbyNotFound(p.LobbyID)
	}

	st.sender.Send(protocol.OK(protocol.OpSyncMusic, snap.NowPlaying))
	return nil
}

func (h *Handler) handleSetQueue(ctx context.Context, st *connState, raw json.RawMessage) error {
	var p protocol.SetQueuePayload
	if err := protocol.Decode(raw, &p); err != nil {
		return err
	}
	if st.userID == "" {
		return apperrors.Malformed("connection has no bound user, send CONNECT first")
	}

	members, err := h.pool.SetQueue(ctx, p.LobbyID, st.userID, p.Queue)
	if err != nil {
		return err
	}

	h.sendToUsers(members, st.userID, protocol.OK(protocol.OpSyncQueue, p.Queue))
	return nil
}

func (h *Handler) handleSyncQueue(st *connState, raw json.RawMessage) error {
	var p protocol.SyncQueuePayload
	if err := protocol.Decode(raw, &p); err != nil {
		return err
	}

	snap, ok := h.pool.Get(p.LobbyID)
	if !ok {
		return apperrors.LobbyNotFound(p.LobbyID)
	}

	st.sender.Send(protocol.OK(protocol.OpSyncQueue, snap.Queue))
	return nil
}

func (h *Handler) handleRequestMusicPlay(ctx context.Context, st *connState, raw json.RawMessage) error {
	var p protocol.RequestMusicPlayPayload
	if err := protocol.Decode(raw, &p); err != nil {
		return err
	}

	if err := h.pool.RequestPlay(ctx, p.LobbyID, *p.Music); err != nil {
		return err
	}

	st.sender.Send(protocol.OK(protocol.OpRequestMusicPlay, "Play request sent to host"))
	return nil
}

// sendToUsers pushes a frame to each listed user's live connection, skipping
// except and anyone not connected.
func (h *Handler) sendToUsers(userIDs []string, except string, frame protocol.Response) {
	for _, id := range userIDs {
		if id == except {
			continue
		}
		if sender, ok := h.registry.Lookup(id); ok {
			sender.Send(frame)
		}
	}
}

// broadcastLobbyIDs refreshes every connected user's lobby list after a
// lobby appears or disappears. Each user gets their own friend-scoped view.
func (h *Handler) broadcastLobbyIDs(ctx context.Context) {
	for _, userID := range h.registry.UserIDs() {
		ids, err := h.pool.IDsVisibleTo(ctx, userID)
		if err != nil {
			slog.WarnContext(ctx, "skipping lobby list refresh", "user_id", userID, "error", err)
			continue
		}
		if sender, ok := h.registry.Lookup(userID); ok {
			sender.Send(protocol.OK(protocol.OpGetLobbyIDs, ids))
		}
	}
}

// cleanup runs when the read loop exits. The departed user leaves whatever
// lobby they were in through the normal path so members see the usual
// broadcasts.
func (h *Handler) cleanup(ctx context.Context, st *connState) {
	if st.userID != "" && st.lobbyID != "" {
		teardown, err := h.pool.Leave(context.WithoutCancel(ctx), st.lobbyID, st.userID)
		if err != nil {
			slog.DebugContext(ctx, "leave on disconnect skipped", "lobby_id", st.lobbyID, "error", err)
		} else if teardown {
			h.broadcastLobbyIDs(context.WithoutCancel(ctx))
		}
	}

	if st.userID != "" {
		h.registry.RemoveConn(st.userID, st.sender)
	}
	st.sender.Stop()
	slog.InfoContext(ctx, "websocket connection closed", "user_id", st.userID)
}
