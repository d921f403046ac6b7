// Package lobby implements the in-process registry of live listening-party
// sessions. All lobby state lives in memory and dies with the process.
package lobby

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/fy-st0rm/lobic/internal/apperrors"
	"github.com/fy-st0rm/lobic/internal/conns"
	"github.com/fy-st0rm/lobic/internal/domain"
	"github.com/fy-st0rm/lobic/internal/metrics"
	"github.com/fy-st0rm/lobic/internal/protocol"
)

// Notifier delivers a per-user notification, live and durable. Failures are
// the notifier's problem; lobby operations never fail on notification issues.
type Notifier interface {
	Notify(ctx context.Context, userID, opCode string, value any)
}

// lobbyState is the mutable record behind the pool lock. Members preserves
// join order with the host first.
type lobbyState struct {
	id      string
	hostID  string
	members []string
	playing domain.Track
	queue   []domain.Track
	pending map[string]domain.Track
	chat    []domain.ChatMessage
}

func (l *lobbyState) isMember(userID string) bool {
	for _, m := range l.members {
		if m == userID {
			return true
		}
	}
	return false
}

func (l *lobbyState) snapshot() domain.LobbySnapshot {
	s := domain.LobbySnapshot{
		ID:              l.id,
		HostID:          l.hostID,
		Members:         append([]string(nil), l.members...),
		NowPlaying:      l.playing,
		Queue:           append([]domain.Track(nil), l.queue...),
		PendingRequests: make(map[string]domain.Track, len(l.pending)),
		Chat:            append([]domain.ChatMessage(nil), l.chat...),
	}
	for id, t := range l.pending {
		s.PendingRequests[id] = t
	}
	return s
}

// Pool is the process-wide lobby registry. One mutex guards the whole map;
// every lobby operation is serialized through it.
type Pool struct {
	mu      sync.Mutex
	lobbies map[string]*lobbyState

	users    domain.UserDirectory
	registry *conns.Registry
	notifier Notifier
	clock    clockwork.Clock
}

func NewPool(users domain.UserDirectory, registry *conns.Registry, notifier Notifier, clock clockwork.Clock) *Pool {
	return &Pool{
		lobbies:  make(map[string]*lobbyState),
		users:    users,
		registry: registry,
		notifier: notifier,
		clock:    clock,
	}
}

// Create opens a new lobby with hostID as its first member and returns the
// lobby id.
func (p *Pool) Create(ctx context.Context, hostID string) (string, error) {
	exists, err := p.users.UserExists(ctx, hostID)
	if err != nil {
		return "", apperrors.Internal("failed to verify host", err)
	}
	if !exists {
		return "", apperrors.InvalidUser(hostID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	id := uuid.NewString()
	for p.lobbies[id] != nil {
		id = uuid.NewString()
	}

	p.lobbies[id] = &lobbyState{
		id:      id,
		hostID:  hostID,
		members: []string{hostID},
		playing: domain.EmptyTrack(),
		pending: make(map[string]domain.Track),
	}
	metrics.LobbiesLive.Set(float64(len(p.lobbies)))

	slog.InfoContext(ctx, "lobby created", "lobby_id", id, "host_id", hostID)
	return id, nil
}

// Join adds the user to the lobby, pushes the refreshed member list to every
// member, and returns that list.
func (p *Pool) Join(ctx context.Context, lobbyID, userID string) ([]string, error) {
	exists, err := p.users.UserExists(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to verify user", err)
	}
	if !exists {
		return nil, apperrors.InvalidUser(userID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.lobbies[lobbyID]
	if !ok {
		return nil, apperrors.LobbyNotFound(lobbyID)
	}
	if l.isMember(userID) {
		return nil, apperrors.AlreadyMember(userID, lobbyID)
	}

	l.members = append(l.members, userID)
	members := append([]string(nil), l.members...)
	p.broadcastLocked(ctx, l, protocol.OK(protocol.OpGetLobbyMembers, members), "members")

	slog.InfoContext(ctx, "user joined lobby", "lobby_id", lobbyID, "user_id", userID)
	return members, nil
}

// Leave removes the user from the lobby. When the host leaves the whole
// lobby is torn down and every member is told the host disconnected.
// teardown reports whether the lobby was deleted.
func (p *Pool) Leave(ctx context.Context, lobbyID, userID string) (teardown bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.lobbies[lobbyID]
	if !ok {
		return false, apperrors.LobbyNotFound(lobbyID)
	}
	if !l.isMember(userID) {
		return false, apperrors.NotMember(userID, lobbyID)
	}

	if userID == l.hostID {
		p.broadcastLocked(ctx, l, protocol.OK(protocol.OpLeaveLobby, "Host disconnected"), "teardown")
		delete(p.lobbies, lobbyID)
		metrics.LobbiesLive.Set(float64(len(p.lobbies)))
		slog.InfoContext(ctx, "lobby torn down, host left", "lobby_id", lobbyID, "host_id", userID)
		return true, nil
	}

	for i, m := range l.members {
		if m == userID {
			l.members = append(l.members[:i], l.members[i+1:]...)
			break
		}
	}
	members := append([]string(nil), l.members...)
	p.broadcastLocked(ctx, l, protocol.OK(protocol.OpGetLobbyMembers, members), "members")

	slog.InfoContext(ctx, "user left lobby", "lobby_id", lobbyID, "user_id", userID)
	return false, nil
}

// AppendChat appends a chat message and returns the full chat log plus the
// member list so the caller can fan it out.
func (p *Pool) AppendChat(ctx context.Context, lobbyID, userID, text string) ([]domain.ChatMessage, []string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.lobbies[lobbyID]
	if !ok {
		return nil, nil, apperrors.LobbyNotFound(lobbyID)
	}
	if !l.isMember(userID) {
		return nil, nil, apperrors.NotMember(userID, lobbyID)
	}

	l.chat = append(l.chat, domain.ChatMessage{
		UserID:    userID,
		Message:   text,
		Timestamp: p.clock.Now().UTC().Format(time.RFC3339),
	})

	chat := append([]domain.ChatMessage(nil), l.chat...)
	members := append([]string(nil), l.members...)
	return chat, members, nil
}

// SetMusicState lets the host overwrite the lobby's now-playing state.
// Returns the member list for fan-out.
func (p *Pool) SetMusicState(ctx context.Context, lobbyID, userID string, track domain.Track) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.lobbies[lobbyID]
	if !ok {
		return nil, apperrors.LobbyNotFound(lobbyID)
	}
	if userID != l.hostID {
		return nil, apperrors.NotAuthorized(userID, lobbyID)
	}

	l.playing = track
	return append([]string(nil), l.members...), nil
}

// SetQueue lets the host replace the lobby's play queue. Returns the member
// list for fan-out.
func (p *Pool) SetQueue(ctx context.Context, lobbyID, userID string, queue []domain.Track) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.lobbies[lobbyID]
	if !ok {
		return nil, apperrors.LobbyNotFound(lobbyID)
	}
	if userID != l.hostID {
		return nil, apperrors.NotAuthorized(userID, lobbyID)
	}

	l.queue = append([]domain.Track(nil), queue...)
	return append([]string(nil), l.members...), nil
}

// RequestPlay records a member's song request and notifies the host. The
// latest request per track id wins.
func (p *Pool) RequestPlay(ctx context.Context, lobbyID string, track domain.Track) error {
	p.mu.Lock()
	l, ok := p.lobbies[lobbyID]
	if !ok {
		p.mu.Unlock()
		return apperrors.LobbyNotFound(lobbyID)
	}
	l.pending[track.ID] = track
	hostID := l.hostID
	p.mu.Unlock()

	p.notifier.Notify(ctx, hostID, string(protocol.OpRequestMusicPlay), track)
	return nil
}

// IDsVisibleTo lists lobby ids whose host is a friend of userID, or which
// userID hosts themselves.
func (p *Pool) IDsVisibleTo(ctx context.Context, userID string) ([]string, error) {
	p.mu.Lock()
	hosts := make(map[string]string, len(p.lobbies))
	for id, l := range p.lobbies {
		hosts[id] = l.hostID
	}
	p.mu.Unlock()

	friends, err := p.users.FriendsOf(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to load friends", err)
	}

	friendSet := make(map[string]struct{}, len(friends)+1)
	friendSet[userID] = struct{}{}
	for _, f := range friends {
		friendSet[f] = struct{}{}
	}

	ids := make([]string, 0, len(hosts))
	for id, host := range hosts {
		if _, ok := friendSet[host]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Get returns a point-in-time snapshot of the lobby.
func (p *Pool) Get(lobbyID string) (domain.LobbySnapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.lobbies[lobbyID]
	if !ok {
		return domain.LobbySnapshot{}, false
	}
	return l.snapshot(), true
}

// Chat returns a copy of the lobby's chat log.
func (p *Pool) Chat(lobbyID string) ([]domain.ChatMessage, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.lobbies[lobbyID]
	if !ok {
		return nil, false
	}
	return append([]domain.ChatMessage(nil), l.chat...), true
}

// broadcastLocked pushes a frame to every member's live connection. Callers
// must hold p.mu. Members without a connection are skipped.
func (p *Pool) broadcastLocked(ctx context.Context, l *lobbyState, frame protocol.Response, kind string) {
	for _, member := range l.members {
		sender, ok := p.registry.Lookup(member)
		if !ok {
			slog.DebugContext(ctx, "skipping broadcast, member not connected",
				"lobby_id", l.id, "user_id", member)
			continue
		}
		sender.Send(frame)
	}
	metrics.BroadcastsTotal.WithLabelValues(kind).Inc()
}
