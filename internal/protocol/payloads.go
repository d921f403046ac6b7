package protocol

import (
	"encoding/json"

	"github.com/fy-st0rm/lobic/internal/apperrors"
	"github.com/fy-st0rm/lobic/internal/domain"
)

// payload is implemented by all typed request payloads.
type payload interface {
	validate() error
}

// Decode unmarshals a raw request value into dst and validates it. Any
// failure is reported as a malformed_request error.
func Decode(raw json.RawMessage, dst payload) error {
	if len(raw) == 0 {
		return apperrors.Malformed("request value is missing")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperrors.Malformed("request value has wrong shape: " + err.Error())
	}
	return dst.validate()
}

type ConnectPayload struct {
	UserID string `json:"user_id"`
}

func (p *ConnectPayload) validate() error {
	if p.UserID == "" {
		return apperrors.MissingField("user_id")
	}
	return nil
}

type CreateLobbyPayload struct {
	HostID string `json:"host_id"`
}

func (p *CreateLobbyPayload) validate() error {
	if p.HostID == "" {
		return apperrors.MissingField("host_id")
	}
	return nil
}

type JoinLobbyPayload struct {
	LobbyID string `json:"lobby_id"`
	UserID  string `json:"user_id"`
}

func (p *JoinLobbyPayload) validate() error {
	if p.LobbyID == "" {
		return apperrors.MissingField("lobby_id")
	}
	if p.UserID == "" {
		return apperrors.MissingField("user_id")
	}
	return nil
}

type LeaveLobbyPayload struct {
	LobbyID string `json:"lobby_id"`
	UserID  string `json:"user_id"`
}

func (p *LeaveLobbyPayload) validate() error {
	if p.LobbyID == "" {
		return apperrors.MissingField("lobby_id")
	}
	if p.UserID == "" {
		return apperrors.MissingField("user_id")
	}
	return nil
}

type GetLobbyIDsPayload struct {
	UserID string `json:"user_id"`
}

func (p *GetLobbyIDsPayload) validate() error {
	if p.UserID == "" {
		return apperrors.MissingField("user_id")
	}
	return nil
}

type GetLobbyMembersPayload struct {
	LobbyID string `json:"lobby_id"`
}

func (p *GetLobbyMembersPayload) validate() error {
	if p.LobbyID == "" {
		return apperrors.MissingField("lobby_id")
	}
	return nil
}

type MessagePayload struct {
	LobbyID string `json:"lobby_id"`
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

func (p *MessagePayload) validate() error {
	if p.LobbyID == "" {
		return apperrors.MissingField("lobby_id")
	}
	if p.UserID == "" {
		return apperrors.MissingField("user_id")
	}
	if p.Message == "" {
		return apperrors.MissingField("message")
	}
	return nil
}

type GetMessagesPayload struct {
	LobbyID string `json:"lobby_id"`
}

func (p *GetMessagesPayload) validate() error {
	if p.LobbyID == "" {
		return apperrors.MissingField("lobby_id")
	}
	return nil
}

type SetMusicStatePayload struct {
	LobbyID   string               `json:"lobby_id"`
	UserID    string               `json:"user_id"`
	MusicID   string               `json:"music_id"`
	Title     string               `json:"title"`
	Artist    string               `json:"artist"`
	ImageURL  string               `json:"image_url"`
	Timestamp *float64             `json:"timestamp"`
	State     domain.PlaybackState `json:"state"`
}

func (p *SetMusicStatePayload) validate() error {
	if p.LobbyID == "" {
		return apperrors.MissingField("lobby_id")
	}
	if p.UserID == "" {
		return apperrors.MissingField("user_id")
	}
	if p.MusicID == "" {
		return apperrors.MissingField("music_id")
	}
	if p.Title == "" {
		return apperrors.MissingField("title")
	}
	if p.Artist == "" {
		return apperrors.MissingField("artist")
	}
	if p.ImageURL == "" {
		return apperrors.MissingField("image_url")
	}
	if p.Timestamp == nil {
		return apperrors.MissingField("timestamp")
	}
	if !p.State.Valid() {
		return apperrors.Malformed("unknown playback state: " + string(p.State))
	}
	return nil
}

// Track converts the payload into the lobby's playback track.
func (p *SetMusicStatePayload) Track() domain.Track {
	return domain.Track{
		ID:        p.MusicID,
		Title:     p.Title,
		Artist:    p.Artist,
		ImageURL:  p.ImageURL,
		Timestamp: *p.Timestamp,
		State:     p.State,
	}
}

type SyncMusicPayload struct {
	LobbyID      string               `json:"lobby_id"`
	CurrentState domain.PlaybackState `json:"current_state"`
}

func (p *SyncMusicPayload) validate() error {
	if p.LobbyID == "" {
		return apperrors.MissingField("lobby_id")
	}
	if !p.CurrentState.Valid() {
		return apperrors.Malformed("unknown playback state: " + string(p.CurrentState))
	}
	return nil
}

type SetQueuePayload struct {
	LobbyID string         `json:"lobby_id"`
	Queue   []domain.Track `json:"queue"`
}

func (p *SetQueuePayload) validate() error {
	if p.LobbyID == "" {
		return apperrors.MissingField("lobby_id")
	}
	if p.Queue == nil {
		return apperrors.MissingField("queue")
	}
	return nil
}

type SyncQueuePayload struct {
	LobbyID string `json:"lobby_id"`
}

func (p *SyncQueuePayload) validate() error {
	if p.LobbyID == "" {
		return apperrors.MissingField("lobby_id")
	}
	return nil
}

type RequestMusicPlayPayload struct {
	LobbyID string        `json:"lobby_id"`
	Music   *domain.Track `json:"music"`
}

func (p *RequestMusicPlayPayload) validate() error {
	if p.LobbyID == "" {
		return apperrors.MissingField("lobby_id")
	}
	if p.Music == nil {
		return apperrors.MissingField("music")
	}
	if p.Music.ID == "" {
		return apperrors.MissingField("music.id")
	}
	return nil
}
