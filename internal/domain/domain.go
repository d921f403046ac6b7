package domain

// PlaybackState is the transition descriptor carried by a Track. It tells
// receivers what just changed so they can apply the matching local action;
// clients settle back into PLAY, PAUSE or EMPTY as steady states.
type PlaybackState string

const (
	StatePlay         PlaybackState = "PLAY"
	StatePause        PlaybackState = "PAUSE"
	StateChangeMusic  PlaybackState = "CHANGE_MUSIC"
	StateChangeTime   PlaybackState = "CHANGE_TIME"
	StateChangeVolume PlaybackState = "CHANGE_VOLUME"
	StateEmpty        PlaybackState = "EMPTY"
)

// Valid reports whether s is one of the closed set of playback states.
func (s PlaybackState) Valid() bool {
	switch s {
	case StatePlay, StatePause, StateChangeMusic, StateChangeTime, StateChangeVolume, StateEmpty:
		return true
	}
	return false
}

// Track is a queue entry or the authoritative now-playing state of a lobby.
type Track struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Artist    string        `json:"artist"`
	ImageURL  string        `json:"image_url"`
	Timestamp float64       `json:"timestamp"`
	State     PlaybackState `json:"state"`
}

// EmptyTrack is the neutral now-playing value of a freshly created lobby.
func EmptyTrack() Track {
	return Track{State: StateEmpty}
}

// ChatMessage is immutable once appended to a lobby's chat log.
// Timestamp is display-formatted, not meant for ordering.
type ChatMessage struct {
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// LobbySnapshot is a point-in-time copy of a lobby, safe to hand out
// without holding the registry lock.
type LobbySnapshot struct {
	ID              string           `json:"id"`
	HostID          string           `json:"host_id"`
	Members         []string         `json:"members"`
	NowPlaying      Track            `json:"now_playing"`
	Queue           []Track          `json:"queue"`
	PendingRequests map[string]Track `json:"pending_requests"`
	Chat            []ChatMessage    `json:"chat"`
}
