package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fy-st0rm/lobic/internal/apperrors"
	"github.com/fy-st0rm/lobic/internal/domain"
)

func TestDecodeConnectPayload(t *testing.T) {
	var p ConnectPayload
	err := Decode(json.RawMessage(`{"user_id":"u1"}`), &p)
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)
}

func TestDecodeRejectsMissingValue(t *testing.T) {
	var p ConnectPayload
	err := Decode(nil, &p)
	requireCode(t, err, apperrors.CodeMalformed)
}

func TestDecodeRejectsWrongShape(t *testing.T) {
	var p ConnectPayload
	err := Decode(json.RawMessage(`"just a string"`), &p)
	requireCode(t, err, apperrors.CodeMalformed)
}

func TestDecodeRejectsMissingFields(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		dst  payload
	}{
		{"connect without user", `{}`, &ConnectPayload{}},
		{"create without host", `{}`, &CreateLobbyPayload{}},
		{"join without lobby", `{"user_id":"u1"}`, &JoinLobbyPayload{}},
		{"join without user", `{"lobby_id":"l1"}`, &JoinLobbyPayload{}},
		{"leave without user", `{"lobby_id":"l1"}`, &LeaveLobbyPayload{}},
		{"message without text", `{"lobby_id":"l1","user_id":"u1"}`, &MessagePayload{}},
		{"members without lobby", `{}`, &GetLobbyMembersPayload{}},
		{"queue without tracks", `{"lobby_id":"l1"}`, &SetQueuePayload{}},
		{"play request without music", `{"lobby_id":"l1"}`, &RequestMusicPlayPayload{}},
		{"play request without music id", `{"lobby_id":"l1","music":{"title":"x"}}`, &RequestMusicPlayPayload{}},
		{"sync music without state", `{"lobby_id":"l1"}`, &SyncMusicPayload{}},
		{"music state without artist", `{"lobby_id":"l1","user_id":"u1","music_id":"m1","title":"t","image_url":"i","timestamp":1,"state":"PLAY"}`, &SetMusicStatePayload{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Decode(json.RawMessage(tc.raw), tc.dst)
			requireCode(t, err, apperrors.CodeMalformed)
		})
	}
}

func TestDecodeSetMusicState(t *testing.T) {
	raw := json.RawMessage(`{
		"lobby_id": "l1",
		"user_id": "u1",
		"music_id": "song-9",
		"title": "Holiday",
		"artist": "Green Day",
		"image_url": "http://img/9",
		"timestamp": 42.5,
		"state": "PLAY"
	}`)

	var p SetMusicStatePayload
	require.NoError(t, Decode(raw, &p))

	track := p.Track()
	assert.Equal(t, "song-9", track.ID)
	assert.Equal(t, 42.5, track.Timestamp)
	assert.Equal(t, domain.StatePlay, track.State)
}

func TestDecodeSetMusicStateRequiresTimestamp(t *testing.T) {
	raw := json.RawMessage(`{"lobby_id":"l1","user_id":"u1","music_id":"m1","title":"t","artist":"a","image_url":"i","state":"PLAY"}`)

	var p SetMusicStatePayload
	err := Decode(raw, &p)
	requireCode(t, err, apperrors.CodeMalformed)
}

func TestDecodeSetMusicStateZeroTimestampIsValid(t *testing.T) {
	raw := json.RawMessage(`{"lobby_id":"l1","user_id":"u1","music_id":"m1","title":"t","artist":"a","image_url":"i","timestamp":0,"state":"PAUSE"}`)

	var p SetMusicStatePayload
	require.NoError(t, Decode(raw, &p))
	assert.Equal(t, 0.0, *p.Timestamp)
}

func TestDecodeSetMusicStateRejectsUnknownState(t *testing.T) {
	raw := json.RawMessage(`{"lobby_id":"l1","user_id":"u1","music_id":"m1","title":"t","artist":"a","image_url":"i","timestamp":1,"state":"REWIND"}`)

	var p SetMusicStatePayload
	err := Decode(raw, &p)
	requireCode(t, err, apperrors.CodeMalformed)
}

func TestDecodeSetQueueAcceptsEmptyQueue(t *testing.T) {
	raw := json.RawMessage(`{"lobby_id":"l1","queue":[]}`)

	var p SetQueuePayload
	require.NoError(t, Decode(raw, &p))
	assert.Empty(t, p.Queue)
}

func TestResponseEnvelopes(t *testing.T) {
	ok := OK(OpJoinLobby, "welcome")
	assert.Equal(t, OpOK, ok.OpCode)
	assert.Equal(t, OpJoinLobby, ok.For)

	errResp := Error(OpJoinLobby, "invalid lobby id")
	assert.Equal(t, OpError, errResp.OpCode)
	assert.Equal(t, "invalid lobby id", errResp.Value)

	notif := Notification(map[string]string{"op_code": "REQUEST_MUSIC_PLAY"})
	assert.Equal(t, OpNotification, notif.OpCode)
	assert.Equal(t, OpNotification, notif.For)
}

func TestResponseOmitsEmptyFor(t *testing.T) {
	b, err := json.Marshal(Response{OpCode: OpOK, Value: "done"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"op_code":"OK","value":"done"}`, string(b))
}

func requireCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	structured := apperrors.AsError(err)
	require.NotNil(t, structured)
	require.Equal(t, code, structured.Code)
}
