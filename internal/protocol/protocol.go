// Package protocol defines the JSON wire format spoken over the websocket:
// opcodes, request and response envelopes, and typed per-opcode payloads.
package protocol

import "encoding/json"

// OpCode identifies a protocol operation or response kind.
type OpCode string

// Response-only opcodes.
const (
	OpOK           OpCode = "OK"
	OpError        OpCode = "ERROR"
	OpNotification OpCode = "NOTIFICATION"
)

// Request opcodes.
const (
	OpConnect          OpCode = "CONNECT"
	OpCreateLobby      OpCode = "CREATE_LOBBY"
	OpJoinLobby        OpCode = "JOIN_LOBBY"
	OpLeaveLobby       OpCode = "LEAVE_LOBBY"
	OpGetLobbyIDs      OpCode = "GET_LOBBY_IDS"
	OpGetLobbyMembers  OpCode = "GET_LOBBY_MEMBERS"
	OpMessage          OpCode = "MESSAGE"
	OpGetMessages      OpCode = "GET_MESSAGES"
	OpSetMusicState    OpCode = "SET_MUSIC_STATE"
	OpSyncMusic        OpCode = "SYNC_MUSIC"
	OpSetQueue         OpCode = "SET_QUEUE"
	OpSyncQueue        OpCode = "SYNC_QUEUE"
	OpRequestMusicPlay OpCode = "REQUEST_MUSIC_PLAY"
)

// Known reports whether op is one of the request opcodes a client may send.
// Anything else is client-invented input and must not leak into bounded
// value sets like metric labels.
func (op OpCode) Known() bool {
	switch op {
	case OpConnect, OpCreateLobby, OpJoinLobby, OpLeaveLobby,
		OpGetLobbyIDs, OpGetLobbyMembers, OpMessage, OpGetMessages,
		OpSetMusicState, OpSyncMusic, OpSetQueue, OpSyncQueue,
		OpRequestMusicPlay:
		return true
	}
	return false
}

// Request is the inbound frame envelope. Value is decoded per opcode.
type Request struct {
	OpCode OpCode          `json:"op_code"`
	Value  json.RawMessage `json:"value"`
}

// Response is the outbound frame envelope. For names the request opcode the
// frame answers, so clients can route unsolicited pushes.
type Response struct {
	OpCode OpCode `json:"op_code"`
	For    OpCode `json:"for,omitempty"`
	Value  any    `json:"value,omitempty"`
}

// OK builds a success response answering the given opcode.
func OK(forOp OpCode, value any) Response {
	return Response{OpCode: OpOK, For: forOp, Value: value}
}

// Error builds an error response answering the given opcode.
func Error(forOp OpCode, message string) Response {
	return Response{OpCode: OpError, For: forOp, Value: message}
}

// Notification builds an unsolicited notification push.
func Notification(value any) Response {
	return Response{OpCode: OpNotification, For: OpNotification, Value: value}
}
