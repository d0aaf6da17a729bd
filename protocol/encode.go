package protocol

import "encoding/json"

type initMessage struct {
	Type      string    `json:"type"`
	PlayerID  string    `json:"playerId"`
	GameState GameState `json:"gameState"`
}

type stateMessage struct {
	Type      string    `json:"type"`
	GameState GameState `json:"gameState"`
}

type joinRejectedMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type voteNeededMessage struct {
	Type       string     `json:"type"`
	VoteStatus VoteStatus `json:"voteStatus"`
}

type voteStatusMessage struct {
	Type       string          `json:"type"`
	VoteStatus VoteStatus      `json:"voteStatus"`
	Votes      map[string]bool `json:"votes"`
}

type chatMessage struct {
	Type       string `json:"type"`
	PlayerName string `json:"playerName"`
	Message    string `json:"message"`
}

type systemMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// The marshal calls below cannot fail for these types, so errors are
// discarded at the encode boundary.

func EncodeInit(playerID string, gs GameState) []byte {
	data, _ := json.Marshal(initMessage{Type: TypeInit, PlayerID: playerID, GameState: gs})
	return data
}

func EncodeGameState(gs GameState) []byte {
	data, _ := json.Marshal(stateMessage{Type: TypeGameState, GameState: gs})
	return data
}

func EncodeJoinRejected(reason string) []byte {
	data, _ := json.Marshal(joinRejectedMessage{Type: TypeJoinRejected, Reason: reason})
	return data
}

func EncodeVoteNeeded(vs VoteStatus) []byte {
	data, _ := json.Marshal(voteNeededMessage{Type: TypeVoteNeeded, VoteStatus: vs})
	return data
}

func EncodeVoteStatus(vs VoteStatus, votes map[string]bool) []byte {
	data, _ := json.Marshal(voteStatusMessage{Type: TypeVoteStatus, VoteStatus: vs, Votes: votes})
	return data
}

func EncodeChat(playerName, message string) []byte {
	data, _ := json.Marshal(chatMessage{Type: TypeChat, PlayerName: playerName, Message: message})
	return data
}

func EncodeSystem(message string) []byte {
	data, _ := json.Marshal(systemMessage{Type: TypeSystem, Message: message})
	return data
}

// DecodeClientMessage parses one inbound envelope.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	err := json.Unmarshal(data, &msg)
	return msg, err
}
