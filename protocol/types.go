// Package protocol defines the JSON message envelope exchanged with
// clients and the snapshot types serialized into it. Inbound and
// outbound message kinds form a closed set; dispatch sites switch over
// the Type discriminator.
package protocol

// Inbound message types.
const (
	TypeJoin        = "join"
	TypeStartGame   = "start_game"
	TypeVoteStart   = "vote_start"
	TypeRestartGame = "restart_game"
	TypeChat        = "chat"
	TypeMove        = "move"
)

// Outbound message types.
const (
	TypeInit         = "init"
	TypeGameState    = "game_state"
	TypeJoinRejected = "join_rejected"
	TypeVoteNeeded   = "vote_needed"
	TypeVoteStatus   = "vote_status"
	TypeSystem       = "system"
)

// ClientMessage is the inbound envelope. Only the fields relevant to a
// given Type are populated.
type ClientMessage struct {
	Type      string `json:"type"`
	Name      string `json:"name,omitempty"`
	Direction string `json:"direction,omitempty"`
	Message   string `json:"message,omitempty"`
}

type SnakeState struct {
	PlayerID       string   `json:"playerId"`
	PlayerName     string   `json:"playerName"`
	Body           [][2]int `json:"body"`
	Alive          bool     `json:"alive"`
	Score          int      `json:"score"`
	TotalScore     int      `json:"totalScore"`
	SpeedBoost     bool     `json:"speedBoost"`
	SpeedReduction bool     `json:"speedReduction"`
}

type FoodState struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Type string `json:"type"`
}

type HazardState struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Type      string `json:"type"`
	ExpiresAt int64  `json:"expiresAt"` // unix milliseconds
}

type VoteStatus struct {
	TotalPlayers int `json:"totalPlayers"`
	VotedCount   int `json:"votedCount"`
	VotesNeeded  int `json:"votesNeeded"`
}

type GameState struct {
	Snakes      []SnakeState    `json:"snakes"`
	Food        []FoodState     `json:"food"`
	Hazards     []HazardState   `json:"hazards"`
	GameStarted bool            `json:"gameStarted"`
	GameRunning bool            `json:"gameRunning"`
	PlayerCount int             `json:"playerCount"`
	VoteStatus  VoteStatus      `json:"voteStatus"`
	Votes       map[string]bool `json:"votes"`
}
