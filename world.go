package main

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/saddalmatian/snakegame/protocol"
)

// ErrGameRunning rejects joins while a round is in progress.
var ErrGameRunning = errors.New("game is running, cannot join")

// sessionConn is the transport surface the world needs from a session.
// *ws.Conn satisfies it; tests use in-memory fakes.
type sessionConn interface {
	WriteMessage(payload []byte) error
	WriteClose() error
	Close() error
}

// World is the authoritative game state. Every mutation happens under
// mu; network sends never do. Methods ending in Locked expect mu held.
type World struct {
	mu    sync.Mutex
	clock Clock
	rng   *rand.Rand

	snakes  map[string]*snakeState
	order   []string // join order, used for deterministic iteration
	conns   map[string]sessionConn
	votes   map[string]bool
	food    []food
	hazards []hazard

	started bool
	running bool
	tick    uint64
}

func NewWorld(clock Clock, rng *rand.Rand) *World {
	return &World{
		clock:  clock,
		rng:    rng,
		snakes: make(map[string]*snakeState),
		conns:  make(map[string]sessionConn),
		votes:  make(map[string]bool),
	}
}

type foodWeight struct {
	kind   foodType
	weight int
}

var baselineFoodTable = []foodWeight{
	{foodNormal, 16},
	{foodWhite, 16},
	{foodPurple, 16},
	{foodBlack, 8},
	{foodGray, 16},
	{foodGold, 8},
	{foodYellow, 20},
}

// burstFoodTable is the baseline table minus yellow, reweighted
// proportionally. Yellow excluded so a burst cannot cascade.
var burstFoodTable = []foodWeight{
	{foodNormal, 20},
	{foodWhite, 20},
	{foodPurple, 20},
	{foodBlack, 10},
	{foodGray, 20},
	{foodGold, 10},
}

// Join admits a new participant and returns the snapshot sent as the
// init payload. Fails with ErrGameRunning while a round is in progress.
func (w *World) Join(id, name string, conn sessionConn) (protocol.GameState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return protocol.GameState{}, ErrGameRunning
	}

	display := name
	if display == "" {
		display = fmt.Sprintf("Player%d", len(w.snakes)+1)
	}
	if len(display) > maxNameLength {
		display = display[:maxNameLength]
	}

	w.snakes[id] = &snakeState{
		ID:    id,
		Name:  display,
		Body:  []coord{w.spawnCellLocked()},
		Dir:   dirRight,
		Alive: true,
	}
	w.order = append(w.order, id)
	w.conns[id] = conn
	w.votes[id] = false
	w.replenishFoodLocked()

	log.Info().Str("player", id).Str("name", display).Int("players", len(w.snakes)).Msg("player joined")
	return w.snapshotLocked(), nil
}

// Leave removes a participant; callers broadcast afterwards.
func (w *World) Leave(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.removePlayerLocked(id)
}

func (w *World) removePlayerLocked(id string) {
	if conn, ok := w.conns[id]; ok {
		conn.Close()
		delete(w.conns, id)
	}
	if _, ok := w.snakes[id]; !ok {
		return
	}
	delete(w.snakes, id)
	delete(w.votes, id)
	for i, other := range w.order {
		if other == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	w.replenishFoodLocked()
	log.Info().Str("player", id).Int("players", len(w.snakes)).Msg("player removed")
}

// PlayerName returns the display name for a participant, if present.
func (w *World) PlayerName(id string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.snakes[id]
	if !ok {
		return "", false
	}
	return s.Name, true
}

// VoteStart records a readiness vote. When the vote becomes unanimous
// the round starts in the same critical section and started is true.
func (w *World) VoteStart(id string) (started bool, vs protocol.VoteStatus) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.votes[id]; ok && !w.started {
		w.votes[id] = true
		if w.votesReadyLocked() {
			w.startRoundLocked()
			return true, w.voteStatusLocked()
		}
	}
	return false, w.voteStatusLocked()
}

// StartGame starts the round explicitly, subject to the same unanimity
// rule as voting. Returns the vote status for a vote_needed reply.
func (w *World) StartGame() (started bool, vs protocol.VoteStatus) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started && w.votesReadyLocked() {
		w.startRoundLocked()
		return true, w.voteStatusLocked()
	}
	return false, w.voteStatusLocked()
}

func (w *World) votesReadyLocked() bool {
	if len(w.snakes) < 1 || len(w.votes) != len(w.snakes) {
		return false
	}
	for _, voted := range w.votes {
		if !voted {
			return false
		}
	}
	return true
}

func (w *World) startRoundLocked() {
	w.started = true
	w.running = true
	for id := range w.votes {
		w.votes[id] = false
	}
	log.Info().Int("players", len(w.snakes)).Msg("round started")
}

// endRoundLocked folds round scores into cumulative totals and drops
// back out of the running phase. Round scores reset with the fold so a
// later restart cannot double-count them.
func (w *World) endRoundLocked() {
	for _, s := range w.snakes {
		s.TotalScore += s.Score
		s.Score = 0
	}
	w.running = false
	log.Info().Uint64("tick", w.tick).Msg("round ended")
}

// Restart forces the world back to the lobby: scores folded, snakes
// respawned, all items cleared and the baseline regenerated.
func (w *World) Restart() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.started = false
	w.running = false
	for id := range w.votes {
		w.votes[id] = false
	}
	for _, s := range w.snakes {
		s.TotalScore += s.Score
		s.Score = 0
		s.Body = []coord{w.spawnCellLocked()}
		s.Dir = dirRight
		s.Alive = true
		s.pendingGrowth = 0
		s.BoostUntil = time.Time{}
		s.SlowUntil = time.Time{}
	}
	w.food = nil
	w.hazards = nil
	w.replenishFoodLocked()
	log.Info().Msg("game restarted")
}

// SetDirection applies a heading change if the round is running, the
// snake is alive, and the change is neither a reversal nor a step onto
// the second body segment.
func (w *World) SetDirection(id string, dir direction) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, ok := w.snakes[id]
	if !ok || !s.Alive || !w.running || !dir.valid() {
		return
	}
	if dir == s.Dir.opposite() {
		return
	}
	if len(s.Body) > 1 && s.head().step(dir) == s.Body[1] {
		return
	}
	s.Dir = dir
}

// Chat relays trimmed non-empty text to every session, tagged with the
// sender's display name.
func (w *World) Chat(id, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	name, ok := w.PlayerName(id)
	if !ok {
		return
	}
	w.sendAll(protocol.EncodeChat(name, text))
}

// Snapshot returns the full serializable state.
func (w *World) Snapshot() protocol.GameState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// BroadcastState pushes the current snapshot to every session.
func (w *World) BroadcastState() {
	w.mu.Lock()
	payload := protocol.EncodeGameState(w.snapshotLocked())
	w.mu.Unlock()
	w.sendAll(payload)
}

// BroadcastSystem pushes a system notice to every session.
func (w *World) BroadcastSystem(text string) {
	w.sendAll(protocol.EncodeSystem(text))
}

// BroadcastVoteStatus pushes the current vote tallies to every session.
func (w *World) BroadcastVoteStatus() {
	w.mu.Lock()
	payload := protocol.EncodeVoteStatus(w.voteStatusLocked(), w.votesCopyLocked())
	w.mu.Unlock()
	w.sendAll(payload)
}

type connTarget struct {
	id   string
	conn sessionConn
}

// sendAll delivers payload to a snapshot of the registered sessions. A
// failed send means the client is gone: it gets the same removal as an
// explicit close. Never called with mu held.
func (w *World) sendAll(payload []byte) {
	w.mu.Lock()
	targets := make([]connTarget, 0, len(w.conns))
	for _, id := range w.order {
		if conn, ok := w.conns[id]; ok {
			targets = append(targets, connTarget{id, conn})
		}
	}
	w.mu.Unlock()

	for _, t := range targets {
		if err := t.conn.WriteMessage(payload); err != nil {
			log.Debug().Str("player", t.id).Err(err).Msg("send failed, dropping session")
			w.Leave(t.id)
		}
	}
}

// Shutdown closes every session best-effort and discards all state.
func (w *World) Shutdown() {
	w.mu.Lock()
	conns := make([]sessionConn, 0, len(w.conns))
	for _, conn := range w.conns {
		conns = append(conns, conn)
	}
	w.snakes = make(map[string]*snakeState)
	w.conns = make(map[string]sessionConn)
	w.votes = make(map[string]bool)
	w.order = nil
	w.food = nil
	w.hazards = nil
	w.running = false
	w.started = false
	w.mu.Unlock()

	for _, conn := range conns {
		conn.WriteClose()
		conn.Close()
	}
}

// worldStatus backs the /api/status endpoint.
type worldStatus struct {
	PlayerCount int    `json:"playerCount"`
	GameStarted bool   `json:"gameStarted"`
	GameRunning bool   `json:"gameRunning"`
	TickIndex   uint64 `json:"tickIndex"`
}

func (w *World) Status() worldStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return worldStatus{
		PlayerCount: len(w.snakes),
		GameStarted: w.started,
		GameRunning: w.running,
		TickIndex:   w.tick,
	}
}

func (w *World) voteStatusLocked() protocol.VoteStatus {
	total := len(w.snakes)
	voted := 0
	for _, v := range w.votes {
		if v {
			voted++
		}
	}
	return protocol.VoteStatus{
		TotalPlayers: total,
		VotedCount:   voted,
		VotesNeeded:  total - voted,
	}
}

func (w *World) votesCopyLocked() map[string]bool {
	votes := make(map[string]bool, len(w.votes))
	for id, v := range w.votes {
		votes[id] = v
	}
	return votes
}

func (w *World) snapshotLocked() protocol.GameState {
	now := w.clock.Now()
	snakes := make([]protocol.SnakeState, 0, len(w.order))
	for _, id := range w.order {
		s := w.snakes[id]
		body := make([][2]int, len(s.Body))
		for i, seg := range s.Body {
			body[i] = [2]int{seg.X, seg.Y}
		}
		snakes = append(snakes, protocol.SnakeState{
			PlayerID:       s.ID,
			PlayerName:     s.Name,
			Body:           body,
			Alive:          s.Alive,
			Score:          s.Score,
			TotalScore:     s.TotalScore,
			SpeedBoost:     s.boosted(now),
			SpeedReduction: s.slowed(now),
		})
	}

	foodList := make([]protocol.FoodState, len(w.food))
	for i, f := range w.food {
		foodList[i] = protocol.FoodState{X: f.Pos.X, Y: f.Pos.Y, Type: string(f.Type)}
	}
	hazards := make([]protocol.HazardState, len(w.hazards))
	for i, h := range w.hazards {
		hazards[i] = protocol.HazardState{
			X:         h.Pos.X,
			Y:         h.Pos.Y,
			Type:      hazardTypeGold,
			ExpiresAt: h.ExpiresAt.UnixMilli(),
		}
	}

	return protocol.GameState{
		Snakes:      snakes,
		Food:        foodList,
		Hazards:     hazards,
		GameStarted: w.started,
		GameRunning: w.running,
		PlayerCount: len(w.snakes),
		VoteStatus:  w.voteStatusLocked(),
		Votes:       w.votesCopyLocked(),
	}
}

// spawnCellLocked picks a snake spawn away from the board edges.
func (w *World) spawnCellLocked() coord {
	x := (5 + w.rng.Intn(boardCols-9)) * gridSize
	y := (5 + w.rng.Intn(boardRows-9)) * gridSize
	return coord{x, y}
}

func (w *World) randomCellLocked() coord {
	return coord{w.rng.Intn(boardCols) * gridSize, w.rng.Intn(boardRows) * gridSize}
}

// cellFreeLocked applies the free-cell rule: no body segment, food, or
// hazard on the cell.
func (w *World) cellFreeLocked(c coord) bool {
	for _, s := range w.snakes {
		if s.occupies(c) {
			return false
		}
	}
	for _, f := range w.food {
		if f.Pos == c {
			return false
		}
	}
	for _, h := range w.hazards {
		if h.Pos == c {
			return false
		}
	}
	return true
}

func (w *World) drawFoodTypeLocked(table []foodWeight) foodType {
	total := 0
	for _, entry := range table {
		total += entry.weight
	}
	n := w.rng.Intn(total)
	for _, entry := range table {
		n -= entry.weight
		if n < 0 {
			return entry.kind
		}
	}
	return table[len(table)-1].kind
}

// placeFoodLocked tries to place one item from the weighted table,
// giving up silently after the attempt budget.
func (w *World) placeFoodLocked(table []foodWeight) bool {
	for attempt := 0; attempt < placementAttempts; attempt++ {
		c := w.randomCellLocked()
		if !w.cellFreeLocked(c) {
			continue
		}
		w.food = append(w.food, food{Pos: c, Type: w.drawFoodTypeLocked(table)})
		return true
	}
	return false
}

// replenishFoodLocked tops the board up to one food per participant.
func (w *World) replenishFoodLocked() {
	target := len(w.snakes) * foodPerPlayer
	for len(w.food) < target {
		if !w.placeFoodLocked(baselineFoodTable) {
			break
		}
	}
}

func (w *World) burstFoodLocked(count int) {
	for i := 0; i < count; i++ {
		w.placeFoodLocked(burstFoodTable)
	}
}

func (w *World) spawnHazardsLocked(count int, now time.Time) {
	expiry := now.Add(hazardLifetime)
	for i := 0; i < count; i++ {
		for attempt := 0; attempt < placementAttempts; attempt++ {
			c := w.randomCellLocked()
			if !w.cellFreeLocked(c) {
				continue
			}
			w.hazards = append(w.hazards, hazard{Pos: c, ExpiresAt: expiry})
			break
		}
	}
}

func (w *World) expireHazardsLocked(now time.Time) {
	kept := w.hazards[:0]
	for _, h := range w.hazards {
		if h.ExpiresAt.After(now) {
			kept = append(kept, h)
		}
	}
	w.hazards = kept
}

func (w *World) aliveCountLocked() int {
	count := 0
	for _, s := range w.snakes {
		if s.Alive {
			count++
		}
	}
	return count
}
