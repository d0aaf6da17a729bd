package main

import (
	"time"

	"github.com/saddalmatian/snakegame/protocol"
)

// Run drives the simulation on a fixed wall-clock tick until stop
// closes. Each tick is one locked advance followed by a broadcast.
func (w *World) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(tickRate)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.Tick()
		}
	}
}

// Tick advances the world by one step while a round is running. No
// error may escape: every tick completes and broadcasts.
func (w *World) Tick() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.tick++
	now := w.clock.Now()

	w.expireHazardsLocked(now)

	// Primary sub-step: slowed snakes only act every fifth tick.
	movers := make([]*snakeState, 0, len(w.order))
	for _, id := range w.order {
		s := w.snakes[id]
		if !s.Alive {
			continue
		}
		if s.slowed(now) && w.tick%slowTickDivisor != 0 {
			continue
		}
		movers = append(movers, s)
	}
	w.advanceLocked(movers, now)

	// Boosted snakes get a second sub-step on even ticks, independent
	// of whether they acted in the primary one.
	if w.tick%boostTickDivisor == 0 {
		var extra []*snakeState
		for _, id := range w.order {
			s := w.snakes[id]
			if s.Alive && s.boosted(now) {
				extra = append(extra, s)
			}
		}
		w.advanceLocked(extra, now)
	}

	if w.aliveCountLocked() <= 1 && len(w.snakes) > 1 {
		w.endRoundLocked()
	}

	payload := protocol.EncodeGameState(w.snapshotLocked())
	w.mu.Unlock()

	w.sendAll(payload)
}

// advanceLocked performs one sub-step for the given movers: advance
// every head, resolve head-to-head collisions, then per-snake body,
// hazard and food resolution.
func (w *World) advanceLocked(movers []*snakeState, now time.Time) {
	for _, s := range movers {
		next := s.head().step(s.Dir)
		if !next.inBounds() {
			s.Alive = false
			continue
		}
		s.Body = append([]coord{next}, s.Body...)
	}

	w.resolveHeadCollisionsLocked()

	for _, s := range movers {
		if !s.Alive {
			continue
		}
		head := s.head()

		if w.selfCollision(s) {
			s.Alive = false
			continue
		}

		for _, id := range w.order {
			other := w.snakes[id]
			if other == s || !other.Alive {
				continue
			}
			if bodyContains(other, head) {
				s.Alive = false
				other.Score += bodyKillBonus
				break
			}
		}
		if !s.Alive {
			continue
		}

		if idx := w.hazardIndexAtLocked(head); idx >= 0 {
			s.Alive = false
			w.hazards = append(w.hazards[:idx], w.hazards[idx+1:]...)
			continue
		}

		if idx := w.foodIndexAtLocked(head); idx >= 0 {
			eaten := w.food[idx]
			w.food = append(w.food[:idx], w.food[idx+1:]...)
			w.applyFoodLocked(s, eaten, now)
			w.replenishFoodLocked()
		}

		// Tail rule: pending growth skips one removal per unit.
		if s.pendingGrowth > 0 {
			s.pendingGrowth--
		} else if len(s.Body) > 1 {
			s.Body = s.Body[:len(s.Body)-1]
		}
	}
}

// resolveHeadCollisionsLocked applies the head-to-head tie-break: the
// strictly longer snake survives and scores; equal lengths kill both.
func (w *World) resolveHeadCollisionsLocked() {
	type pair struct{ a, b *snakeState }
	var collisions []pair
	for i := 0; i < len(w.order); i++ {
		first := w.snakes[w.order[i]]
		if !first.Alive {
			continue
		}
		for j := i + 1; j < len(w.order); j++ {
			second := w.snakes[w.order[j]]
			if !second.Alive {
				continue
			}
			if first.head() == second.head() {
				collisions = append(collisions, pair{first, second})
			}
		}
	}

	for _, p := range collisions {
		switch {
		case len(p.a.Body) > len(p.b.Body):
			p.b.Alive = false
			p.a.Score += headKillBonus
		case len(p.b.Body) > len(p.a.Body):
			p.a.Alive = false
			p.b.Score += headKillBonus
		default:
			p.a.Alive = false
			p.b.Alive = false
		}
	}
}

func (w *World) selfCollision(s *snakeState) bool {
	head := s.head()
	for _, seg := range s.Body[1:] {
		if seg == head {
			return true
		}
	}
	return false
}

// bodyContains checks the non-head segments only; head overlap is the
// head-to-head case and resolved separately.
func bodyContains(s *snakeState, c coord) bool {
	for _, seg := range s.Body[1:] {
		if seg == c {
			return true
		}
	}
	return false
}

func (w *World) hazardIndexAtLocked(c coord) int {
	for i, h := range w.hazards {
		if h.Pos == c {
			return i
		}
	}
	return -1
}

func (w *World) foodIndexAtLocked(c coord) int {
	for i, f := range w.food {
		if f.Pos == c {
			return i
		}
	}
	return -1
}

func (w *World) applyFoodLocked(s *snakeState, eaten food, now time.Time) {
	switch eaten.Type {
	case foodNormal:
		s.pendingGrowth += 1
		s.Score += 10
	case foodWhite:
		s.pendingGrowth += 10
		s.Score += 50
	case foodPurple:
		s.BoostUntil = now.Add(speedWindow)
		s.Score += 30
	case foodBlack:
		s.pendingGrowth += 20
		s.Score += 100
	case foodGray:
		s.SlowUntil = now.Add(speedWindow)
		s.Score -= 10
	case foodGold:
		w.spawnHazardsLocked(w.aliveCountLocked()*hazardsPerAliveSnake, now)
		s.Score += 200
	case foodYellow:
		w.burstFoodLocked(yellowBurstCount)
		s.Score += 150
	}
}
