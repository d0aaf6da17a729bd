package main

import "time"

const (
	boardWidth  = 1000
	boardHeight = 700
	gridSize    = 20
	boardCols   = boardWidth / gridSize
	boardRows   = boardHeight / gridSize

	tickRate          = 100 * time.Millisecond
	foodPerPlayer     = 1
	placementAttempts = 50

	slowTickDivisor  = 5
	boostTickDivisor = 2

	speedWindow    = 5 * time.Second
	hazardLifetime = 5 * time.Second

	bodyKillBonus = 10
	headKillBonus = 20

	yellowBurstCount     = 50
	hazardsPerAliveSnake = 20

	maxNameLength = 32
)

type coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type direction string

const (
	dirUp    direction = "up"
	dirDown  direction = "down"
	dirLeft  direction = "left"
	dirRight direction = "right"
)

// opposite returns the reverse heading, or "" for unknown input.
func (d direction) opposite() direction {
	switch d {
	case dirUp:
		return dirDown
	case dirDown:
		return dirUp
	case dirLeft:
		return dirRight
	case dirRight:
		return dirLeft
	}
	return ""
}

func (d direction) valid() bool {
	switch d {
	case dirUp, dirDown, dirLeft, dirRight:
		return true
	}
	return false
}

// step returns the cell one grid step from c along d.
func (c coord) step(d direction) coord {
	switch d {
	case dirUp:
		return coord{c.X, c.Y - gridSize}
	case dirDown:
		return coord{c.X, c.Y + gridSize}
	case dirLeft:
		return coord{c.X - gridSize, c.Y}
	case dirRight:
		return coord{c.X + gridSize, c.Y}
	}
	return c
}

func (c coord) inBounds() bool {
	return c.X >= 0 && c.X < boardWidth && c.Y >= 0 && c.Y < boardHeight
}

type foodType string

const (
	foodNormal foodType = "normal"
	foodWhite  foodType = "white"
	foodPurple foodType = "purple"
	foodBlack  foodType = "black"
	foodGray   foodType = "gray"
	foodGold   foodType = "gold"
	foodYellow foodType = "yellow"
)

type food struct {
	Pos  coord
	Type foodType
}

const hazardTypeGold = "deadly_gold"

type hazard struct {
	Pos       coord
	ExpiresAt time.Time
}

// snakeState is one participant's entity. Body is head-first; once Alive
// flips false the body is frozen until restart.
type snakeState struct {
	ID            string
	Name          string
	Body          []coord
	Dir           direction
	Alive         bool
	Score         int
	TotalScore    int
	BoostUntil    time.Time
	SlowUntil     time.Time
	pendingGrowth int
}

func (s *snakeState) head() coord { return s.Body[0] }

func (s *snakeState) boosted(now time.Time) bool { return now.Before(s.BoostUntil) }

func (s *snakeState) slowed(now time.Time) bool { return now.Before(s.SlowUntil) }

// occupies reports whether the cell is covered by any body segment.
func (s *snakeState) occupies(c coord) bool {
	for _, seg := range s.Body {
		if seg == c {
			return true
		}
	}
	return false
}

// Clock abstracts the time source so tests can pin it.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
