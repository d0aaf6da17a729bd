package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/saddalmatian/snakegame/protocol"
	"github.com/saddalmatian/snakegame/ws"
)

// session owns one participant's transport from handshake to teardown.
type session struct {
	id    string
	conn  *ws.Conn
	world *World

	// chatLimiter drops chat floods before they reach the broadcast
	// path; one message per second with a burst of three.
	chatLimiter *rate.Limiter
	joined      bool
}

func (s *server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Upgrade(w, r)
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	sess := &session{
		id:          newPlayerID(),
		conn:        conn,
		world:       s.world,
		chatLimiter: rate.NewLimiter(1, 3),
	}
	log.Info().Str("player", sess.id).Str("remote", r.RemoteAddr).Msg("websocket connected")
	sess.run()
}

// run is the session read loop. On any exit path the participant is
// removed from the world and the remaining sessions see the new state.
func (s *session) run() {
	defer func() {
		s.conn.Close()
		if s.joined {
			s.world.Leave(s.id)
			s.world.BroadcastState()
		}
		log.Info().Str("player", s.id).Msg("websocket disconnected")
	}()

	for {
		raw, err := s.conn.ReadMessage()
		if errors.Is(err, ws.ErrNoMessage) {
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug().Str("player", s.id).Err(err).Msg("read failed")
			}
			return
		}

		msg, err := protocol.DecodeClientMessage([]byte(raw))
		if err != nil {
			continue
		}
		if !s.dispatch(msg) {
			return
		}
	}
}

// dispatch handles one inbound command. The return value reports
// whether the session should keep reading.
func (s *session) dispatch(msg protocol.ClientMessage) bool {
	switch msg.Type {
	case protocol.TypeJoin:
		return s.handleJoin(msg.Name)

	case protocol.TypeStartGame:
		started, vs := s.world.StartGame()
		if started {
			s.world.BroadcastState()
			s.world.BroadcastSystem("Game started!")
		} else {
			s.send(protocol.EncodeVoteNeeded(vs))
		}

	case protocol.TypeVoteStart:
		started, vs := s.world.VoteStart(s.id)
		if started {
			s.world.BroadcastState()
			s.world.BroadcastSystem("All players voted! Game starting!")
		} else {
			s.world.BroadcastVoteStatus()
			if name, ok := s.world.PlayerName(s.id); ok {
				s.world.BroadcastSystem(fmt.Sprintf(
					"%s voted to start! (%d/%d)", name, vs.VotedCount, vs.TotalPlayers))
			}
		}

	case protocol.TypeRestartGame:
		s.world.Restart()
		s.world.BroadcastState()
		s.world.BroadcastSystem("Game has been reset! Vote to start again.")

	case protocol.TypeChat:
		if s.chatLimiter.Allow() {
			s.world.Chat(s.id, msg.Message)
		}

	case protocol.TypeMove:
		s.world.SetDirection(s.id, direction(msg.Direction))

	default:
		log.Debug().Str("player", s.id).Str("type", msg.Type).Msg("unknown message type")
	}
	return true
}

func (s *session) handleJoin(name string) bool {
	state, err := s.world.Join(s.id, name, s.conn)
	if err != nil {
		s.send(protocol.EncodeJoinRejected("Game is running, cannot join!"))
		return false
	}
	s.joined = true
	s.send(protocol.EncodeInit(s.id, state))
	s.world.BroadcastState()
	if name, ok := s.world.PlayerName(s.id); ok {
		s.world.BroadcastSystem(name + " joined the game!")
	}
	return true
}

func (s *session) send(payload []byte) {
	if err := s.conn.WriteMessage(payload); err != nil {
		log.Debug().Str("player", s.id).Err(err).Msg("direct send failed")
	}
}
