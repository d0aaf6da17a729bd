package main

import (
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/saddalmatian/snakegame/ws"
)

// server routes upgrade requests into websocket sessions and everything
// else to the static client files.
type server struct {
	world  *World
	static http.Handler
}

func newServer(world *World, staticDir string) *server {
	return &server{
		world:  world,
		static: http.FileServer(http.Dir(staticDir)),
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/status", withCORS(http.HandlerFunc(s.handleStatus)))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if ws.IsUpgrade(r) {
			s.handleWS(w, r)
			return
		}
		s.static.ServeHTTP(w, r)
	})
	return mux
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.world.Status())
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	cfg := loadConfig()
	zerolog.SetGlobalLevel(cfg.LogLevel)

	world := NewWorld(systemClock{}, rand.New(rand.NewSource(time.Now().UnixNano())))
	stop := make(chan struct{})
	go world.Run(stop)

	srv := newServer(world, cfg.StaticDir)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutting down")
		close(stop)
		world.Shutdown()
		os.Exit(0)
	}()

	log.Info().Str("addr", cfg.Addr).Msg("snake game server listening")
	if err := http.ListenAndServe(cfg.Addr, srv.routes()); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}
