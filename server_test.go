package main

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Tests in this file exercise the real wire path: handshake against the
// hand-rolled upgrade, masked client frames decoded by the server codec,
// broadcasts read back through a stock websocket client.

func newTestServer(t *testing.T) (*httptest.Server, *World) {
	t.Helper()
	world := NewWorld(newTestClock(), rand.New(rand.NewSource(1)))
	staticDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<h1>snake</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(newServer(world, staticDir).routes())
	t.Cleanup(srv.Close)
	return srv, world
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// waitFor reads messages until one satisfies match, skipping the rest of
// the broadcast stream.
func waitFor(t *testing.T, conn *websocket.Conn, what string, match func(map[string]any) bool) map[string]any {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", what, err)
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("waiting for %s: bad JSON %q", what, data)
		}
		if match(msg) {
			return msg
		}
	}
	t.Fatalf("never received %s", what)
	return nil
}

func byType(msgType string) func(map[string]any) bool {
	return func(msg map[string]any) bool { return msg["type"] == msgType }
}

func join(t *testing.T, conn *websocket.Conn, name string) string {
	t.Helper()
	sendJSON(t, conn, map[string]string{"type": "join", "name": name})
	init := waitFor(t, conn, "init", byType("init"))
	id, _ := init["playerId"].(string)
	if id == "" {
		t.Fatal("init carried no player id")
	}
	return id
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS header = %q", got)
	}
	var status worldStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.PlayerCount != 0 || status.GameRunning {
		t.Fatalf("fresh status: %+v", status)
	}
}

func TestStaticFilesServed(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/index.html")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestJoinOverWebsocket(t *testing.T) {
	srv, world := newTestServer(t)
	conn := dialWS(t, srv)

	join(t, conn, "alice")

	waitFor(t, conn, "join notice", func(msg map[string]any) bool {
		text, _ := msg["message"].(string)
		return msg["type"] == "system" && strings.Contains(text, "alice joined")
	})
	if got := world.Status().PlayerCount; got != 1 {
		t.Fatalf("player count = %d, want 1", got)
	}
}

func TestVoteStartOverWebsocket(t *testing.T) {
	srv, world := newTestServer(t)
	alice := dialWS(t, srv)
	bob := dialWS(t, srv)
	join(t, alice, "alice")
	join(t, bob, "bob")

	sendJSON(t, alice, map[string]string{"type": "vote_start"})
	tally := waitFor(t, bob, "vote_status", byType("vote_status"))
	vs, _ := tally["voteStatus"].(map[string]any)
	if vs["votedCount"].(float64) != 1 || vs["votesNeeded"].(float64) != 1 {
		t.Fatalf("vote status after first vote: %v", vs)
	}

	sendJSON(t, bob, map[string]string{"type": "vote_start"})
	waitFor(t, alice, "start notice", func(msg map[string]any) bool {
		text, _ := msg["message"].(string)
		return msg["type"] == "system" && strings.Contains(text, "All players voted")
	})
	if !world.Status().GameRunning {
		t.Fatal("round not running after unanimous vote")
	}
}

func TestJoinRejectedOverWebsocket(t *testing.T) {
	srv, world := newTestServer(t)
	alice := dialWS(t, srv)
	join(t, alice, "alice")
	sendJSON(t, alice, map[string]string{"type": "vote_start"})
	waitFor(t, alice, "start notice", func(msg map[string]any) bool {
		text, _ := msg["message"].(string)
		return msg["type"] == "system" && strings.Contains(text, "voted")
	})

	late := dialWS(t, srv)
	sendJSON(t, late, map[string]string{"type": "join", "name": "late"})
	rejected := waitFor(t, late, "join_rejected", byType("join_rejected"))
	reason, _ := rejected["reason"].(string)
	if !strings.Contains(reason, "running") {
		t.Fatalf("rejection reason = %q", reason)
	}
	if got := world.Status().PlayerCount; got != 1 {
		t.Fatalf("player count = %d, want 1", got)
	}
}

func TestChatOverWebsocket(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := dialWS(t, srv)
	bob := dialWS(t, srv)
	join(t, alice, "alice")
	join(t, bob, "bob")

	sendJSON(t, alice, map[string]string{"type": "chat", "message": "good luck"})

	msg := waitFor(t, bob, "chat", byType("chat"))
	if msg["playerName"] != "alice" || msg["message"] != "good luck" {
		t.Fatalf("chat payload: %v", msg)
	}
}

func TestMoveOverWebsocket(t *testing.T) {
	srv, world := newTestServer(t)
	conn := dialWS(t, srv)
	id := join(t, conn, "alice")
	sendJSON(t, conn, map[string]string{"type": "vote_start"})

	sendJSON(t, conn, map[string]string{"type": "move", "direction": "up"})

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		world.mu.Lock()
		dir := world.snakes[id].Dir
		world.mu.Unlock()
		if dir == dirUp {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("heading never changed")
}

func TestDisconnectRemovesPlayer(t *testing.T) {
	srv, world := newTestServer(t)
	alice := dialWS(t, srv)
	bob := dialWS(t, srv)
	join(t, alice, "alice")
	join(t, bob, "bob")

	bob.Close()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if world.Status().PlayerCount == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("player count = %d after disconnect, want 1", world.Status().PlayerCount)
}
