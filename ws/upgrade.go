package ws

import (
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
)

// Fixed GUID from RFC 6455 §1.3; every conforming server appends it to
// the client key before hashing.
const handshakeGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

var errNotHijackable = errors.New("ws: response writer does not support hijacking")

// AcceptKey computes the Sec-WebSocket-Accept value for a client key.
func AcceptKey(clientKey string) string {
	digest := sha1.Sum([]byte(clientKey + handshakeGUID))
	return base64.StdEncoding.EncodeToString(digest[:])
}

// IsUpgrade reports whether the request asks for a websocket upgrade.
func IsUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}

// Upgrade performs the handshake and hands back the raw connection
// wrapped in a Conn. On failure an HTTP error has already been written.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	key := r.Header.Get("Sec-WebSocket-Key")
	if key == "" {
		http.Error(w, "missing Sec-WebSocket-Key", http.StatusBadRequest)
		return nil, errors.New("ws: missing Sec-WebSocket-Key")
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "websocket unsupported", http.StatusInternalServerError)
		return nil, errNotHijackable
	}
	raw, brw, err := hj.Hijack()
	if err != nil {
		return nil, err
	}

	var resp strings.Builder
	resp.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	resp.WriteString("Upgrade: websocket\r\n")
	resp.WriteString("Connection: Upgrade\r\n")
	resp.WriteString("Sec-WebSocket-Accept: " + AcceptKey(key) + "\r\n\r\n")
	if _, err := brw.WriteString(resp.String()); err != nil {
		raw.Close()
		return nil, err
	}
	if err := brw.Flush(); err != nil {
		raw.Close()
		return nil, err
	}
	return NewConn(raw, brw), nil
}
