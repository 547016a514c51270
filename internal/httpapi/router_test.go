package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/andy6609/roomchat/internal/chat"
)

func newTestAPI(t *testing.T, cfg Config) (*chat.Server, *httptest.Server) {
	t.Helper()
	srv := chat.NewServer(chat.Options{Addr: "127.0.0.1:0"})
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ts := httptest.NewServer(NewRouter(srv, cfg, nil))
	t.Cleanup(func() {
		ts.Close()
		srv.Stop()
	})
	return srv, ts
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestHealthAndMetrics(t *testing.T) {
	_, ts := newTestAPI(t, Config{})

	resp, body := get(t, ts.URL+"/healthz")
	if resp.StatusCode != http.StatusOK || body != "ok" {
		t.Fatalf("unexpected health response: %d %q", resp.StatusCode, body)
	}

	resp, body = get(t, ts.URL+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected metrics status %d", resp.StatusCode)
	}
	if !strings.Contains(body, "chat_connected_clients") {
		t.Fatal("metrics output is missing chat_connected_clients")
	}
}

func TestRoomsAPI(t *testing.T) {
	srv, ts := newTestAPI(t, Config{})

	resp, body := get(t, ts.URL+"/api/rooms")
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(body) != "[]" {
		t.Fatalf("unexpected empty listing: %d %q", resp.StatusCode, body)
	}

	lobby, err := srv.Registry().CreateRoom(nil, "Lobby")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	_, body = get(t, ts.URL+"/api/rooms")
	var rooms []chat.RoomInfo
	if err := json.Unmarshal([]byte(body), &rooms); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rooms) != 1 || rooms[0].Name != "Lobby" || rooms[0].ID != lobby.ID {
		t.Fatalf("unexpected rooms: %+v", rooms)
	}

	resp, _ = get(t, ts.URL+"/api/rooms/1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp, _ = get(t, ts.URL+"/api/rooms/99")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp, _ = get(t, ts.URL+"/api/rooms/abc")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestRateLimit(t *testing.T) {
	_, ts := newTestAPI(t, Config{RequestsPerMin: 2})

	var last int
	for i := 0; i < 3; i++ {
		resp, _ := get(t, ts.URL+"/api/sessions")
		last = resp.StatusCode
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on third request, got %d", last)
	}
}

func dialWS(t *testing.T, ts *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

func readUntil(t *testing.T, conn *websocket.Conn, want string) string {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %q: %v", want, err)
		}
		if strings.Contains(string(data), want) {
			return string(data)
		}
	}
}

func TestWebSocketChat(t *testing.T) {
	srv, ts := newTestAPI(t, Config{})

	alice, _, err := dialWS(t, ts, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	bob, _, err := dialWS(t, ts, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	send := func(c *websocket.Conn, line string) {
		if err := c.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	send(alice, "alice")
	send(alice, "/roomcreate Lobby")
	readUntil(t, alice, "alice joined the room.")

	send(bob, "bob")
	send(bob, "/roomconnect 1")
	readUntil(t, alice, "bob joined the room.")

	send(bob, "hello")
	if got := readUntil(t, alice, "bob:"); got != "bob: hello" {
		t.Fatalf("unexpected relay: %q", got)
	}

	sessions := srv.Registry().Sessions()
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %+v", sessions)
	}
}

func TestWebSocketOriginCheck(t *testing.T) {
	_, ts := newTestAPI(t, Config{AllowedOrigins: []string{"http://chat.example"}})

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := dialWS(t, ts, header)
	if err == nil {
		t.Fatal("expected handshake to fail for disallowed origin")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}

	header = http.Header{"Origin": []string{"HTTP://Chat.Example"}}
	if _, _, err := dialWS(t, ts, header); err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
}

func TestWebSocketRejectsEmbeddedLineBreaks(t *testing.T) {
	srv, ts := newTestAPI(t, Config{})

	alice, _, err := dialWS(t, ts, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	mallory, _, err := dialWS(t, ts, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	send := func(c *websocket.Conn, line string) {
		if err := c.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	send(alice, "alice")
	send(alice, "/roomcreate Lobby")
	readUntil(t, alice, "alice joined the room.")

	send(mallory, "mallory\r\n")
	send(mallory, "/roomconnect 1")
	readUntil(t, alice, "mallory joined the room.")

	send(mallory, "hi\nbob: forged line")
	_ = alice.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := alice.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for mallory to leave: %v", err)
		}
		line := string(data)
		if strings.Contains(line, "forged") {
			t.Fatalf("embedded line break was relayed: %q", line)
		}
		if line == "mallory left the room." {
			break
		}
	}

	eve, _, err := dialWS(t, ts, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	send(eve, "eve\nbob")
	_ = eve.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := eve.ReadMessage(); err == nil {
		t.Fatal("expected the server to close a session whose nickname has a line break")
	}

	sessions := srv.Registry().Sessions()
	if len(sessions) != 1 || sessions[0].Nickname != "alice" {
		t.Fatalf("unexpected sessions: %+v", sessions)
	}
}
