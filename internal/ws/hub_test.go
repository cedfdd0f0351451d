package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nuestra-historia/internal/database/dbtest"
	"nuestra-historia/internal/gallery"
	"nuestra-historia/internal/memories"
	"nuestra-historia/internal/realtime"
	"nuestra-historia/internal/upload"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// instantWidget uploads every file to the same URL.
type instantWidget struct{}

func (instantWidget) Open(_ context.Context, _ upload.Config, file upload.File) <-chan upload.Result {
	out := make(chan upload.Result, 1)
	out <- upload.Result{SecureURL: "https://res.example/" + file.Name, ResourceType: "image", Format: "jpg"}
	return out
}

type event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	coll := realtime.NewGormCollection(dbtest.Open(t))
	t.Cleanup(func() { coll.Close() })
	store := memories.NewStore(coll, "memories")

	hub := NewHub(store, instantWidget{}, upload.Config{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return hub, server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, cmdType string, data interface{}) {
	t.Helper()
	cmd := Command{Type: cmdType}
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		cmd.Data = raw
	}
	require.NoError(t, conn.WriteJSON(cmd))
}

// next reads events until one matches.
func next(t *testing.T, conn *websocket.Conn, match func(event) bool) event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var ev event
		require.NoError(t, conn.ReadJSON(&ev))
		if match(ev) {
			return ev
		}
	}
}

func nextScreen(t *testing.T, conn *websocket.Conn, cond func(gallery.Screen) bool) gallery.Screen {
	t.Helper()
	var s gallery.Screen
	next(t, conn, func(ev event) bool {
		if ev.Type != "view" {
			return false
		}
		s = gallery.Screen{}
		if err := json.Unmarshal(ev.Data, &s); err != nil {
			return false
		}
		return cond(s)
	})
	return s
}

func TestSessionUploadsThenDeletes(t *testing.T) {
	_, server := startHub(t)
	conn := dial(t, server)

	first := nextScreen(t, conn, func(s gallery.Screen) bool { return true })
	assert.Equal(t, gallery.Idle, first.State)
	assert.Empty(t, first.Memories)

	send(t, conn, "open_form", nil)
	nextScreen(t, conn, func(s gallery.Screen) bool { return s.State == gallery.FormOpen })

	send(t, conn, "update_draft", gallery.Draft{Title: "Playa", Date: "2024-05-01"})
	send(t, conn, "submit", submitData{Filename: "playa.jpg", Source: "local", Content: []byte("jpeg")})

	done := nextScreen(t, conn, func(s gallery.Screen) bool {
		return s.State == gallery.Idle && len(s.Memories) == 1
	})
	m := done.Memories[0]
	assert.Equal(t, "Playa", m.Title)
	assert.Equal(t, "2024-05-01", m.Date)
	assert.Equal(t, "https://res.example/playa.jpg", m.URL)
	assert.Equal(t, memories.KindImage, m.Kind)

	send(t, conn, "select", selectData{ID: m.ID})
	nextScreen(t, conn, func(s gallery.Screen) bool { return s.Selected != nil })

	send(t, conn, "request_delete", nil)
	nextScreen(t, conn, func(s gallery.Screen) bool { return s.ConfirmingDelete })

	send(t, conn, "confirm_delete", nil)
	nextScreen(t, conn, func(s gallery.Screen) bool {
		return len(s.Memories) == 0 && s.Selected == nil && !s.Deleting
	})
}

func TestSessionReportsCommandErrors(t *testing.T) {
	_, server := startHub(t)
	conn := dial(t, server)

	send(t, conn, "dance", nil)
	ev := next(t, conn, func(ev event) bool { return ev.Type == "error" })
	assert.Contains(t, string(ev.Data), "unknown command")

	send(t, conn, "update_draft", gallery.Draft{Title: "x"})
	ev = next(t, conn, func(ev event) bool { return ev.Type == "error" })
	assert.Contains(t, string(ev.Data), gallery.ErrFormNotOpen.Error())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	ev = next(t, conn, func(ev event) bool { return ev.Type == "error" })
	assert.Contains(t, string(ev.Data), "malformed command")

	// the connection survives bad input
	send(t, conn, "open_form", nil)
	nextScreen(t, conn, func(s gallery.Screen) bool { return s.State == gallery.FormOpen })
}

func TestSessionsAreIndependent(t *testing.T) {
	_, server := startHub(t)
	a := dial(t, server)
	b := dial(t, server)

	send(t, a, "open_form", nil)
	nextScreen(t, a, func(s gallery.Screen) bool { return s.State == gallery.FormOpen })
	send(t, a, "update_draft", gallery.Draft{Title: "Cumple"})
	send(t, a, "submit", submitData{Filename: "cumple.jpg", Content: []byte("jpeg")})

	// b never opened a form but still sees the new memory
	s := nextScreen(t, b, func(s gallery.Screen) bool { return len(s.Memories) == 1 })
	assert.Equal(t, gallery.Idle, s.State)
	assert.Equal(t, "Cumple", s.Memories[0].Title)
}

func TestDisconnectUnregisters(t *testing.T) {
	hub, server := startHub(t)
	conn := dial(t, server)
	nextScreen(t, conn, func(s gallery.Screen) bool { return true })
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestReadLimitFitsMaxFile(t *testing.T) {
	assert.Greater(t, readLimit(upload.Config{MaxFileSizeBytes: 10_000_000}), int64(13_333_336))
	assert.Greater(t, readLimit(upload.Config{}), int64(32<<20))
}
