package collabclient

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantum-dashboard/internal/collab"
	"quantum-dashboard/internal/model"
)

const waitFor = 2 * time.Second

type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

func (s *memoryStore) GetSessionByCode(_ context.Context, code string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[code], nil
}

func (s *memoryStore) RecentMessages(context.Context, string, int) ([]model.ChatMessage, error) {
	return nil, nil
}

func (s *memoryStore) SaveDocument(_ context.Context, code, content string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[code]; ok {
		sess.DocumentContent, sess.DocumentVersion = content, version
	}
	return nil
}

type discardSink struct{}

func (discardSink) RecordChatMessage(context.Context, model.ChatMessage) error { return nil }

type testServer struct {
	*httptest.Server
	hub   *collab.Hub
	dials atomic.Int32

	mu    sync.Mutex
	conns []*websocket.Conn
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := &memoryStore{sessions: map[string]*model.Session{
		"bell01": {Code: "bell01", Name: "Bell pair", DocumentContent: "h q[0];", DocumentVersion: 1},
		"ghz03":  {Code: "ghz03", Name: "GHZ"},
	}}
	ts := &testServer{hub: collab.NewHub(store, discardSink{}, collab.HubConfig{ChatHistoryLimit: 20}, quietLogger())}
	upgrader := websocket.Upgrader{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.dials.Add(1)
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ts.mu.Lock()
		ts.conns = append(ts.conns, ws)
		ts.mu.Unlock()
		q := r.URL.Query()
		_ = ts.hub.Serve(r.Context(), ws, q.Get("sessionId"), collab.Client{
			UserID:    q.Get("userId"),
			UserName:  q.Get("userName"),
			ProjectID: q.Get("projectId"),
		})
	}))
	t.Cleanup(func() {
		ts.hub.Close(context.Background())
		ts.Close()
	})
	return ts
}

// dropAll closes every server side socket without a close handshake.
func (ts *testServer) dropAll() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for _, ws := range ts.conns {
		_ = ws.UnderlyingConn().Close()
	}
	ts.conns = nil
}

func (ts *testServer) options(userID, name, session string) Options {
	return Options{
		BaseURL:   ts.URL,
		UserID:    userID,
		UserName:  name,
		SessionID: session,
		ProjectID: "p1",
		Enabled:   true,
		Logger:    quietLogger(),
	}
}

func openChannel(t *testing.T, opts Options) *Channel {
	t.Helper()
	ch, err := Open(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })
	return ch
}

func waitJoined(t *testing.T, ch *Channel, participants int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return ch.State() == StateConnected && len(ch.Participants()) == participants
	}, waitFor, 10*time.Millisecond)
}

func TestOpen_DisabledNeverDials(t *testing.T) {
	ts := newTestServer(t)

	cases := map[string]func(*Options){
		"disabled":        func(o *Options) { o.Enabled = false },
		"missing user":    func(o *Options) { o.UserID = "" },
		"missing session": func(o *Options) { o.SessionID = "" },
	}
	for name, tweak := range cases {
		t.Run(name, func(t *testing.T) {
			opts := ts.options("1", "ada", "bell01")
			tweak(&opts)
			ch := openChannel(t, opts)
			assert.Equal(t, StateDisconnected, ch.State())
			assert.False(t, ch.SendChatMessage("hello"))
		})
	}
	assert.Zero(t, ts.dials.Load())
}

func TestOpen_OneSocketAndCloseIsIdempotent(t *testing.T) {
	ts := newTestServer(t)
	ch := openChannel(t, ts.options("1", "ada", "bell01"))

	waitJoined(t, ch, 1)
	assert.Equal(t, int32(1), ts.dials.Load())
	assert.Equal(t, collab.DocumentState{Content: "h q[0];", Version: 1}, ch.Document())

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
	assert.Equal(t, StateDisconnected, ch.State())
	assert.Equal(t, int32(1), ts.dials.Load())
}

func TestOpen_UnknownSessionFails(t *testing.T) {
	ts := newTestServer(t)
	ch := openChannel(t, ts.options("1", "ada", "missing"))

	// the upgrade succeeds and the hub then closes the socket
	require.Eventually(t, func() bool { return ch.State() == StateDisconnected }, waitFor, 10*time.Millisecond)
	assert.Empty(t, ch.Participants())
}

func TestOpen_DialFailureWithoutReconnect(t *testing.T) {
	opts := Options{BaseURL: "http://127.0.0.1:1", UserID: "1", SessionID: "bell01", Enabled: true, Logger: quietLogger()}
	_, err := Open(context.Background(), opts)
	assert.Error(t, err)

	opts.BaseURL = "ftp://example.com"
	_, err = Open(context.Background(), opts)
	assert.ErrorContains(t, err, "unsupported base url scheme")
}

func TestChannel_PresenceTracksJoinsAndLeaves(t *testing.T) {
	ts := newTestServer(t)
	ada := openChannel(t, ts.options("1", "ada", "bell01"))
	waitJoined(t, ada, 1)

	bob := openChannel(t, ts.options("2", "bob", "bell01"))
	waitJoined(t, bob, 2)
	waitJoined(t, ada, 2)

	require.NoError(t, bob.Close())
	require.Eventually(t, func() bool { return len(ada.Participants()) == 1 }, waitFor, 10*time.Millisecond)
	assert.Equal(t, "1", ada.Participants()[0].ID)
}

func TestChannel_DuplicateJoinKeepsOneEntry(t *testing.T) {
	ch := &Channel{presence: collab.NewPresence(), chat: collab.NewChatLog(0), opts: Options{}.withDefaults()}
	bob := collab.Participant{ID: "2", Name: "bob"}

	assert.True(t, ch.apply(collab.Envelope{Type: collab.TypeUserJoined, User: &bob}))
	assert.True(t, ch.apply(collab.Envelope{Type: collab.TypeUserJoined, User: &bob}))
	assert.Len(t, ch.Participants(), 1)

	assert.True(t, ch.apply(collab.Envelope{Type: collab.TypeUserLeft, UserID: "2"}))
	assert.False(t, ch.apply(collab.Envelope{Type: collab.TypeUserLeft, UserID: "2"}))
	assert.Empty(t, ch.Participants())
}

func TestChannel_ChatAppendsOnEcho(t *testing.T) {
	ts := newTestServer(t)
	ada := openChannel(t, ts.options("1", "ada", "bell01"))
	waitJoined(t, ada, 1)
	bob := openChannel(t, ts.options("2", "bob", "bell01"))
	waitJoined(t, bob, 2)

	require.True(t, ada.SendChatMessage("first"))
	require.Eventually(t, func() bool { return len(bob.Messages()) == 1 }, waitFor, 10*time.Millisecond)
	require.True(t, bob.SendChatMessage("second"))

	for _, ch := range []*Channel{ada, bob} {
		require.Eventually(t, func() bool { return len(ch.Messages()) == 2 }, waitFor, 10*time.Millisecond)
	}
	msgs := bob.Messages()
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "ada", msgs[0].UserName)
	assert.Equal(t, "second", msgs[1].Content)
	assert.Equal(t, ada.Messages(), msgs)
}

func TestChannel_SendWhileDisconnectedLeavesStoreAlone(t *testing.T) {
	ts := newTestServer(t)
	ch := openChannel(t, ts.options("1", "ada", "bell01"))
	waitJoined(t, ch, 1)
	require.True(t, ch.SendChatMessage("kept"))
	require.Eventually(t, func() bool { return len(ch.Messages()) == 1 }, waitFor, 10*time.Millisecond)

	require.NoError(t, ch.Close())
	assert.NotPanics(t, func() {
		assert.False(t, ch.SendChatMessage("lost"))
		assert.False(t, ch.SendEdit(collab.Insert(0, "x")))
		assert.False(t, ch.UpdateCursor(1, 1))
		assert.False(t, ch.SetTyping(true))
	})
	assert.Len(t, ch.Messages(), 1)
}

func TestChannel_EditsConverge(t *testing.T) {
	ts := newTestServer(t)
	ada := openChannel(t, ts.options("1", "ada", "bell01"))
	waitJoined(t, ada, 1)
	bob := openChannel(t, ts.options("2", "bob", "bell01"))
	waitJoined(t, bob, 2)

	require.True(t, ada.SendEdit(collab.Insert(0, "x q[1];\n")))
	require.Eventually(t, func() bool { return bob.Document().Version == 2 }, waitFor, 10*time.Millisecond)
	doc := bob.Document()
	require.True(t, bob.SendEdit(collab.Insert(len(doc.Content), "\nmeasure;")))

	want := collab.DocumentState{Content: "x q[1];\nh q[0];\nmeasure;", Version: 3}
	for _, ch := range []*Channel{ada, bob} {
		require.Eventually(t, func() bool { return ch.Document() == want }, waitFor, 10*time.Millisecond)
	}
}

func TestChannel_CursorAndTyping(t *testing.T) {
	ts := newTestServer(t)
	ada := openChannel(t, ts.options("1", "ada", "bell01"))
	waitJoined(t, ada, 1)
	bob := openChannel(t, ts.options("2", "bob", "bell01"))
	waitJoined(t, ada, 2)

	require.True(t, bob.UpdateCursor(3, 7))
	require.True(t, bob.SetTyping(true))

	require.Eventually(t, func() bool {
		for _, p := range ada.Participants() {
			if p.ID == "2" {
				return p.IsTyping && p.Cursor != nil && *p.Cursor == collab.Cursor{Line: 3, Column: 7}
			}
		}
		return false
	}, waitFor, 10*time.Millisecond)
}

func TestChannel_ReconfigureReopens(t *testing.T) {
	ts := newTestServer(t)
	var changes atomic.Int32
	opts := ts.options("1", "ada", "bell01")
	opts.OnChange = func(Snapshot) { changes.Add(1) }
	ch := openChannel(t, opts)
	waitJoined(t, ch, 1)
	require.True(t, ch.SendChatMessage("old room"))
	require.Eventually(t, func() bool { return len(ch.Messages()) == 1 }, waitFor, 10*time.Millisecond)

	next := ts.options("1", "ada", "ghz03")
	next.OnChange = opts.OnChange
	require.NoError(t, ch.Reconfigure(context.Background(), next))

	waitJoined(t, ch, 1)
	assert.Equal(t, int32(2), ts.dials.Load())
	assert.Empty(t, ch.Messages())
	assert.Equal(t, collab.DocumentState{}, ch.Document())
	assert.Positive(t, changes.Load())

	require.NoError(t, ch.Close())
	assert.ErrorIs(t, ch.Reconfigure(context.Background(), next), ErrClosed)
}

func TestChannel_ReconnectsAfterDrop(t *testing.T) {
	ts := newTestServer(t)
	opts := ts.options("1", "ada", "bell01")
	opts.Reconnect = true
	opts.MinBackoff = 10 * time.Millisecond
	opts.MaxBackoff = 40 * time.Millisecond
	ch := openChannel(t, opts)
	waitJoined(t, ch, 1)

	ts.dropAll()

	require.Eventually(t, func() bool { return ts.dials.Load() >= 2 }, waitFor, 10*time.Millisecond)
	waitJoined(t, ch, 1)
	assert.True(t, ch.SendChatMessage("back"))
}

func TestChannel_CloseRacingReconfigureLeavesNoSocket(t *testing.T) {
	ts := newTestServer(t)
	next := ts.options("1", "ada", "ghz03")

	for i := 0; i < 25; i++ {
		ch, err := Open(context.Background(), ts.options("1", "ada", "bell01"))
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			err := ch.Reconfigure(context.Background(), next)
			if err != nil {
				assert.ErrorIs(t, err, ErrClosed)
			}
		}()
		go func() {
			defer wg.Done()
			time.Sleep(time.Duration(i%5) * time.Millisecond)
			assert.NoError(t, ch.Close())
		}()
		wg.Wait()

		assert.Equal(t, StateDisconnected, ch.State(), "iteration %d", i)
		assert.False(t, ch.SendChatMessage("after close"))
	}

	require.Eventually(t, func() bool { return ts.hub.RoomCount() == 0 }, waitFor, 10*time.Millisecond)
}
