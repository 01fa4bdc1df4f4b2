package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christian-lee/practicetime/internal/session"
	"github.com/christian-lee/practicetime/internal/store"
)

type fakeController struct {
	mu        sync.Mutex
	status    session.Status
	toggleErr error
	toggles   int
	subs      []func(session.Status)
}

func (c *fakeController) Toggle(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toggles++
	if c.toggleErr != nil {
		return false, c.toggleErr
	}
	c.status.Running = !c.status.Running
	return c.status.Running, nil
}

func (c *fakeController) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.status.Running {
		return session.ErrNotRunning
	}
	c.status.Running = false
	return nil
}

func (c *fakeController) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status.Running
}

func (c *fakeController) Status() session.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *fakeController) Subscribe(fn func(session.Status)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
	return func() {}
}

func (c *fakeController) publish(st session.Status) {
	c.mu.Lock()
	c.status = st
	subs := slices.Clone(c.subs)
	c.mu.Unlock()
	for _, fn := range subs {
		fn(st)
	}
}

type fakeJournal struct{ text string }

func (j fakeJournal) Text() string { return j.text }

type fixture struct {
	ctl   *fakeController
	store *store.Store
	srv   *Server
	ts    *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "web.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctl := &fakeController{status: session.Status{TotalClock: "0:00", IdleClock: "0:00"}}
	srv := NewServer(ctl, fakeJournal{text: "[2026-01-02 03:04:05] app start recording\n"}, st, 0)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ts.Close()
	})
	return &fixture{ctl: ctl, store: st, srv: srv, ts: ts}
}

func decode[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	defer res.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&v))
	return v
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	res, err := http.Get(f.ts.URL + "/api/status")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	st := decode[session.Status](t, res)
	assert.False(t, st.Running)
	assert.Equal(t, "0:00", st.TotalClock)
}

func TestToggle(t *testing.T) {
	f := newFixture(t)

	res, err := http.Post(f.ts.URL+"/api/toggle", "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, map[string]bool{"running": true}, decode[map[string]bool](t, res))

	res, err = http.Get(f.ts.URL + "/api/toggle")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
	assert.Equal(t, 1, f.ctl.toggles)
}

func TestTogglePermissionRequired(t *testing.T) {
	f := newFixture(t)
	f.ctl.toggleErr = session.ErrPermissionRequired

	res, err := http.Post(f.ts.URL+"/api/toggle", "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	body := decode[map[string]any](t, res)
	assert.Equal(t, true, body["permission_pending"])
}

func TestToggleStartFailure(t *testing.T) {
	f := newFixture(t)
	f.ctl.toggleErr = errors.New("load classifier: model load failed")

	res, err := http.Post(f.ts.URL+"/api/toggle", "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Contains(t, decode[map[string]string](t, res)["error"], "model load failed")
}

func TestLog(t *testing.T) {
	f := newFixture(t)
	res, err := http.Get(f.ts.URL + "/api/log")
	require.NoError(t, err)
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	assert.Contains(t, string(body), "app start recording")
	assert.True(t, strings.HasPrefix(res.Header.Get("Content-Type"), "text/plain"))
}

func TestPermission(t *testing.T) {
	f := newFixture(t)
	f.store.Request()

	res, err := http.PostForm(f.ts.URL+"/api/permission", url.Values{"action": {"grant"}})
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, f.store.Granted())

	res, err = http.PostForm(f.ts.URL+"/api/permission", url.Values{"action": {"deny"}})
	require.NoError(t, err)
	res.Body.Close()
	assert.False(t, f.store.Granted())

	res, err = http.PostForm(f.ts.URL+"/api/permission", url.Values{"action": {"maybe"}})
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestDenyStopsRunningSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Grant())

	res, err := http.Post(f.ts.URL+"/api/toggle", "", nil)
	require.NoError(t, err)
	res.Body.Close()
	require.True(t, f.ctl.Running())

	res, err = http.PostForm(f.ts.URL+"/api/permission", url.Values{"action": {"deny"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	st := decode[session.Status](t, res)
	assert.False(t, st.Running)
	assert.False(t, f.ctl.Running())
	assert.False(t, f.store.Granted())
}

func TestHistory(t *testing.T) {
	f := newFixture(t)

	res, err := http.Get(f.ts.URL + "/api/history")
	require.NoError(t, err)
	assert.Empty(t, decode[[]store.Record](t, res))

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := range 3 {
		_, err := f.store.RecordSession(store.Record{
			StartedAt: start.Add(time.Duration(i) * time.Hour),
			StoppedAt: start.Add(time.Duration(i)*time.Hour + 10*time.Minute),
			Total:     60 * i,
			Reason:    store.ReasonManual,
		})
		require.NoError(t, err)
	}

	res, err = http.Get(f.ts.URL + "/api/history?limit=2")
	require.NoError(t, err)
	records := decode[[]store.Record](t, res)
	require.Len(t, records, 2)
	assert.Equal(t, 120, records[0].Total)

	res, err = http.Get(f.ts.URL + "/api/history?limit=abc")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestIndexWithoutUsers(t *testing.T) {
	f := newFixture(t)
	res, err := http.Get(f.ts.URL + "/")
	require.NoError(t, err)
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), "Practice Time")
}

func TestLoginFlow(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.EnsureUser("alice", "s3cret"))

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	res, err := client.Get(f.ts.URL + "/api/status")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, err = client.Get(f.ts.URL + "/")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "/login", res.Header.Get("Location"))

	res, err = client.PostForm(f.ts.URL+"/api/login", url.Values{"username": {"alice"}, "password": {"wrong"}})
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, err = client.PostForm(f.ts.URL+"/api/login", url.Values{"username": {"alice"}, "password": {"s3cret"}})
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, err = client.Get(f.ts.URL + "/api/status")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = client.Get(f.ts.URL + "/api/logout")
	require.NoError(t, err)
	res.Body.Close()

	res, err = client.Get(f.ts.URL + "/api/status")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestWebSocketUpdates(t *testing.T) {
	f := newFixture(t)

	wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first struct {
		Type    string `json:"type"`
		Payload Update `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, MsgUpdate, first.Type)
	assert.False(t, first.Payload.Status.Running)
	assert.Contains(t, first.Payload.Log, "app start")

	require.Eventually(t, func() bool { return f.srv.hub.Len() == 1 }, time.Second, 5*time.Millisecond)
	f.ctl.publish(session.Status{Running: true, Total: 65, TotalClock: "1:05", IdleClock: "0:00"})

	var next struct {
		Type    string `json:"type"`
		Payload Update `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&next))
	assert.True(t, next.Payload.Status.Running)
	assert.Equal(t, "1:05", next.Payload.Status.TotalClock)
}
