package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"buildflow/project-portal/project-portal-backend/internal/notifications"
)

func newTestServer(t *testing.T, origins []string) (*Manager, string, <-chan error) {
	m := NewManager(origins, zap.NewNop())
	errs := make(chan error, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := m.HandleConnection(w, r)
		errs <- err
	}))
	t.Cleanup(func() {
		srv.Close()
		m.Close()
	})
	return m, "ws" + strings.TrimPrefix(srv.URL, "http"), errs
}

func readMessage(t *testing.T, conn *websocket.Conn) notifications.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg notifications.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestProjectsChangedReachesClients(t *testing.T) {
	m, url, _ := newTestServer(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	hello := readMessage(t, conn)
	assert.Equal(t, notifications.MessageTypeConnected, hello.Type)
	assert.NotEmpty(t, hello.Data["connection_id"])
	assert.Equal(t, 1, m.GetConnectionCount())

	require.NoError(t, m.NotifyProjectsChanged(7, "forwarded", "design"))

	msg := readMessage(t, conn)
	assert.Equal(t, notifications.MessageTypeProjectsChanged, msg.Type)
	assert.Equal(t, float64(7), msg.Data["project_id"])
	assert.Equal(t, "forwarded", msg.Data["notice"])
	assert.Equal(t, "design", msg.Data["status"])
}

func TestOriginCheck(t *testing.T) {
	_, url, _ := newTestServer(t, []string{"https://portal.example.com"})

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://portal.example.com")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}

func TestSameOriginWhenNoOriginsConfigured(t *testing.T) {
	_, url, _ := newTestServer(t, nil)

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestConnectionAfterCloseDoesNotHang(t *testing.T) {
	m, url, errs := newTestServer(t, nil)
	m.Close()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		defer conn.Close()
	}

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrManagerClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("HandleConnection blocked after Close")
	}
	assert.Zero(t, m.GetConnectionCount())
	m.Close()
}
