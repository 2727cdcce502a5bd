package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/dbops-agent/internal/application/dto"
	wsInfra "github.com/dreschagin/dbops-agent/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/dbops-agent/internal/interfaces/http/middleware"
	"github.com/dreschagin/dbops-agent/pkg/logger"
)

func startWebSocketServer(t *testing.T, auth middleware.AuthConfig) (*wsInfra.Hub, string) {
	t.Helper()
	log := logger.New("error")
	hub := wsInfra.NewHub(log)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	h := NewWebSocketHandler(hub, []string{"http://dashboard.local"}, auth, log)
	srv := httptest.NewServer(http.HandlerFunc(h.HandleConnection))
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketHandler_ReceivesSnapshots(t *testing.T) {
	hub, url := startWebSocketServer(t, middleware.AuthConfig{Enabled: true, BearerToken: "s3cret"})

	header := http.Header{}
	header.Set("Origin", "http://dashboard.local")
	header.Set("Authorization", "Bearer s3cret")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Broadcast(&dto.SnapshotDTO{Metrics: map[string]float64{"cpu_usage": 12}})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Type string `json:"type"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, wsInfra.MessageSnapshot, msg.Type)
}

func TestWebSocketHandler_RejectsBadOriginAndToken(t *testing.T) {
	_, url := startWebSocketServer(t, middleware.AuthConfig{Enabled: true, BearerToken: "s3cret"})

	header := http.Header{}
	header.Set("Origin", "http://dashboard.local")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	header.Set("Authorization", "Bearer s3cret")
	_, resp, err = websocket.DefaultDialer.Dial(url+"?types=alert,weather", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	header.Set("Origin", "http://evil.example")
	header.Set("Authorization", "Bearer s3cret")
	_, resp, err = websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
