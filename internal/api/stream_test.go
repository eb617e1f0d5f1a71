package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallsense-data/wallsense/internal/engine"
	"github.com/wallsense-data/wallsense/internal/wifi"
)

func TestStreamDeliversMotionEvents(t *testing.T) {
	ts := newTestServer(t)
	ts.calibrate(t, -55)
	require.NoError(t, ts.engine.Start())

	httpSrv := httptest.NewServer(ts.mux)
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Wait for the subscription to register before publishing.
	require.Eventually(t, func() bool {
		return ts.engine.Broadcaster().SubscriberCount() == 1
	}, time.Second, 10*time.Millisecond)

	// A strong departure from the baseline fires an event.
	events := ts.engine.Tick([]wifi.RawSample{{
		Network:    wifi.NetworkID{SSID: "HomeNet", BSSID: testBSSID},
		RSSI:       -40,
		ObservedAt: ts.clock.Now(),
	}})
	require.Len(t, events, 1)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got engine.MotionEvent
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, events[0].ID, got.ID)
	assert.Equal(t, "living", got.ZoneID)
	assert.Equal(t, -40, got.RSSI)
}

func TestStreamDisconnectUnsubscribes(t *testing.T) {
	ts := newTestServer(t)

	httpSrv := httptest.NewServer(ts.mux)
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}

	require.Eventually(t, func() bool {
		return ts.engine.Broadcaster().SubscriberCount() == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		return ts.engine.Broadcaster().SubscriberCount() == 0
	}, time.Second, 10*time.Millisecond)
}
