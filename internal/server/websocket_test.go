package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetemplate/legocoder/internal/palette"
	"github.com/livetemplate/legocoder/internal/session"
)

// wsTestClient is a helper for websocket protocol tests.
type wsTestClient struct {
	conn    *websocket.Conn
	t       *testing.T
	timeout time.Duration
}

func newWSTestClient(t *testing.T, server *httptest.Server) *wsTestClient {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "failed to connect to websocket")
	t.Cleanup(func() { conn.Close() })

	return &wsTestClient{conn: conn, t: t, timeout: 2 * time.Second}
}

func (c *wsTestClient) send(action string, data map[string]interface{}) {
	c.t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(c.t, err)
	msg, err := json.Marshal(MessageEnvelope{BlockID: appBlockID, Action: action, Data: raw})
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, msg))
}

func (c *wsTestClient) receive() MessageEnvelope {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	_, data, err := c.conn.ReadMessage()
	require.NoError(c.t, err)
	var envelope MessageEnvelope
	require.NoError(c.t, json.Unmarshal(data, &envelope))
	return envelope
}

// receiveTree skips effects until the next tree update.
func (c *wsTestClient) receiveTree() string {
	c.t.Helper()
	for {
		env := c.receive()
		if env.Action == "tree" {
			return string(env.Data)
		}
	}
}

func (c *wsTestClient) receiveEffect() session.Effect {
	c.t.Helper()
	for {
		env := c.receive()
		if env.Action != "effect" {
			continue
		}
		var e session.Effect
		require.NoError(c.t, json.Unmarshal(env.Data, &e))
		return e
	}
}

func TestWebSocketInitialRender(t *testing.T) {
	srv, ts := newTestServer(t, testConfig())
	c := newWSTestClient(t, ts)

	env := c.receive()
	assert.Equal(t, "tree", env.Action)
	assert.Equal(t, appBlockID, env.BlockID)
	assert.Contains(t, string(env.Data), "Choose your LEGO platform")
	assert.Contains(t, string(env.Data), "System ready. Select blocks to create program.")

	require.Eventually(t, func() bool { return srv.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestWebSocketSelectAndAddBlocks(t *testing.T) {
	_, ts := newTestServer(t, testConfig())
	c := newWSTestClient(t, ts)
	c.receiveTree()

	c.send("selectSoftware", map[string]interface{}{"software": "mindstorms"})
	tree := c.receiveTree()
	assert.Contains(t, tree, "Selected MINDSTORMS EV3 programming environment")
	assert.Contains(t, tree, "Loading block palette...")

	c.send("addBlock", map[string]interface{}{"label": "Turn Right"})
	tree = c.receiveTree()
	assert.Contains(t, tree, "Added block: Turn Right")
}

func TestWebSocketGenerateWithoutBlocksAlerts(t *testing.T) {
	_, ts := newTestServer(t, testConfig())
	c := newWSTestClient(t, ts)
	c.receiveTree()

	c.send("generate", nil)
	e := c.receiveEffect()
	assert.Equal(t, session.EffectAlert, e.Kind)
	assert.Equal(t, "Please add some blocks to the workspace before generating code!", e.Message)
	c.receiveTree()
}

func TestWebSocketGenerateAndDownload(t *testing.T) {
	_, ts := newTestServer(t, testConfig())
	c := newWSTestClient(t, ts)
	c.receiveTree()

	c.send("selectSoftware", map[string]interface{}{"software": "spike"})
	c.receiveTree()
	c.send("connectUSB", nil)
	assert.Contains(t, c.receiveTree(), "SPIKE Prime Hub detected and ready")
	c.send("addBlock", map[string]interface{}{"label": "Move Forward"})
	c.receiveTree()

	c.send("generate", nil)
	tree := c.receiveTree()
	assert.Contains(t, tree, "Code generated successfully!")

	c.send("download", nil)
	e := c.receiveEffect()
	require.Equal(t, session.EffectDownload, e.Kind)
	require.NotNil(t, e.Download)
	assert.True(t, strings.HasPrefix(e.Download.Name, "lego_program_SPIKE_Prime_"))
	assert.Equal(t, "text/x-python", e.Download.MIME)
	assert.Contains(t, e.Download.Content, "motor.run_for_degrees(360, 50)  # Move forward")

	e = c.receiveEffect()
	assert.Equal(t, session.EffectAlert, e.Kind)
	assert.True(t, strings.HasPrefix(e.Message, "Code downloaded! Transfer lego_program_SPIKE_Prime_"), e.Message)
}

func TestWebSocketUploadProgress(t *testing.T) {
	_, ts := newTestServer(t, testConfig())
	c := newWSTestClient(t, ts)
	c.receiveTree()

	c.send("connectUSB", nil)
	c.receiveTree()
	c.send("addBlock", map[string]interface{}{"label": "Wait 1 Second"})
	c.receiveTree()
	c.send("generate", nil)
	c.receiveTree()

	c.send("upload", nil)
	for {
		if strings.Contains(c.receiveTree(), "Upload complete!") {
			break
		}
	}
}

func TestWebSocketResync(t *testing.T) {
	_, ts := newTestServer(t, testConfig())
	c := newWSTestClient(t, ts)
	c.receiveTree()

	c.send("resync", nil)
	// A fresh template sends the statics again.
	assert.Contains(t, c.receiveTree(), "Choose your LEGO platform")
}

func TestWebSocketIgnoresBadMessages(t *testing.T) {
	_, ts := newTestServer(t, testConfig())
	c := newWSTestClient(t, ts)
	c.receiveTree()

	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	c.send("fly", nil)

	// The connection survives and still handles real actions.
	c.send("selectSoftware", map[string]interface{}{"software": "spike"})
	assert.Contains(t, c.receiveTree(), "Selected SPIKE PRIME programming environment")
}

func TestPaletteReloadRefreshesSessions(t *testing.T) {
	srv, ts := newTestServer(t, testConfig())
	c := newWSTestClient(t, ts)
	c.receiveTree()
	c.send("selectSoftware", map[string]interface{}{"software": "mindstorms"})
	c.receiveTree()

	require.Eventually(t, func() bool { return srv.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)
	p := srv.Palette()
	p2 := *p
	p2.Categories = append([]palette.Category(nil), p.Categories...)
	p2.Categories[0].Name = "Driving"
	srv.SetPalette(&p2)

	assert.Contains(t, c.receiveTree(), "Driving")
}

func TestServerCloseEndsSessions(t *testing.T) {
	cfg := testConfig()
	cfg.API = nil
	srv, ts := newTestServer(t, cfg)
	c := newWSTestClient(t, ts)
	c.receiveTree()
	require.Eventually(t, func() bool { return srv.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	srv.Close()

	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := c.conn.ReadMessage()
	assert.Error(t, err)
	require.Eventually(t, func() bool { return srv.ConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
