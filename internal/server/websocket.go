package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/livetemplate/livetemplate"
	"go.uber.org/zap"

	"github.com/livetemplate/legocoder/internal/session"
)

const (
	// appBlockID tags every envelope; the page hosts a single live block.
	appBlockID = "app"
	// actionResync asks for a full tree after the client lost track.
	actionResync = "resync"
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the desktop shell and dev proxies use other origins
	},
}

// MessageEnvelope is one websocket message in either direction.
type MessageEnvelope struct {
	BlockID string          `json:"blockID"`
	Action  string          `json:"action"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// connection is one browser tab: a websocket, its session and the template
// instance that tracks what the tab has already been sent.
type connection struct {
	srv     *Server
	conn    *websocket.Conn
	session *session.Session
	log     *zap.Logger

	renderMu sync.Mutex // orders renders so tree diffs reach the client in sequence
	tmpl     *livetemplate.Template

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	c := &connection{srv: s, conn: conn}
	c.tmpl, err = s.newTemplate()
	if err != nil {
		s.log.Error("failed to build app template", zap.Error(err))
		conn.Close()
		return
	}

	sim := s.cfg.Simulation
	c.session = session.New(session.Options{
		Platform:  sim.GetDefaultPlatform(),
		Detector:  deviceDetector(sim),
		Upload:    deviceUpload(sim),
		Store:     s.store,
		Generator: s.gen,
		Palette:   s.Palette,
		Now:       s.now,
		Logger:    s.log.Named("session"),
		OnChange:  c.render,
		OnEffect:  c.sendEffect,
	})
	c.log = s.log.Named("ws").With(zap.String("session", c.session.ID()))

	s.register(c)
	defer func() {
		c.session.Close()
		s.unregister(c)
		c.close()
	}()

	c.log.Debug("client connected", zap.String("remote", conn.RemoteAddr().String()))

	c.session.Start(r.Context())
	c.render()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Info("unexpected close", zap.Error(err))
			}
			break
		}
		c.handleMessage(message)
	}

	c.log.Debug("client disconnected")
}

// newTemplate parses the app template. livetemplate parses from files, so
// the embedded source is written to a temp file first.
func (s *Server) newTemplate() (*livetemplate.Template, error) {
	f, err := os.CreateTemp("", "legocoder-*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp template: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(s.appTemplate); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write temp template: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	return livetemplate.New("legocoder", livetemplate.WithParseFiles(f.Name()))
}

func (c *connection) handleMessage(message []byte) {
	var envelope MessageEnvelope
	if err := json.Unmarshal(message, &envelope); err != nil {
		c.log.Warn("failed to parse message", zap.Error(err))
		return
	}

	if envelope.Action == actionResync {
		c.resync()
		return
	}

	data := make(map[string]interface{})
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			c.log.Warn("failed to parse action data", zap.String("action", envelope.Action), zap.Error(err))
			return
		}
	}

	err := c.session.HandleAction(envelope.Action, data)
	switch {
	case errors.Is(err, session.ErrUnknownAction):
		c.log.Warn("unknown action", zap.String("action", envelope.Action))
		return
	case errors.Is(err, session.ErrClosed):
		return
	case err != nil:
		c.log.Debug("action failed", zap.String("action", envelope.Action), zap.Error(err))
	}

	c.render()
}

// render sends the changes since the last render.
func (c *connection) render() {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()

	var buf bytes.Buffer
	if err := c.tmpl.ExecuteUpdates(&buf, c.session.View(c.srv.guideHTML)); err != nil {
		c.log.Error("failed to render update", zap.Error(err))
		return
	}

	c.send(MessageEnvelope{
		BlockID: appBlockID,
		Action:  "tree",
		Data:    json.RawMessage(buf.Bytes()),
	})
}

// resync starts a fresh template so the next render carries the full tree.
func (c *connection) resync() {
	tmpl, err := c.srv.newTemplate()
	if err != nil {
		c.log.Error("failed to rebuild template", zap.Error(err))
		return
	}
	c.renderMu.Lock()
	c.tmpl = tmpl
	c.renderMu.Unlock()

	c.log.Debug("client resynced")
	c.render()
}

func (c *connection) sendEffect(e session.Effect) {
	data, err := json.Marshal(e)
	if err != nil {
		c.log.Error("failed to marshal effect", zap.Error(err))
		return
	}
	c.send(MessageEnvelope{BlockID: appBlockID, Action: "effect", Data: data})
}

func (c *connection) send(envelope MessageEnvelope) {
	data, err := json.Marshal(envelope)
	if err != nil {
		c.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.log.Debug("failed to send message", zap.Error(err))
	}
}

// close ends the websocket, which stops the read loop.
func (c *connection) close() {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.conn.Close()
	})
}
