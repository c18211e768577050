package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/livetemplate/legocoder"
	"github.com/livetemplate/legocoder/internal/codegen"
	"github.com/livetemplate/legocoder/internal/workspace"
)

// maxRequestBodySize limits the size of incoming request bodies (1MB)
const maxRequestBodySize = 1 << 20

// GenerateRequest is the body of POST /api/generate. When Code is set the
// program is built from it; otherwise from Blocks.
type GenerateRequest struct {
	Platform string   `json:"platform"`
	Blocks   []string `json:"blocks,omitempty"`
	Code     *string  `json:"code,omitempty"`
}

// APIHandler serves the REST API:
//
//	GET  /api/palette           block palette as JSON
//	GET  /api/guide?platform=   connection guide as an HTML fragment
//	POST /api/generate          program text as a download
type APIHandler struct {
	srv *Server
	log *zap.Logger
}

// NewAPIHandler creates an API handler backed by srv.
func NewAPIHandler(srv *Server) *APIHandler {
	return &APIHandler{srv: srv, log: srv.log.Named("api")}
}

// ServeHTTP handles API requests.
func (h *APIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/palette":
		h.only(w, r, http.MethodGet, h.handlePalette)
	case "/api/guide":
		h.only(w, r, http.MethodGet, h.handleGuide)
	case "/api/generate":
		h.only(w, r, http.MethodPost, h.handleGenerate)
	default:
		writeJSONError(w, http.StatusNotFound, "not found: "+r.URL.Path)
	}
}

func (h *APIHandler) only(w http.ResponseWriter, r *http.Request, method string, fn http.HandlerFunc) {
	if r.Method != method {
		w.Header().Set("Allow", method)
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	fn(w, r)
}

func (h *APIHandler) handlePalette(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.srv.Palette())
}

func (h *APIHandler) platform(key string) legocoder.Platform {
	if key == "" {
		return h.srv.cfg.Simulation.GetDefaultPlatform()
	}
	return legocoder.ParsePlatform(key)
}

func (h *APIHandler) handleGuide(w http.ResponseWriter, r *http.Request) {
	p := h.platform(r.URL.Query().Get("platform"))
	html, err := h.srv.guide.HTML(p)
	if err != nil {
		h.log.Error("failed to render guide", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "failed to render guide")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}

func (h *APIHandler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	p := h.platform(req.Platform)
	var (
		code string
		err  error
	)
	if req.Code != nil {
		code, err = h.srv.gen.GenerateFromText(p, *req.Code)
	} else {
		ws := workspace.NewStore(workspace.WithClock(h.srv.now))
		for _, label := range req.Blocks {
			ws.Append(label)
		}
		code, err = h.srv.gen.Generate(p, ws.List())
	}

	switch {
	case errors.Is(err, codegen.ErrEmptyWorkspace), errors.Is(err, codegen.ErrEmptyBuffer):
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.log.Error("generation failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "generation failed")
		return
	}

	name := codegen.FileName(p, h.srv.now())
	w.Header().Set("Content-Type", codegen.MIMEType+"; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write([]byte(code))
}
