// Package web provides an HTTP status server and settings surface for the
// touchwake daemon.
package web

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sweeney/touchwake/internal/status"
	"github.com/sweeney/touchwake/internal/touchwake"
)

var log = logrus.WithField("component", "web")

// maxAttrWrite bounds a settings write, as a sysfs store gets at most a page.
const maxAttrWrite = 4096

// Settings is the text attribute surface. *touchwake.Controller implements it.
type Settings interface {
	ReadAttr(name string) (string, error)
	WriteAttr(name, text string) error
}

// Server serves the status page, settings and live events over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	settings   Settings
	hub        *Hub
}

// New creates a Server that reads state from the given tracker and exposes
// settings as text endpoints. settings may be nil to disable them.
func New(addr string, tracker *status.Tracker, settings Settings) *Server {
	s := &Server{tracker: tracker, settings: settings, hub: NewHub()}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/ws", s.hub.ServeHTTP)
	if settings != nil {
		for _, name := range touchwake.Attrs {
			mux.HandleFunc("/"+name, s.handleAttr)
		}
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Hub returns the live event hub fed by Broadcast.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server and disconnects websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// handleAttr serves one attribute like a sysfs node: GET reads the text,
// PUT or POST writes the body. A write the controller discards still
// succeeds, the same way a sysfs store reports the full size consumed.
func (s *Server) handleAttr(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/")

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		text, err := s.settings.ReadAttr(name)
		if err != nil {
			writeAttrError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, text)
	case http.MethodPut, http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxAttrWrite))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		if err := s.settings.WriteAttr(name, string(body)); err != nil {
			writeAttrError(w, err)
			return
		}
		log.WithFields(logrus.Fields{"attr": name, "remote": r.RemoteAddr}).Debug("attribute written")
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", "GET, HEAD, PUT, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeAttrError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, touchwake.ErrReadOnly):
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, err.Error(), http.StatusMethodNotAllowed)
	case errors.Is(err, touchwake.ErrUnknownAttr):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
