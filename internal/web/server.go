// Package web provides the HTTP status page and control API for torchd.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"mime"
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/sweeney/torchd/internal/flash"
	"github.com/sweeney/torchd/internal/metrics"
	"github.com/sweeney/torchd/internal/pattern"
	"github.com/sweeney/torchd/internal/status"
)

// Controls is the screen the API drives.
type Controls interface {
	OnToggleFlash(on bool) error
	OnToggleStrobe(on bool) error
	OnSendSOS() error
	OnSetTimer(durationMs int64) error
	Snapshot() status.Snapshot
}

// Options configures optional server features.
type Options struct {
	// AuthUser and AuthHash enable HTTP basic auth on control endpoints.
	// AuthHash is a bcrypt hash. Both empty = no auth.
	AuthUser string
	AuthHash string

	// Metrics mounts the Prometheus handler at /metrics.
	Metrics bool
}

// Server serves the status page and control API over HTTP.
type Server struct {
	httpServer *http.Server
	ctl        Controls
	opts       Options
}

// New creates a Server that reads state from and sends actions to ctl.
func New(addr string, ctl Controls, opts Options) *Server {
	s := &Server{ctl: ctl, opts: opts}
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	return s
}

// Router builds the route table. Exposed for tests.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods("GET")
	r.HandleFunc("/index.html", s.handleIndex).Methods("GET")
	r.HandleFunc("/index.json", s.handleJSON).Methods("GET")
	if s.opts.Metrics {
		r.Handle("/metrics", metrics.Handler()).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.requireAuth)
	api.HandleFunc("/flash", s.handleFlash).Methods("POST")
	api.HandleFunc("/strobe", s.handleStrobe).Methods("POST")
	api.HandleFunc("/sos", s.handleSOS).Methods("POST")
	api.HandleFunc("/timer", s.handleTimer).Methods("POST")
	return r
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.ctl.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap, s.opts.AuthHash != "")
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.ctl.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.AuthHash == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.opts.AuthUser ||
			bcrypt.CompareHashAndPassword([]byte(s.opts.AuthHash), []byte(pass)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="torchd"`)
			writeError(w, http.StatusUnauthorized, errors.New("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// request is the JSON body accepted by the control endpoints. HTML forms
// send the same fields as form values.
type request struct {
	On         *bool `json:"on"`
	DurationMs int64 `json:"duration_ms"`
}

var errBadRequest = errors.New("bad request")

func decode(r *http.Request) (request, error) {
	var req request
	if mediaType(r) == "application/json" {
		if r.ContentLength == 0 {
			return req, nil
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, errBadRequest
		}
		return req, nil
	}
	if err := r.ParseForm(); err != nil {
		return req, errBadRequest
	}
	if v := r.PostFormValue("on"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return req, errBadRequest
		}
		req.On = &on
	}
	if v := r.PostFormValue("duration_ms"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return req, errBadRequest
		}
		req.DurationMs = ms
	}
	return req, nil
}

func (s *Server) handleFlash(w http.ResponseWriter, r *http.Request) {
	req, err := decode(r)
	if err == nil && req.On == nil {
		err = errBadRequest
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New(`"on" is required`))
		return
	}
	s.respond(w, r, s.ctl.OnToggleFlash(*req.On))
}

func (s *Server) handleStrobe(w http.ResponseWriter, r *http.Request) {
	req, err := decode(r)
	if err == nil && req.On == nil {
		err = errBadRequest
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New(`"on" is required`))
		return
	}
	s.respond(w, r, s.ctl.OnToggleStrobe(*req.On))
}

func (s *Server) handleSOS(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.ctl.OnSendSOS())
}

func (s *Server) handleTimer(w http.ResponseWriter, r *http.Request) {
	req, err := decode(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.respond(w, r, s.ctl.OnSetTimer(req.DurationMs))
}

// respond maps a control error to a status code. Browser form posts are
// redirected back to the page; API clients get the JSON status.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case err == nil:
	case errors.Is(err, flash.ErrDeviceUnavailable):
		writeError(w, http.StatusServiceUnavailable, err)
		return
	case errors.Is(err, pattern.ErrInvalidDuration):
		writeError(w, http.StatusBadRequest, err)
		return
	default:
		log.Printf("web: %s %s: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if mediaType(r) == "application/x-www-form-urlencoded" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.ctl.Snapshot()))
}

// mediaType returns the request's Content-Type without parameters such as
// charset, or "" when it is missing or malformed.
func mediaType(r *http.Request) string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
