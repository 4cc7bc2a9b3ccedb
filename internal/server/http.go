package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/valyala/fastjson"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/coffersTech/facetql/internal/config"
	"github.com/coffersTech/facetql/internal/engine"
	"github.com/coffersTech/facetql/internal/pkg/lucene"
)

const maxBodySize = 1 << 20

type QueryServer struct {
	queryEngine *engine.QueryEngine
	conf        *config.Store
	srv         *http.Server
	parser      fastjson.ParserPool
	requests    int64 // total API requests
}

type statsResponse struct {
	engine.SystemStats

	Requests        int64    `json:"requests"`
	UpperCaseFields []string `json:"upper_case_fields"`
}

type errorResponse struct {
	Error string `json:"error"`
	Pos   *int   `json:"pos,omitempty"`
	Near  string `json:"near,omitempty"`
}

func NewQueryServer(qe *engine.QueryEngine, conf *config.Store, addr string) *QueryServer {
	s := &QueryServer{
		queryEngine: qe,
		conf:        conf,
	}

	s.srv = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	return s
}

// Handler returns the API routes.
func (s *QueryServer) Handler() http.Handler {
	mux := http.NewServeMux()

	api := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.AuthMiddleware(h))
	}

	api("POST /api/normalize", s.handleNormalize)

	api("POST /api/sessions", s.handleOpen)
	api("GET /api/sessions/{id}", s.handleGet)
	api("DELETE /api/sessions/{id}", s.handleClose)
	api("POST /api/sessions/{id}/search", s.handleSearch)
	api("POST /api/sessions/{id}/facets", s.handleFacet)
	api("POST /api/sessions/{id}/range", s.handleRange)
	api("DELETE /api/sessions/{id}/fields/{field}", s.handleClearField)

	api("GET /api/stats", s.handleStats)

	return mux
}

// Start runs the HTTP server until Shutdown.
func (s *QueryServer) Start() error {
	tlog.Printw("http server listening", "addr", s.srv.Addr)

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "listen")
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *QueryServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Requests returns the number of API requests served.
func (s *QueryServer) Requests() int64 {
	return atomic.LoadInt64(&s.requests)
}

// AuthMiddleware checks for a valid token in the Authorization header
// or the token query parameter.
func (s *QueryServer) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&s.requests, 1)

		if !s.conf.AuthRequired() {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		var token string
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		} else {
			token = r.URL.Query().Get("token")
		}

		if token == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="facetql"`)
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing token"})
			return
		}

		if _, ok := s.conf.Authenticate(token); !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="facetql"`)
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid token"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *QueryServer) handleNormalize(w http.ResponseWriter, r *http.Request) {
	s.withBody(w, r, func(v *fastjson.Value) {
		q, err := s.queryEngine.Normalize(string(v.GetStringBytes("query")))
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"query": q})
	})
}

func (s *QueryServer) handleOpen(w http.ResponseWriter, r *http.Request) {
	s.withBody(w, r, func(v *fastjson.Value) {
		st, err := s.queryEngine.Open(string(v.GetStringBytes("query")))
		s.writeState(w, r, http.StatusCreated, st, err)
	})
}

func (s *QueryServer) handleGet(w http.ResponseWriter, r *http.Request) {
	st, err := s.queryEngine.Get(r.PathValue("id"))
	s.writeState(w, r, http.StatusOK, st, err)
}

func (s *QueryServer) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := s.queryEngine.Close(r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *QueryServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.withBody(w, r, func(v *fastjson.Value) {
		st, err := s.queryEngine.Search(r.PathValue("id"), string(v.GetStringBytes("query")))
		s.writeState(w, r, http.StatusOK, st, err)
	})
}

func (s *QueryServer) handleFacet(w http.ResponseWriter, r *http.Request) {
	s.withBody(w, r, func(v *fastjson.Value) {
		field := string(v.GetStringBytes("field"))
		value := string(v.GetStringBytes("value"))

		st, err := s.queryEngine.ToggleFacet(r.PathValue("id"), field, value)
		s.writeState(w, r, http.StatusOK, st, err)
	})
}

func (s *QueryServer) handleRange(w http.ResponseWriter, r *http.Request) {
	s.withBody(w, r, func(v *fastjson.Value) {
		field := string(v.GetStringBytes("field"))

		st, err := s.queryEngine.SetRange(r.PathValue("id"), field, bound(v, "min"), bound(v, "max"))
		s.writeState(w, r, http.StatusOK, st, err)
	})
}

func (s *QueryServer) handleClearField(w http.ResponseWriter, r *http.Request) {
	st, err := s.queryEngine.ClearField(r.PathValue("id"), r.PathValue("field"))
	s.writeState(w, r, http.StatusOK, st, err)
}

func (s *QueryServer) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		SystemStats:     s.queryEngine.GetStats(),
		Requests:        s.Requests(),
		UpperCaseFields: s.queryEngine.Printer().UpperCaseFields(),
	})
}

// withBody parses a JSON object body and passes it to fn. An empty body
// is an empty object. v is only valid inside fn.
func (s *QueryServer) withBody(w http.ResponseWriter, r *http.Request, fn func(v *fastjson.Value)) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "read body: " + err.Error()})
		return
	}

	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	p := s.parser.Get()
	defer s.parser.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json: " + err.Error()})
		return
	}
	if v.Type() != fastjson.TypeObject {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json: object expected"})
		return
	}

	fn(v)
}

// bound reads a range bound given either as a string or a number.
func bound(v *fastjson.Value, key string) string {
	b := v.Get(key)
	if b == nil {
		return ""
	}

	switch b.Type() {
	case fastjson.TypeString:
		return string(b.GetStringBytes())
	case fastjson.TypeNumber:
		return b.String()
	}

	return ""
}

func (s *QueryServer) writeState(w http.ResponseWriter, r *http.Request, status int, st engine.State, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, status, st)
}

func (s *QueryServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{Error: err.Error()}

	if serr, ok := lucene.AsSyntaxError(err); ok {
		resp.Pos = &serr.Pos
		resp.Near = serr.Near
	}

	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, lucene.ErrSyntax),
		errors.Is(err, lucene.ErrInvalidArgument),
		errors.Is(err, engine.ErrEmptyQuery):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrSessionNotFound):
		status = http.StatusNotFound
	default:
		tlog.Printw("request failed", "method", r.Method, "path", r.URL.Path, "err", err, "", tlog.Error)
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		tlog.Printw("json encode", "err", err, "", tlog.Error)
	}
}
