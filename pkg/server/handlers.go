package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/vango-dev/statesync/pkg/statesync"
	"github.com/vango-dev/statesync/pkg/urlcodec"
	"github.com/vango-dev/statesync/pkg/value"
)

type stateResponse struct {
	State        *value.Object `json:"state"`
	ShareableURL string        `json:"shareableUrl"`
	Skipped      []string      `json:"skipped,omitempty"`
}

// writeJSON encodes v before touching w so an encode failure can still
// be answered with a 500. Write failures mean the client went away and are
// only logged.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("response encode failed", "error", err)
		status = http.StatusInternalServerError
		data = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		s.logger.Debug("response write failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.SessionCount(),
	})
}

// handleState decodes the request query against the consumer's template,
// the way a page load would hydrate from its URL.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	def, ok := s.definition(r)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown consumer")
		return
	}

	partial, skips := urlcodec.DecodeWithSkips(r.URL.Query(), def.Template, def.Namespace)
	state := def.Template.Merge(partial)

	resp := stateResponse{
		State:        state,
		ShareableURL: urlcodec.ShareableURL(s.baseURL(r, def), state, def.Namespace),
	}
	for _, skip := range skips {
		resp.Skipped = append(resp.Skipped, skip.Field)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleShare builds the shareable URL for the template with a partial
// state applied. Fields outside the template are ignored.
func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	def, ok := s.definition(r)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown consumer")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxMessageSize))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	v, err := value.Parse(body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "body is not JSON: "+err.Error())
		return
	}
	partial, isObj := v.(*value.Object)
	if !isObj {
		s.writeError(w, http.StatusBadRequest, "body must be a JSON object")
		return
	}

	base := s.baseURL(r, def)
	syncer := statesync.New(statesync.Config{
		Template:  def.Template,
		Namespace: def.Namespace,
	}, statesync.WithLogger(s.logger))
	syncer.Update(r.Context(), partial)

	state := syncer.State()
	s.writeJSON(w, http.StatusOK, stateResponse{
		State:        state,
		ShareableURL: urlcodec.ShareableURL(base, state, def.Namespace),
	})
}

// handleWebSocket runs a synchronizer for one page.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	def, ok := s.definition(r)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown consumer")
		return
	}

	pageURL, err := parsePageURL(r.URL.Query().Get("url"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	clientID, cookie := s.clientID(r)
	header := http.Header{}
	if cookie != nil {
		header.Add("Set-Cookie", cookie.String())
	}

	conn, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		s.metrics.wsErrors.WithLabelValues("upgrade").Inc()
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(s.config.MaxMessageSize)

	sess := &session{
		id:           newSessionID(),
		clientID:     clientID,
		def:          def,
		conn:         conn,
		writeTimeout: s.config.WriteTimeout,
		metrics:      s.metrics,
		tracer:       s.tracer,
	}
	sess.logger = s.logger.With("session", sess.id, "consumer", def.Name)
	sess.sync = statesync.New(statesync.Config{
		Template:   def.Template,
		StorageKey: def.clientKey(clientID),
		Namespace:  def.Namespace,
		Store:      s.config.Store,
		Location:   NewPatchLocation(pageURL, sess.write),
	},
		statesync.WithLogger(sess.logger),
		statesync.WithMetrics(s.syncMetrics),
	)

	s.hub.add(sess)
	s.metrics.activeSessions.Inc()
	defer func() {
		s.hub.remove(sess)
		s.metrics.activeSessions.Dec()
		sess.close()
	}()

	sess.logger.Debug("session started")
	sess.run(r.Context())
	sess.logger.Debug("session ended")
}

func parsePageURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, errMissingPageURL
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errInvalidPageURL
	}
	return u, nil
}
