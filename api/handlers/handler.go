package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/jusunglee/hankyu-go/internal/auth"
	"github.com/jusunglee/hankyu-go/internal/feed"
	"github.com/jusunglee/hankyu-go/internal/models"
	"github.com/jusunglee/hankyu-go/internal/query"
	"github.com/jusunglee/hankyu-go/internal/render"
	"github.com/jusunglee/hankyu-go/pkg/timetable"
)

const (
	// ClientCookie carries the id that scopes a browser's session
	ClientCookie = "hankyu_client"
	// MaxLimit caps the limit query parameter
	MaxLimit = 20

	protobufType = "application/x-protobuf"
)

// Handler handles HTTP requests
type Handler struct {
	client   timetable.Client
	gate     *auth.Gate
	renderer *render.Renderer
	location *time.Location
	now      func() time.Time
}

// NewHandler creates a new HTTP handler
func NewHandler(client timetable.Client, gate *auth.Gate, renderer *render.Renderer, location *time.Location) *Handler {
	if location == nil {
		location = time.Local
	}
	return &Handler{
		client:   client,
		gate:     gate,
		renderer: renderer,
		location: location,
		now:      time.Now,
	}
}

// RegisterRoutes registers all routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/", h.handleIndex).Methods("GET")
	r.HandleFunc("/login", h.handleLogin).Methods("POST")
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/api/login", h.handleAPILogin).Methods("POST")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.requireSession)
	api.HandleFunc("/departures", h.handleDepartures).Methods("GET")
	api.HandleFunc("/timetable", h.handleTimetable).Methods("GET")
	api.HandleFunc("/reload", h.handleReload).Methods("POST")
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// DepartureResponse is one departure as served by the API
type DepartureResponse struct {
	Time        string `json:"time"`
	Line        string `json:"line"`
	LineName    string `json:"line_name"`
	Platform    string `json:"platform"`
	Type        string `json:"type"`
	Destination string `json:"destination"`
}

// DeparturesResponse is the body of /api/departures
type DeparturesResponse struct {
	Data       []DepartureResponse `json:"data"`
	Station    string              `json:"station"`
	Direction  string              `json:"direction"`
	Time       string              `json:"time"`
	Variant    string              `json:"variant"`
	SnapshotID string              `json:"snapshot_id"`
	Message    string              `json:"message,omitempty"`
	Updated    string              `json:"updated,omitempty"`
}

// TimetableResponse is the body of /api/timetable
type TimetableResponse struct {
	Data       []models.TableSummary `json:"data"`
	SnapshotID string                `json:"snapshot_id"`
	Date       string                `json:"date"`
	Variant    string                `json:"variant"`
	Updated    string                `json:"updated,omitempty"`
}

// HealthResponse is the body of /health
type HealthResponse struct {
	Status      string `json:"status"`
	Loaded      bool   `json:"loaded"`
	Updated     string `json:"updated,omitempty"`
	LastFailure string `json:"last_failure,omitempty"`
}

type loginRequest struct {
	Password string `json:"password"`
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	key := h.sessionKey(w, r)
	state, err := h.gate.Check(r.Context(), key)
	if err != nil {
		slog.Error("Session check failed", "error", err)
	}
	if state == auth.Locked {
		h.writePage(w, http.StatusOK, render.Page{Locked: true})
		return
	}

	q := r.URL.Query()
	page := render.Page{Station: models.Juso}
	if snap, err := h.client.Snapshot(); err == nil {
		page.Variant = snap.Variant
		page.Updated = h.formatUpdated(snap.LoadedAt)
	}

	// The page follows the clock, and refreshes itself, until the user edits
	// the time. follow carries the time the page was rendered with.
	typed := strings.TrimSpace(q.Get("time"))
	follow := q.Get("follow")
	_, hasTime := q["time"]
	if !hasTime || (follow != "" && (typed == "" || typed == follow)) {
		page.Time = h.currentTime()
		page.AutoRefresh = true
	} else {
		page.Time = q.Get("time")
	}

	if _, ok := q["station"]; !ok {
		h.writePage(w, http.StatusOK, page)
		return
	}
	page.Station = models.Station(q.Get("station"))

	res, err := h.client.NextDepartures(query.Request{Station: string(page.Station), Time: page.Time})
	if err != nil {
		page.WithError(err)
	} else {
		page.WithResult(res)
	}
	h.writePage(w, http.StatusOK, page)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.writePage(w, http.StatusBadRequest, render.Page{Locked: true, AuthMessage: render.MsgEnterPassword})
		return
	}

	key := h.sessionKey(w, r)
	if err := h.gate.Unlock(r.Context(), key, r.PostForm.Get("password")); err != nil {
		status := loginStatus(err)
		if status >= http.StatusInternalServerError {
			slog.Error("Login failed", "error", err)
		}
		h.writePage(w, status, render.Page{Locked: true, AuthMessage: render.MessageFor(err)})
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handleAPILogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", render.MsgEnterPassword, http.StatusBadRequest)
		return
	}

	key := h.sessionKey(w, r)
	if err := h.gate.Unlock(r.Context(), key, req.Password); err != nil {
		status := loginStatus(err)
		if status >= http.StatusInternalServerError {
			slog.Error("Login failed", "error", err)
		}
		h.writeError(w, err.Error(), render.MessageFor(err), status)
		return
	}

	h.writeJSON(w, map[string]string{"status": auth.Unlocked.String()})
}

func (h *Handler) handleDepartures(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > MaxLimit {
			h.writeError(w, "Invalid limit parameter", "", http.StatusBadRequest)
			return
		}
		limit = n
	}

	req := query.Request{
		Station: q.Get("station"),
		Time:    q.Get("time"),
		Limit:   limit,
	}
	if _, ok := q["time"]; !ok {
		req.Time = h.currentTime()
	}

	res, err := h.client.NextDepartures(req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, query.ErrNoSnapshot) {
			status = http.StatusServiceUnavailable
		}
		h.writeError(w, err.Error(), render.MessageFor(err), status)
		return
	}

	data := make([]DepartureResponse, len(res.Departures))
	for i, d := range res.Departures {
		data[i] = DepartureResponse{
			Time:        d.Time,
			Line:        string(d.Line),
			LineName:    render.Info(d.Line).Name,
			Platform:    string(d.Platform),
			Type:        d.Type,
			Destination: d.Destination,
		}
	}

	response := DeparturesResponse{
		Data:       data,
		Station:    string(res.Station),
		Direction:  string(res.Direction),
		Time:       res.Time,
		Variant:    string(res.Variant),
		SnapshotID: res.SnapshotID.String(),
		Updated:    h.formatUpdated(h.client.GetLastUpdate()),
	}
	if res.Ended() {
		response.Message = render.MsgServiceEnded
	}

	h.writeResponse(w, r, response)
}

func (h *Handler) handleTimetable(w http.ResponseWriter, r *http.Request) {
	snap, err := h.client.Snapshot()
	if err != nil {
		h.writeError(w, err.Error(), render.MessageFor(err), http.StatusServiceUnavailable)
		return
	}
	h.writeResponse(w, r, h.timetableResponse(snap))
}

func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	snap, err := h.client.Reload(r.Context())
	if err != nil {
		slog.Error("Timetable reload failed", "error", err)
		status := http.StatusInternalServerError
		var le *feed.LoadError
		if errors.As(err, &le) {
			status = http.StatusBadGateway
		}
		h.writeError(w, err.Error(), render.MessageFor(err), status)
		return
	}
	h.writeResponse(w, r, h.timetableResponse(snap))
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{Status: "ok"}
	if _, err := h.client.Snapshot(); err == nil {
		response.Loaded = true
		response.Updated = h.formatUpdated(h.client.GetLastUpdate())
	}
	if at, err := h.client.GetLastFailure(); err != nil {
		response.LastFailure = at.In(h.location).Format(time.RFC3339) + " " + err.Error()
	}
	h.writeJSON(w, response)
}

// requireSession rejects API calls from clients that have not unlocked the gate
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state, err := h.gate.Check(r.Context(), h.sessionKey(w, r))
		if err != nil {
			slog.Error("Session check failed", "error", err)
			h.writeError(w, "Session check failed", render.MsgUnexpected, http.StatusInternalServerError)
			return
		}
		if state != auth.Unlocked {
			h.writeError(w, "Authentication required", render.MsgEnterPassword, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sessionKey returns the store key for this browser, issuing a client id
// cookie when the request has none
func (h *Handler) sessionKey(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(ClientCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return auth.ClientKey(id.String())
		}
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     ClientCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	// Make the id visible to later lookups within the same request
	r.AddCookie(&http.Cookie{Name: ClientCookie, Value: id})
	return auth.ClientKey(id)
}

func (h *Handler) timetableResponse(snap *models.Snapshot) TimetableResponse {
	return TimetableResponse{
		Data:       snap.Summarize(),
		SnapshotID: snap.ID.String(),
		Date:       snap.Date.In(h.location).Format(time.DateOnly),
		Variant:    string(snap.Variant),
		Updated:    h.formatUpdated(snap.LoadedAt),
	}
}

func (h *Handler) currentTime() string {
	return models.MinutesToTime(models.ClockMinutes(h.now().In(h.location)))
}

func (h *Handler) formatUpdated(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(h.location).Format(time.RFC3339)
}

func loginStatus(err error) int {
	var ae *auth.AuthError
	switch {
	case errors.Is(err, auth.ErrEmptyPassword):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrWrongPassword):
		return http.StatusUnauthorized
	case errors.As(err, &ae):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *Handler) writePage(w http.ResponseWriter, status int, page render.Page) {
	var buf bytes.Buffer
	if err := h.renderer.Page(&buf, page); err != nil {
		slog.Error("Failed to render page", "error", err)
		http.Error(w, render.MsgUnexpected, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// writeResponse encodes data as JSON, or as a protobuf Struct when the client
// asks for one
func (h *Handler) writeResponse(w http.ResponseWriter, r *http.Request, data interface{}) {
	if !strings.Contains(r.Header.Get("Accept"), protobufType) {
		h.writeJSON(w, data)
		return
	}

	b, err := encodeStruct(data)
	if err != nil {
		h.writeError(w, "Failed to encode response", "", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", protobufType)
	w.Write(b)
}

func encodeStruct(data interface{}) ([]byte, error) {
	js, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(js, s); err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.writeError(w, "Failed to encode response", "", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message, display string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message, Message: display})
}
