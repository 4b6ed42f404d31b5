// Package fakepb provides a fake PocketBase HTTP server for testing purposes.
//
// It implements the admin password login, the health endpoint and an in-memory
// version of the collection records API. Login failures, login delays, health
// outages and token expiry can be injected to exercise the gateway's retry and
// re-authentication paths.
package fakepb

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/yuanzhaoK/admin-platform-sub000/pkg/connection"
)

const (
	DefaultIdentity = "admin@example.com"
	DefaultPassword = "fake-password"
	DefaultTokenTTL = time.Hour
)

var signingKey = []byte("fakepb-signing-key")

// Server is a fake PocketBase server backed by httptest.
type Server struct {
	srv *httptest.Server

	mu sync.Mutex

	identity string
	password string
	tokenTTL time.Duration
	tokens   map[string]time.Time

	failLogins int
	loginDelay time.Duration
	healthy    bool

	collections map[string]*collection

	loginCount   int
	healthCount  int
	recordsCount int
}

type collection struct {
	order   []string
	records map[string]map[string]any
}

// NewServer starts a fake PocketBase accepting DefaultIdentity and
// DefaultPassword. Call Close when done.
func NewServer() *Server {
	s := &Server{
		identity:    DefaultIdentity,
		password:    DefaultPassword,
		tokenTTL:    DefaultTokenTTL,
		tokens:      make(map[string]time.Time),
		healthy:     true,
		collections: make(map[string]*collection),
	}
	s.srv = httptest.NewServer(s.router())
	return s
}

func (s *Server) router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc(connection.DefaultAuthPath, s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc(connection.HealthPath, s.handleHealth).Methods(http.MethodGet, http.MethodHead)

	rec := r.PathPrefix("/api/collections/{collection}/records").Subrouter()
	rec.Use(s.requireAdmin)
	rec.HandleFunc("", s.handleList).Methods(http.MethodGet)
	rec.HandleFunc("", s.handleCreate).Methods(http.MethodPost)
	rec.HandleFunc("/{id}", s.handleView).Methods(http.MethodGet)
	rec.HandleFunc("/{id}", s.handleUpdate).Methods(http.MethodPatch)
	rec.HandleFunc("/{id}", s.handleDelete).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "The requested resource wasn't found.")
	})

	return r
}

func (s *Server) URL() string {
	return s.srv.URL
}

func (s *Server) Close() {
	s.srv.Close()
}

// SetCredentials changes the accepted admin identity and password.
func (s *Server) SetCredentials(identity, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity, s.password = identity, password
}

// FailNextLogins makes the next n logins answer 400 regardless of credentials.
func (s *Server) FailNextLogins(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLogins = n
}

func (s *Server) SetLoginDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginDelay = d
}

// SetHealthy toggles the health endpoint between 200 and 503.
func (s *Server) SetHealthy(healthy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = healthy
}

// SetTokenTTL sets the exp claim of tokens issued from now on.
func (s *Server) SetTokenTTL(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenTTL = d
}

// RevokeTokens makes every issued token answer 401.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]time.Time)
}

func (s *Server) LoginCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginCount
}

func (s *Server) HealthCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.healthCount
}

// RecordRequests counts calls to the records API, including rejected ones.
func (s *Server) RecordRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordsCount
}

// Seed stores a record directly and returns its id.
func (s *Server) Seed(collectionName string, fields map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(collectionName, fields)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.loginCount++
	delay := s.loginDelay
	forced := s.failLogins > 0
	if forced {
		s.failLogins--
	}
	identity, password, ttl := s.identity, s.password, s.tokenTTL
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	var body struct {
		Identity string `json:"identity"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Something went wrong while processing your request.")
		return
	}
	if forced || body.Identity != identity || body.Password != password {
		writeError(w, http.StatusBadRequest, "Failed to authenticate.")
		return
	}

	token, expires, err := issueToken(ttl)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.mu.Lock()
	s.tokens[token] = expires
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"admin": map[string]any{"id": "admin0000000001", "email": identity},
	})
}

func issueToken(ttl time.Duration) (string, time.Time, error) {
	expires := time.Now().Add(ttl)
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   "admin0000000001",
		ExpiresAt: jwt.NewNumericDate(expires),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	return token, expires, err
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.healthCount++
	healthy := s.healthy
	s.mu.Unlock()

	if !healthy {
		writeError(w, http.StatusServiceUnavailable, "Service unavailable.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"code": 200, "message": "API is healthy.", "data": map[string]any{}})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(connection.AuthorizationHeader)

		s.mu.Lock()
		s.recordsCount++
		expires, ok := s.tokens[token]
		s.mu.Unlock()

		if !ok || time.Now().After(expires) {
			writeError(w, http.StatusUnauthorized, "The request requires valid admin authorization token to be set.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["collection"]
	q := r.URL.Query()

	page := atoiDefault(q.Get("page"), 1)
	perPage := atoiDefault(q.Get("perPage"), 30)
	field, value, hasFilter := parseFilter(q.Get("filter"))

	s.mu.Lock()
	var items []map[string]any
	if c, ok := s.collections[name]; ok {
		for _, id := range c.order {
			rec := c.records[id]
			if hasFilter && fmt.Sprint(rec[field]) != value {
				continue
			}
			items = append(items, copyRecord(rec))
		}
	}
	s.mu.Unlock()

	if sortField := q.Get("sort"); sortField != "" {
		desc := strings.HasPrefix(sortField, "-")
		sortField = strings.TrimLeft(sortField, "+-")
		sort.SliceStable(items, func(i, j int) bool {
			less := fmt.Sprint(items[i][sortField]) < fmt.Sprint(items[j][sortField])
			if desc {
				return !less
			}
			return less
		})
	}

	total := len(items)
	from := (page - 1) * perPage
	if from > total {
		from = total
	}
	to := from + perPage
	if to > total {
		to = total
	}

	totalItems, totalPages := total, (total+perPage-1)/perPage
	if q.Get("skipTotal") != "" {
		totalItems, totalPages = -1, -1
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"page":       page,
		"perPage":    perPage,
		"totalItems": totalItems,
		"totalPages": totalPages,
		"items":      nonNil(items[from:to]),
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["collection"]

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to load the submitted data due to invalid formatting.")
		return
	}

	s.mu.Lock()
	id := s.insertLocked(name, fields)
	rec := copyRecord(s.collections[name].records[id])
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	s.mu.Lock()
	rec, ok := s.findLocked(vars["collection"], vars["id"])
	if ok {
		rec = copyRecord(rec)
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "The requested resource wasn't found.")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to load the submitted data due to invalid formatting.")
		return
	}

	s.mu.Lock()
	rec, ok := s.findLocked(vars["collection"], vars["id"])
	if ok {
		for k, v := range fields {
			if k == "id" || k == "created" {
				continue
			}
			rec[k] = v
		}
		rec["updated"] = timestamp()
		rec = copyRecord(rec)
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "The requested resource wasn't found.")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	s.mu.Lock()
	_, ok := s.findLocked(vars["collection"], vars["id"])
	if ok {
		c := s.collections[vars["collection"]]
		delete(c.records, vars["id"])
		for i, id := range c.order {
			if id == vars["id"] {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "The requested resource wasn't found.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) insertLocked(name string, fields map[string]any) string {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{records: make(map[string]map[string]any)}
		s.collections[name] = c
	}

	id, _ := fields["id"].(string)
	if id == "" {
		id = strings.ReplaceAll(uuid.NewString(), "-", "")[:15]
	}

	rec := copyRecord(fields)
	now := timestamp()
	rec["id"] = id
	rec["collectionName"] = name
	rec["created"] = now
	rec["updated"] = now

	if _, exists := c.records[id]; !exists {
		c.order = append(c.order, id)
	}
	c.records[id] = rec

	return id
}

func (s *Server) findLocked(name, id string) (map[string]any, bool) {
	c, ok := s.collections[name]
	if !ok {
		return nil, false
	}
	rec, ok := c.records[id]
	return rec, ok
}

// parseFilter understands the single comparison form field='value' (or "value").
func parseFilter(filter string) (field, value string, ok bool) {
	field, value, ok = strings.Cut(filter, "=")
	if !ok {
		return "", "", false
	}
	field = strings.TrimSpace(field)
	value = strings.Trim(strings.TrimSpace(value), `'"`)
	return field, value, field != ""
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func copyRecord(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func nonNil(items []map[string]any) []map[string]any {
	if items == nil {
		return []map[string]any{}
	}
	return items
}

func timestamp() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05.000Z")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"code": status, "message": message, "data": map[string]any{}})
}
