package client

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// fakeAPI is an in-memory stand-in for the TaskForU API.
type fakeAPI struct {
	mu       sync.Mutex
	tasks    map[uuid.UUID]Task
	token    string
	hits     map[string]int
	failWith int
	failLeft int
	// beforeWrite runs at the start of every PUT and DELETE.
	beforeWrite func(r *http.Request)
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{
		tasks: make(map[uuid.UUID]Task),
		token: "valid-token",
		hits:  make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", f.login)
	mux.HandleFunc("POST /api/auth/logout", f.authed(func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
	}))
	mux.HandleFunc("GET /api/tasks", f.authed(f.list))
	mux.HandleFunc("POST /api/tasks", f.authed(f.create))
	mux.HandleFunc("GET /api/tasks/stats", f.authed(f.stats))
	mux.HandleFunc("GET /api/tasks/{id}", f.authed(f.get))
	mux.HandleFunc("PUT /api/tasks/{id}", f.authed(f.update))
	mux.HandleFunc("DELETE /api/tasks/{id}", f.authed(f.delete))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (f *fakeAPI) seed(titles ...string) []Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	out := make([]Task, 0, len(titles))
	for i, title := range titles {
		t := Task{
			ID:        uuid.New(),
			Title:     title,
			Status:    StatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UserID:    1,
		}
		f.tasks[t.ID] = t
		out = append(out, t)
	}
	return out
}

func (f *fakeAPI) hitCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[key]
}

// failNext makes the next n requests that reach a task handler fail.
func (f *fakeAPI) failNext(n, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failLeft = n
	f.failWith = status
}

func (f *fakeAPI) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+f.token {
			writeTestJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or missing authentication token"})
			return
		}
		f.mu.Lock()
		f.hits[r.Method+" "+r.URL.Path]++
		fail := f.failLeft > 0
		if fail {
			f.failLeft--
		}
		status := f.failWith
		f.mu.Unlock()
		if fail {
			writeTestJSON(w, status, map[string]string{"error": "forced failure"})
			return
		}
		next(w, r)
	}
}

func (f *fakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	json.NewDecoder(r.Body).Decode(&in)
	if in.Email != "ana@x.com" || in.Password != "pw12345" {
		writeTestJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
		return
	}
	writeTestJSON(w, http.StatusOK, LoginResult{
		Token:     f.token,
		User:      User{ID: 1, Name: "Ana", Email: in.Email, IsActive: true},
		ExpiresAt: time.Now().Add(time.Hour),
	})
}

func (f *fakeAPI) list(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	tasks := make([]Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		tasks = append(tasks, t)
	}
	f.mu.Unlock()
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })
	writeTestJSON(w, http.StatusOK, TaskPage{
		Tasks:      tasks,
		TotalCount: int64(len(tasks)),
		Page:       1,
		PageSize:   10,
		TotalPages: 1,
	})
}

func (f *fakeAPI) create(w http.ResponseWriter, r *http.Request) {
	var in NewTask
	json.NewDecoder(r.Body).Decode(&in)
	if in.Title == "" {
		writeTestJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]string{"title": "must be provided"}})
		return
	}
	t := Task{ID: uuid.New(), Title: in.Title, Description: in.Description, Status: StatusPending, CreatedAt: time.Now().UTC(), UserID: 1}
	f.mu.Lock()
	f.tasks[t.ID] = t
	f.mu.Unlock()
	writeTestJSON(w, http.StatusCreated, t)
}

func (f *fakeAPI) stats(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var s TaskStats
	for _, t := range f.tasks {
		s.TotalTasks++
		if t.Status == StatusDone {
			s.CompletedTasks++
		} else {
			s.PendingTasks++
		}
	}
	writeTestJSON(w, http.StatusOK, s)
}

func (f *fakeAPI) lookup(w http.ResponseWriter, r *http.Request) (Task, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeTestJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return Task{}, false
	}
	f.mu.Lock()
	t, ok := f.tasks[id]
	f.mu.Unlock()
	if !ok {
		writeTestJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return Task{}, false
	}
	return t, true
}

func (f *fakeAPI) get(w http.ResponseWriter, r *http.Request) {
	if t, ok := f.lookup(w, r); ok {
		writeTestJSON(w, http.StatusOK, t)
	}
}

func (f *fakeAPI) update(w http.ResponseWriter, r *http.Request) {
	if f.beforeWrite != nil {
		f.beforeWrite(r)
	}
	t, ok := f.lookup(w, r)
	if !ok {
		return
	}
	var upd TaskUpdate
	json.NewDecoder(r.Body).Decode(&upd)
	t = upd.apply(t)
	f.mu.Lock()
	f.tasks[t.ID] = t
	f.mu.Unlock()
	writeTestJSON(w, http.StatusOK, t)
}

func (f *fakeAPI) delete(w http.ResponseWriter, r *http.Request) {
	if f.beforeWrite != nil {
		f.beforeWrite(r)
	}
	t, ok := f.lookup(w, r)
	if !ok {
		return
	}
	f.mu.Lock()
	delete(f.tasks, t.ID)
	f.mu.Unlock()
	writeTestJSON(w, http.StatusOK, map[string]string{"message": "task deleted successfully"})
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var fastRetry = RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

func newTestQueries(t *testing.T) (*Queries, *fakeAPI) {
	t.Helper()
	f, srv := newFakeAPI(t)
	api := New(srv.URL+"/api", WithToken(f.token), WithLogger(quietLogger()))
	q := NewQueries(api, NewCache(RetryPolicy{}, quietLogger()), NewFilterStore())
	q.MutationRetry = RetryPolicy{}
	return q, f
}
