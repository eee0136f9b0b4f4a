package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var errStoreDown = errors.New("store unavailable")

type memUserStore struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*user
	err    error
}

func newMemUserStore() *memUserStore {
	return &memUserStore{byID: make(map[int64]*user)}
}

func (s *memUserStore) getUserByEmail(ctx context.Context, email string) (*user, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	for _, u := range s.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errRecordNotFound
}

func (s *memUserStore) getUserByID(ctx context.Context, id int64) (*user, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.byID[id]
	if !ok {
		return nil, errRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memUserStore) insertUser(ctx context.Context, u *user) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, existing := range s.byID {
		if existing.Email == u.Email {
			return errDuplicateEmail
		}
	}
	s.nextID++
	u.ID = s.nextID
	u.CreatedAt = time.Now().UTC()
	cp := *u
	s.byID[u.ID] = &cp
	return nil
}

func (s *memUserStore) updateUserPassword(ctx context.Context, u *user) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	existing, ok := s.byID[u.ID]
	if !ok || !existing.IsActive {
		return errRecordNotFound
	}
	now := time.Now().UTC()
	existing.PasswordHash = u.PasswordHash
	existing.UpdatedAt = &now
	u.UpdatedAt = &now
	return nil
}

func (s *memUserStore) deactivate(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[id].IsActive = false
}

type memTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*task
	err   error
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: make(map[uuid.UUID]*task)}
}

func (s *memTaskStore) listTasks(ctx context.Context, userID int64, f taskFilter) ([]*task, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, 0, s.err
	}

	term := searchTerm(f.Search)
	matched := []*task{}
	for _, t := range s.tasks {
		if t.UserID != userID {
			continue
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(t.Title), term) &&
			!strings.Contains(strings.ToLower(t.Description), term) {
			continue
		}
		cp := *t
		matched = append(matched, &cp)
	}

	less := func(a, b *task) bool {
		switch sortColumn(f.SortBy) {
		case "title":
			if a.Title != b.Title {
				return a.Title < b.Title
			}
		case "status":
			if a.Status != b.Status {
				return a.Status < b.Status
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		}
		return a.ID.String() < b.ID.String()
	}
	sort.Slice(matched, func(i, j int) bool {
		if f.SortDescending {
			return less(matched[j], matched[i])
		}
		return less(matched[i], matched[j])
	})

	total := int64(len(matched))
	start := pageOffset(f.Page, f.PageSize)
	if start > len(matched) {
		start = len(matched)
	}
	end := start + f.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *memTaskStore) getTask(ctx context.Context, id uuid.UUID, userID int64) (*task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return nil, errRecordNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memTaskStore) insertTask(ctx context.Context, t *task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	cp := *t
	s.tasks[t.ID] = &cp
	return nil
}

func (s *memTaskStore) updateTask(ctx context.Context, t *task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	existing, ok := s.tasks[t.ID]
	if !ok || existing.UserID != t.UserID {
		return errRecordNotFound
	}
	existing.Title = t.Title
	existing.Description = t.Description
	existing.Status = t.Status
	return nil
}

func (s *memTaskStore) deleteTask(ctx context.Context, id uuid.UUID, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return false, nil
	}
	delete(s.tasks, id)
	return true, nil
}

func (s *memTaskStore) taskStats(ctx context.Context, userID int64) (taskStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return taskStats{}, s.err
	}
	var stats taskStats
	for _, t := range s.tasks {
		if t.UserID != userID {
			continue
		}
		stats.TotalTasks++
		switch t.Status {
		case statusDone:
			stats.CompletedTasks++
		case statusPending:
			stats.PendingTasks++
		}
	}
	return stats, nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAuthService(users userStore) *authService {
	return &authService{
		users:    users,
		tokens:   newTokenIssuer("test-secret", "TaskForU.Api", "TaskForU.Client", time.Hour),
		throttle: newLoginThrottle(0, time.Minute),
		hashCost: bcrypt.MinCost,
		logger:   newTestLogger(),
	}
}

type testApp struct {
	app   *application
	users *memUserStore
	tasks *memTaskStore
	srv   *httptest.Server
}

func newTestApplication(t *testing.T) *testApp {
	t.Helper()

	users := newMemUserStore()
	tasks := newMemTaskStore()
	var cfg config
	cfg.env = "testing"

	app := &application{
		config: cfg,
		logger: newTestLogger(),
		auth:   newTestAuthService(users),
		tasks:  newTaskService(tasks, newTestLogger()),
	}
	srv := httptest.NewServer(app.routes())
	t.Cleanup(srv.Close)

	return &testApp{app: app, users: users, tasks: tasks, srv: srv}
}

// do sends a JSON request and decodes the response body into a generic map.
func (ta *testApp) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		js, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(js)
	}
	req, err := http.NewRequest(method, ta.srv.URL+path, rdr)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := ta.srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s %s response %q: %v", method, path, raw, err)
		}
	}
	return res.StatusCode, out
}

// login registers a user and returns a bearer token for it.
func (ta *testApp) login(t *testing.T, name, email, password string) string {
	t.Helper()

	status, _ := ta.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": name, "email": email, "password": password,
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s: status %d", email, status)
	}
	status, body := ta.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	if status != http.StatusOK {
		t.Fatalf("login %s: status %d", email, status)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("login %s: empty token", email)
	}
	return token
}
