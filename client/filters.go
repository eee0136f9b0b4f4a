package client

import (
	"net/url"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Filters is the list query the UI is currently showing. An empty Status
// means every status.
type Filters struct {
	Page      int
	PageSize  int
	Search    string
	Status    Status
	SortBy    string
	SortOrder SortOrder
}

func DefaultFilters() Filters {
	return Filters{
		Page:      1,
		PageSize:  10,
		SortBy:    "createdAt",
		SortOrder: SortDesc,
	}
}

// Values encodes the filters as list query parameters, leaving out empty ones.
func (f Filters) Values() url.Values {
	v := url.Values{}
	if f.Page > 0 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(f.PageSize))
	}
	if f.Search != "" {
		v.Set("search", f.Search)
	}
	if f.Status != "" {
		v.Set("status", string(f.Status))
	}
	if f.SortBy != "" {
		v.Set("sortBy", f.SortBy)
	}
	if f.SortOrder != "" {
		v.Set("sortOrder", string(f.SortOrder))
	}
	return v
}

// FilterPatch is a partial Filters update; nil fields keep their value.
type FilterPatch struct {
	Page      *int
	PageSize  *int
	Search    *string
	Status    *Status
	SortBy    *string
	SortOrder *SortOrder
}

// FilterStore holds the list filters and the task selection. Changing the
// page size, the search term or the status filter goes back to page 1.
type FilterStore struct {
	mu        sync.Mutex
	filters   Filters
	selected  []uuid.UUID
	listeners map[int]func(Filters)
	nextID    int
}

func NewFilterStore() *FilterStore {
	return &FilterStore{
		filters:   DefaultFilters(),
		listeners: make(map[int]func(Filters)),
	}
}

func (s *FilterStore) Filters() Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

// Subscribe registers fn to run after every filter change. The returned
// func removes it.
func (s *FilterStore) Subscribe(fn func(Filters)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *FilterStore) update(fn func(f *Filters)) {
	s.mu.Lock()
	before := s.filters
	fn(&s.filters)
	after := s.filters
	listeners := make([]func(Filters), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	if before == after {
		return
	}
	for _, l := range listeners {
		l(after)
	}
}

func (s *FilterStore) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	s.update(func(f *Filters) { f.Page = page })
}

func (s *FilterStore) SetPageSize(size int) {
	s.update(func(f *Filters) {
		f.PageSize = size
		f.Page = 1
	})
}

func (s *FilterStore) SetSearch(search string) {
	s.update(func(f *Filters) {
		f.Search = search
		f.Page = 1
	})
}

// SetStatus narrows the list to one status; "" shows all.
func (s *FilterStore) SetStatus(status Status) {
	s.update(func(f *Filters) {
		f.Status = status
		f.Page = 1
	})
}

func (s *FilterStore) SetSorting(sortBy string, order SortOrder) {
	s.update(func(f *Filters) {
		f.SortBy = sortBy
		f.SortOrder = order
	})
}

func (s *FilterStore) SetFilters(p FilterPatch) {
	s.update(func(f *Filters) {
		if p.Page != nil {
			f.Page = *p.Page
		}
		if p.PageSize != nil {
			f.PageSize = *p.PageSize
		}
		if p.Search != nil {
			f.Search = *p.Search
		}
		if p.Status != nil {
			f.Status = *p.Status
		}
		if p.SortBy != nil {
			f.SortBy = *p.SortBy
		}
		if p.SortOrder != nil {
			f.SortOrder = *p.SortOrder
		}
		if p.Search != nil || p.Status != nil {
			f.Page = 1
		}
	})
}

// Reset restores the default filters and clears the selection.
func (s *FilterStore) Reset() {
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
	s.update(func(f *Filters) { *f = DefaultFilters() })
}

func (s *FilterStore) Selected() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uuid.UUID(nil), s.selected...)
}

func (s *FilterStore) SetSelected(ids []uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = append([]uuid.UUID(nil), ids...)
}

func (s *FilterStore) ToggleSelection(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sel := range s.selected {
		if sel == id {
			s.selected = append(s.selected[:i], s.selected[i+1:]...)
			return
		}
	}
	s.selected = append(s.selected, id)
}

func (s *FilterStore) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = nil
}
