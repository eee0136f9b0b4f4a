package client

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	keyTasks   = "tasks/"
	keyLists   = "tasks/list/"
	keyDetails = "tasks/detail/"
	keyStats   = "stats"
)

func listKey(f Filters) string {
	return keyLists + f.Values().Encode()
}

func detailKey(id uuid.UUID) string {
	return keyDetails + id.String()
}

// bulkConcurrency bounds the requests a bulk operation has in flight.
const bulkConcurrency = 4

// Queries reads tasks through the cache and writes them with optimistic
// cache updates.
type Queries struct {
	api     *Client
	cache   *Cache
	filters *FilterStore
	logger  *slog.Logger

	MutationRetry RetryPolicy
	// OnMutation, when set, is called with every mutation once it settles.
	OnMutation func(*Mutation)
}

func NewQueries(api *Client, cache *Cache, filters *FilterStore) *Queries {
	return &Queries{
		api:           api,
		cache:         cache,
		filters:       filters,
		logger:        cache.logger,
		MutationRetry: MutationRetry,
	}
}

// Tasks lists tasks for the filters currently in the filter store.
func (q *Queries) Tasks(ctx context.Context) (TaskPage, error) {
	return q.TaskList(ctx, q.filters.Filters())
}

func (q *Queries) TaskList(ctx context.Context, f Filters) (TaskPage, error) {
	return fetchAs(ctx, q.cache, listKey(f), ListStaleTime, func(ctx context.Context) (TaskPage, error) {
		page, err := q.api.ListTasks(ctx, f)
		if err != nil {
			return TaskPage{}, err
		}
		return *page, nil
	})
}

func (q *Queries) Task(ctx context.Context, id uuid.UUID) (Task, error) {
	return fetchAs(ctx, q.cache, detailKey(id), DefaultStaleTime, func(ctx context.Context) (Task, error) {
		t, err := q.api.GetTask(ctx, id)
		if err != nil {
			return Task{}, err
		}
		return *t, nil
	})
}

func (q *Queries) Stats(ctx context.Context) (TaskStats, error) {
	return fetchAs(ctx, q.cache, keyStats, StatsStaleTime, func(ctx context.Context) (TaskStats, error) {
		s, err := q.api.Stats(ctx)
		if err != nil {
			return TaskStats{}, err
		}
		return *s, nil
	})
}

// mutate runs call as a Mutation. optimistic is applied after the keys under
// touched are snapshotted and is undone if call fails. Either way the keys
// under settle are invalidated and refetched afterwards.
func (q *Queries) mutate(ctx context.Context, name string, touched []string, optimistic func(), call func(ctx context.Context) error, settle []string) (*Mutation, error) {
	m := newMutation(name)
	if err := m.transition(MutationPending); err != nil {
		return m, err
	}
	m.snapshot = q.cache.Snapshot(touched...)
	if optimistic != nil {
		optimistic()
	}

	err := call(ctx)
	if err != nil {
		q.cache.Restore(m.snapshot)
		m.mu.Lock()
		m.err = err
		m.mu.Unlock()
		_ = m.transition(MutationRolledBack)
		q.logger.Warn("client_mutation_rolled_back", "mutation", name, "error", err)
	} else {
		_ = m.transition(MutationCommitted)
	}

	if rerr := q.cache.InvalidateAndRefetch(ctx, settle...); rerr != nil {
		q.logger.Warn("client_refetch_failed", "mutation", name, "error", rerr)
	}
	_ = m.transition(MutationSettled)

	if q.OnMutation != nil {
		q.OnMutation(m)
	}
	return m, err
}

func (q *Queries) CreateTask(ctx context.Context, in NewTask) (Task, error) {
	var created Task
	_, err := q.mutate(ctx, "create_task", nil, nil, func(ctx context.Context) error {
		return q.MutationRetry.Do(ctx, func(ctx context.Context) error {
			t, err := q.api.CreateTask(ctx, in)
			if err != nil {
				return err
			}
			created = *t
			return nil
		})
	}, []string{keyLists, keyStats})
	return created, err
}

func (q *Queries) UpdateTask(ctx context.Context, id uuid.UUID, upd TaskUpdate) (Task, error) {
	var updated Task
	optimistic := func() {
		q.cache.Update(detailKey(id), func(_ string, old any) any {
			if t, ok := old.(Task); ok {
				return upd.apply(t)
			}
			return old
		})
		q.cache.Update(keyLists, func(_ string, old any) any {
			page, ok := old.(TaskPage)
			if !ok {
				return old
			}
			tasks := make([]Task, len(page.Tasks))
			for i, t := range page.Tasks {
				if t.ID == id {
					t = upd.apply(t)
				}
				tasks[i] = t
			}
			page.Tasks = tasks
			return page
		})
	}

	_, err := q.mutate(ctx, "update_task", []string{detailKey(id), keyLists}, optimistic, func(ctx context.Context) error {
		return q.MutationRetry.Do(ctx, func(ctx context.Context) error {
			t, err := q.api.UpdateTask(ctx, id, upd)
			if err != nil {
				return err
			}
			updated = *t
			return nil
		})
	}, []string{detailKey(id), keyLists, keyStats})
	return updated, err
}

func (q *Queries) DeleteTask(ctx context.Context, id uuid.UUID) error {
	optimistic := func() {
		q.cache.Update(keyLists, func(_ string, old any) any {
			if page, ok := old.(TaskPage); ok {
				return withoutTask(page, id)
			}
			return old
		})
	}

	_, err := q.mutate(ctx, "delete_task", []string{keyLists}, optimistic, func(ctx context.Context) error {
		err := q.MutationRetry.Do(ctx, func(ctx context.Context) error {
			return q.api.DeleteTask(ctx, id)
		})
		if err == nil {
			q.cache.Remove(detailKey(id))
		}
		return err
	}, []string{keyLists, keyStats})
	return err
}

// withoutTask returns a copy of page with the task removed and the counts
// adjusted to match.
func withoutTask(page TaskPage, id uuid.UUID) TaskPage {
	tasks := make([]Task, 0, len(page.Tasks))
	for _, t := range page.Tasks {
		if t.ID != id {
			tasks = append(tasks, t)
		}
	}
	if len(tasks) < len(page.Tasks) && page.TotalCount > 0 {
		page.TotalCount--
		if page.PageSize > 0 {
			page.TotalPages = int((page.TotalCount + int64(page.PageSize) - 1) / int64(page.PageSize))
		}
	}
	page.Tasks = tasks
	return page
}

// BulkDelete deletes the tasks concurrently and clears the selection once
// all of them are gone.
func (q *Queries) BulkDelete(ctx context.Context, ids []uuid.UUID) error {
	_, err := q.mutate(ctx, "bulk_delete", nil, nil, func(ctx context.Context) error {
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(bulkConcurrency)
		for _, id := range ids {
			g.Go(func() error {
				err := q.MutationRetry.Do(ctx, func(ctx context.Context) error {
					return q.api.DeleteTask(ctx, id)
				})
				if err == nil {
					q.cache.Remove(detailKey(id))
				}
				return err
			})
		}
		return g.Wait()
	}, []string{keyLists, keyStats})
	if err == nil {
		q.filters.ClearSelection()
	}
	return err
}

func (q *Queries) BulkUpdate(ctx context.Context, ids []uuid.UUID, upd TaskUpdate) error {
	_, err := q.mutate(ctx, "bulk_update", nil, nil, func(ctx context.Context) error {
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(bulkConcurrency)
		for _, id := range ids {
			g.Go(func() error {
				return q.MutationRetry.Do(ctx, func(ctx context.Context) error {
					_, err := q.api.UpdateTask(ctx, id, upd)
					return err
				})
			})
		}
		return g.Wait()
	}, []string{keyTasks, keyStats})
	return err
}

// Logout signs out and drops every cached query and UI filter.
func (q *Queries) Logout(ctx context.Context) error {
	err := q.api.Logout(ctx)
	q.cache.Clear()
	q.filters.Reset()
	return err
}
