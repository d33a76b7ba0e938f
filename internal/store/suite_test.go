package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omjikush09/aggroso/internal/specs"
	"github.com/omjikush09/aggroso/internal/store"
)

// sampleSpec builds a spec with two stories and three tasks. created
// controls history ordering.
func sampleSpec(id string, created time.Time) specs.Specification {
	constraints := "GDPR"
	return specs.Specification{
		ID:        id,
		CreatedAt: created,
		Input: specs.Input{
			Goal:        "goal " + id,
			Users:       "teams",
			Constraints: &constraints,
			Template:    specs.TemplateWeb,
		},
		Output: specs.Output{
			Stories: []specs.Story{
				{ID: id + "-us-1", Content: "story one"},
				{ID: id + "-us-2", Content: "story two"},
			},
			Tasks: []specs.Task{
				{ID: id + "-t-1", Content: "setup", Group: "setup"},
				{ID: id + "-t-2", Content: "api", Group: "backend"},
				{ID: id + "-t-3", Content: "ui", Group: "frontend", Completed: true},
			},
		},
	}
}

func mustCreate(t *testing.T, s store.Store, spec specs.Specification) {
	t.Helper()
	require.NoError(t, s.CreateSpec(context.Background(), spec), "CreateSpec(%s)", spec.ID)
}

func taskIDs(tasks []specs.Task) []string {
	ids := make([]string, len(tasks))
	for i, task := range tasks {
		ids[i] = task.ID
	}
	return ids
}

func specIDs(list []specs.Specification) []string {
	ids := make([]string, len(list))
	for i, spec := range list {
		ids[i] = spec.ID
	}
	return ids
}

// runStoreContract exercises the behavior every Store backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) store.Store) {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	t.Run("RoundTrip", func(t *testing.T) {
		s := newStore(t)
		spec := sampleSpec("rt", base)
		mustCreate(t, s, spec)

		got, err := s.GetSpec(context.Background(), "rt")
		require.NoError(t, err)
		assert.Equal(t, spec.Input.Goal, got.Input.Goal)
		require.NotNil(t, got.Input.Constraints)
		assert.Equal(t, "GDPR", *got.Input.Constraints)
		assert.True(t, got.CreatedAt.Equal(base), "createdAt = %v, want %v", got.CreatedAt, base)
		assert.Equal(t, taskIDs(spec.Output.Tasks), taskIDs(got.Output.Tasks))
		assert.True(t, got.Output.Tasks[2].Completed, "completed flag lost on round-trip")
	})

	t.Run("NullConstraints", func(t *testing.T) {
		s := newStore(t)
		spec := sampleSpec("nc", base)
		spec.Input.Constraints = nil
		mustCreate(t, s, spec)

		got, err := s.GetSpec(context.Background(), "nc")
		require.NoError(t, err)
		assert.Nil(t, got.Input.Constraints)
	})

	t.Run("GetNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetSpec(context.Background(), "missing")
		assert.ErrorIs(t, err, specs.ErrNotFound)
	})

	t.Run("HistoryNewestFirstAndCapped", func(t *testing.T) {
		s := newStore(t)
		for i := range 7 {
			mustCreate(t, s, sampleSpec(fmt.Sprintf("h%d", i), base.Add(time.Duration(i)*time.Minute)))
		}

		got, err := s.ListSpecs(context.Background(), store.DefaultHistoryLimit)
		require.NoError(t, err)
		require.Len(t, got, 5)
		assert.Equal(t, []string{"h6", "h5", "h4", "h3", "h2"}, specIDs(got))
		for i, spec := range got {
			assert.Len(t, spec.Output.Tasks, 3, "history[%d] tasks", i)
			assert.Len(t, spec.Output.Stories, 2, "history[%d] stories", i)
		}
	})

	t.Run("HistoryOrderedByCreatedAtNotInsertion", func(t *testing.T) {
		s := newStore(t)
		// Insertion order deliberately disagrees with both creation time
		// and id order.
		offsets := map[string]time.Duration{
			"a": 3 * time.Hour,
			"b": -2 * time.Hour,
			"c": 5 * time.Hour,
			"d": 0,
			"e": -time.Hour,
			"f": 4 * time.Hour,
		}
		for _, id := range []string{"d", "a", "e", "c", "b", "f"} {
			mustCreate(t, s, sampleSpec(id, base.Add(offsets[id])))
		}

		got, err := s.ListSpecs(context.Background(), 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "f", "a", "d", "e", "b"}, specIDs(got))

		capped, err := s.ListSpecs(context.Background(), 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "f", "a"}, specIDs(capped))
	})

	t.Run("HistoryTiesBrokenByIDDescending", func(t *testing.T) {
		s := newStore(t)
		for _, id := range []string{"m", "z", "a"} {
			mustCreate(t, s, sampleSpec(id, base))
		}

		got, err := s.ListSpecs(context.Background(), 5)
		require.NoError(t, err)
		assert.Equal(t, []string{"z", "m", "a"}, specIDs(got))
	})

	t.Run("HistoryDefaultLimit", func(t *testing.T) {
		s := newStore(t)
		for i := range 6 {
			mustCreate(t, s, sampleSpec(fmt.Sprintf("d%d", i), base.Add(time.Duration(i)*time.Second)))
		}
		got, err := s.ListSpecs(context.Background(), 0)
		require.NoError(t, err)
		assert.Len(t, got, store.DefaultHistoryLimit)
	})

	t.Run("HistoryEmpty", func(t *testing.T) {
		s := newStore(t)
		got, err := s.ListSpecs(context.Background(), 5)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("ReplaceTasksPreservesOrder", func(t *testing.T) {
		s := newStore(t)
		spec := sampleSpec("ro", base)
		mustCreate(t, s, spec)

		reordered := []specs.Task{spec.Output.Tasks[2], spec.Output.Tasks[0], spec.Output.Tasks[1]}
		got, err := s.Replace(context.Background(), "ro", store.ReplaceTasks(reordered))
		require.NoError(t, err)
		assert.Equal(t, taskIDs(reordered), taskIDs(got.Output.Tasks), "returned order")

		reread, err := s.GetSpec(context.Background(), "ro")
		require.NoError(t, err)
		assert.Equal(t, taskIDs(reordered), taskIDs(reread.Output.Tasks), "persisted order")
		assert.Len(t, reread.Output.Stories, 2, "stories untouched")
	})

	t.Run("ReplaceEmptyTasksClears", func(t *testing.T) {
		s := newStore(t)
		mustCreate(t, s, sampleSpec("clr", base))

		got, err := s.Replace(context.Background(), "clr", store.OpsFor(specs.UpdatePayload{Tasks: []specs.Task{}})...)
		require.NoError(t, err)
		assert.NotNil(t, got.Output.Tasks)
		assert.Empty(t, got.Output.Tasks)
		assert.Len(t, got.Output.Stories, 2)
	})

	t.Run("ReplaceBothCollections", func(t *testing.T) {
		s := newStore(t)
		mustCreate(t, s, sampleSpec("both", base))

		payload := specs.UpdatePayload{
			Tasks:   []specs.Task{{ID: "n1", Content: "new", Group: "planning"}},
			Stories: []specs.Story{{ID: "s9", Content: "only story"}},
		}
		got, err := s.Replace(context.Background(), "both", store.OpsFor(payload)...)
		require.NoError(t, err)
		require.Len(t, got.Output.Tasks, 1)
		assert.Equal(t, "n1", got.Output.Tasks[0].ID)
		require.Len(t, got.Output.Stories, 1)
		assert.Equal(t, "only story", got.Output.Stories[0].Content)
	})

	t.Run("ReplaceNotFoundMutatesNothing", func(t *testing.T) {
		s := newStore(t)
		mustCreate(t, s, sampleSpec("keep", base))

		_, err := s.Replace(context.Background(), "ghost", store.ReplaceTasks{})
		require.ErrorIs(t, err, specs.ErrNotFound)

		got, err := s.GetSpec(context.Background(), "keep")
		require.NoError(t, err)
		assert.Len(t, got.Output.Tasks, 3)
	})

	t.Run("ConcurrentReplacesLastWins", func(t *testing.T) {
		s := newStore(t)
		mustCreate(t, s, sampleSpec("cc", base))

		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				tasks := []specs.Task{{ID: fmt.Sprintf("c%d", i), Content: "x", Group: "g"}}
				if _, err := s.Replace(context.Background(), "cc", store.ReplaceTasks(tasks)); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err, "concurrent replace")
		}

		got, err := s.GetSpec(context.Background(), "cc")
		require.NoError(t, err)
		assert.Len(t, got.Output.Tasks, 1, "exactly one committed list")
	})

	t.Run("ReadsDoNotWaitForWriters", func(t *testing.T) {
		s := newStore(t)
		mustCreate(t, s, sampleSpec("rw", base))

		var wg sync.WaitGroup
		for i := range 4 {
			wg.Add(2)
			go func() {
				defer wg.Done()
				tasks := []specs.Task{{ID: fmt.Sprintf("w%d", i), Content: "x", Group: "g"}}
				_, err := s.Replace(context.Background(), "rw", store.ReplaceTasks(tasks))
				assert.NoError(t, err)
			}()
			go func() {
				defer wg.Done()
				_, err := s.ListSpecs(context.Background(), 5)
				assert.NoError(t, err)
				_, err = s.GetSpec(context.Background(), "rw")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
	})

	t.Run("Ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(context.Background()))
	})
}
