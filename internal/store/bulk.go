package store

import (
	"context"

	"github.com/sourcegraph/conc/iter"
	"github.com/yukikurage/task-sync/internal/models"
)

const bulkConcurrency = 8

// BulkFailure is one id that BulkMutate could not update.
type BulkFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
	Err   error  `json:"-"`
}

// BulkResult lists per-id outcomes. Succeeded updates are never rolled back.
type BulkResult struct {
	Succeeded []string      `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

func (r BulkResult) FailedIDs() []string {
	ids := make([]string, len(r.Failed))
	for i, f := range r.Failed {
		ids[i] = f.ID
	}
	return ids
}

// BulkMutate applies patch to each id independently and waits for every
// dispatch. Results keep the order of ids.
func (s *Store) BulkMutate(ctx context.Context, ids []string, patch models.TaskPatch) BulkResult {
	mapper := iter.Mapper[string, error]{MaxGoroutines: bulkConcurrency}
	errs := mapper.Map(ids, func(id *string) error {
		p, err := s.Mutate(ctx, *id, patch)
		if err != nil {
			return err
		}
		return p.Wait(ctx)
	})

	res := BulkResult{Succeeded: []string{}, Failed: []BulkFailure{}}
	for i, err := range errs {
		if err == nil {
			res.Succeeded = append(res.Succeeded, ids[i])
			continue
		}
		res.Failed = append(res.Failed, BulkFailure{ID: ids[i], Error: err.Error(), Err: err})
	}
	if len(res.Failed) > 0 {
		s.log.Warn("bulk update partially failed", "failed", len(res.Failed), "total", len(ids))
	}
	return res
}
