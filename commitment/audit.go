package commitment

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// AuditResult summarizes a parallel verification of every entry.
type AuditResult struct {
	Checked int
	Failed  []int // entry indices that did not verify, ascending
	Errs    []error
}

// OK reports whether every entry verified.
func (r *AuditResult) OK() bool { return len(r.Failed) == 0 }

// Err returns the failure of the lowest failing entry, or nil.
func (r *AuditResult) Err() error {
	if r.OK() {
		return nil
	}
	return fmt.Errorf("entry %d: %w (%d of %d entries failed)", r.Failed[0], r.Errs[0], len(r.Failed), r.Checked)
}

// Audit verifies every entry against the root using up to workers
// goroutines. Unlike Verify it checks all entries and reports every failure.
// It stops early only when ctx is cancelled.
func (c *Commitment) Audit(ctx context.Context, workers int) (*AuditResult, error) {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	errs := make([]error, len(c.Entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range c.Entries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			errs[i] = c.Entries[i].Verify(c.Root)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &AuditResult{Checked: len(c.Entries)}
	for i, err := range errs {
		if err != nil {
			res.Failed = append(res.Failed, i)
			res.Errs = append(res.Errs, err)
		}
	}
	return res, nil
}
