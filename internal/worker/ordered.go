package worker

import "context"

// RunOrdered executes jobs on a pool of the given size and returns their
// results in the same order as jobs. With one worker (or one job) the jobs
// run sequentially on the calling goroutine.
func RunOrdered(ctx context.Context, workers int, jobs []Job) []Result {
	if len(jobs) == 0 {
		return []Result{}
	}

	if workers <= 1 || len(jobs) == 1 {
		results := make([]Result, len(jobs))
		for i, job := range jobs {
			if ctx.Err() != nil {
				break
			}
			results[i] = job.Execute(ctx)
		}
		return results
	}

	if workers > len(jobs) {
		workers = len(jobs)
	}

	pool := NewPool(ctx, workers)
	pool.Start()

	for _, job := range jobs {
		pool.Submit(job)
	}

	return pool.Wait()
}

// FirstError returns the error of the first failed result in order, or the
// context error when a job never produced a result
func FirstError(ctx context.Context, results []Result) error {
	for _, r := range results {
		if r == nil {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}
		if err := r.GetError(); err != nil {
			return err
		}
	}
	return nil
}
