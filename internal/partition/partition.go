// Package partition distributes an ordered set of runs across a fixed number
// of jobs as contiguous, near-equal blocks.
package partition

import "fmt"

// Block is one job's slice of the run ordinals: [Start, End).
type Block struct {
	JobID int
	Start int
	End   int
}

// Size returns the number of runs in the block.
func (b Block) Size() int { return b.End - b.Start }

// Error reports a job count inconsistent with the run count.
type Error struct {
	Runs int
	Jobs int
}

func (e *Error) Error() string {
	return fmt.Sprintf("cannot split %d runs into %d jobs", e.Runs, e.Jobs)
}

// Split partitions n run ordinals into jobs contiguous blocks whose sizes
// differ by at most one, the first n mod jobs blocks taking the extra run.
// Runs inside a job stay adjacent, and the assignment is a pure function of
// n and jobs.
func Split(n, jobs int) ([]Block, error) {
	if jobs < 1 || jobs > n {
		return nil, &Error{Runs: n, Jobs: jobs}
	}

	base := n / jobs
	extra := n % jobs

	blocks := make([]Block, jobs)
	start := 0
	for k := 0; k < jobs; k++ {
		size := base
		if k < extra {
			size++
		}
		blocks[k] = Block{JobID: k, Start: start, End: start + size}
		start += size
	}
	return blocks, nil
}

// Slots returns how many of a block's runs may be launched concurrently,
// bounded by the configured parallelism. Advisory only: it is rendered into
// the job script, not enforced here.
func Slots(b Block, parallel int) int {
	if parallel < 1 {
		parallel = 1
	}
	if parallel > b.Size() {
		return b.Size()
	}
	return parallel
}
