package analysis

import "fmt"

// Job asks the engine for one position. It is immutable once queued.
type Job struct {
	RecordIndex int
	FEN         string
	Depth       int
	FirstPass   bool
}

// JobKey is a job's identity.
type JobKey struct {
	RecordIndex int
	FirstPass   bool
}

func (j Job) Key() JobKey { return JobKey{RecordIndex: j.RecordIndex, FirstPass: j.FirstPass} }

func (j Job) Pass() int {
	if j.FirstPass {
		return 1
	}
	return 2
}

func (j Job) String() string {
	return fmt.Sprintf("job(idx=%d pass=%d depth=%d)", j.RecordIndex, j.Pass(), j.Depth)
}

// JobQueue is a plain FIFO. It never blocks and is not safe for concurrent
// use; Session serializes access.
type JobQueue struct {
	jobs []Job
}

func (q *JobQueue) Enqueue(j Job) { q.jobs = append(q.jobs, j) }

func (q *JobQueue) PushFront(j Job) { q.jobs = append([]Job{j}, q.jobs...) }

// Dequeue pops the head. ok is false when the queue is empty.
func (q *JobQueue) Dequeue() (Job, bool) {
	if len(q.jobs) == 0 {
		return Job{}, false
	}
	j := q.jobs[0]
	q.jobs[0] = Job{}
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		q.jobs = nil
	}
	return j, true
}

func (q *JobQueue) Contains(k JobKey) bool {
	for _, j := range q.jobs {
		if j.Key() == k {
			return true
		}
	}
	return false
}

func (q *JobQueue) Len() int { return len(q.jobs) }

func (q *JobQueue) Clear() { q.jobs = nil }

// DropFrom removes queued jobs targeting index or later.
func (q *JobQueue) DropFrom(index int) int {
	kept := q.jobs[:0]
	dropped := 0
	for _, j := range q.jobs {
		if j.RecordIndex >= index {
			dropped++
			continue
		}
		kept = append(kept, j)
	}
	for i := len(kept); i < len(q.jobs); i++ {
		q.jobs[i] = Job{}
	}
	q.jobs = kept
	return dropped
}

// Jobs returns a copy of the queued jobs in order.
func (q *JobQueue) Jobs() []Job {
	return append([]Job(nil), q.jobs...)
}
