package flowtable

import (
	"container/heap"

	"go.uber.org/zap"
)

// Task is one unit of resumable work registered with a Scheduler. Run
// performs one slice of work and reports whether more remains.
type Task interface {
	// Run executes one slice of the task's work and returns false once
	// the task has nothing left to do.
	Run() (more bool)
}

// IterCallback is invoked once per matching entry during an iterator
// task's sweep, and once more with a nil entry when the sweep
// completes. Mirrors ft_iter_task_callback's end-sentinel convention.
type IterCallback func(entry *Entry)

// IterTask sweeps an engine's entry pool in slot order, skipping FREE
// and DELETE_MARKED slots and optionally filtering by a Query,
// invoking callback for each match and once more with a nil entry at
// the end. It is resumable: Run inspects at most maxStepsPerRun slots
// per call and then yields; it does not ask the scheduler whether to
// yield.
//
// Grounded on ft_spawn_iter_task / ft_iter_task_callback: the original
// walks the fixed entry array by cursor rather than the all-entries
// list, since the DELETE_MARKED/FREE filter is cheap per-slot and a
// cursor survives entries being added or removed between yields more
// simply than a linked-list position would.
type IterTask struct {
	engine   *Engine
	query    *Query
	callback IterCallback
	cursor   int
	done     bool
}

// NewIterTask creates an iterator task over engine. query may be nil,
// in which case every entry that is neither FREE nor DELETE_MARKED is
// visited; a non-nil query's Mode/fields further restrict which
// entries are visited exactly as Query does.
func NewIterTask(engine *Engine, query *Query, callback IterCallback) *IterTask {
	if query != nil && !query.isKnownMode() {
		engine.logger.Error("unknown query mode", zap.Int("mode", int(query.Mode)))
	}
	return &IterTask{engine: engine, query: query, callback: callback}
}

// maxStepsPerRun bounds how many pool slots an iterator task inspects
// before yielding control back to the scheduler, regardless of how
// many of those slots matched.
const maxStepsPerRun = 17

// Run advances the sweep by up to maxStepsPerRun slots, invoking
// callback for each matching entry found along the way. It returns
// false once the sweep has reached the end of the pool, having already
// delivered the nil-entry end sentinel.
func (t *IterTask) Run() bool {
	if t.done {
		return false
	}

	steps := 0
	for t.cursor < len(t.engine.entries) && steps < maxStepsPerRun {
		entry := &t.engine.entries[t.cursor]
		t.cursor++
		steps++

		if entry.state == StateFree {
			continue
		}

		if t.query != nil {
			if !t.query.matches(entry) {
				continue
			}
		} else if entry.state == StateDeleteMarked {
			continue
		}

		t.callback(entry)
	}

	if t.cursor >= len(t.engine.entries) {
		t.done = true
		t.callback(nil)
		return false
	}

	return true
}

// schedItem pairs a Task with its scheduling priority; lower values
// run first, ties broken by registration order.
type schedItem struct {
	task     Task
	priority int
	seq      int
	index    int
}

type taskHeap []*schedItem

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *taskHeap) Push(x interface{}) {
	item := x.(*schedItem)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Scheduler runs a priority-ordered set of resumable Tasks
// cooperatively, giving each its turn in priority order (lowest value
// first) until it reports it has no more work.
//
// Grounded on ft_spawn_iter_task's use of the underlying runtime's
// cooperative task scheduler (ind_soc_should_yield /
// ind_soc_task_register in the original); here a container/heap
// priority queue of Task stands in for that runtime facility, since
// this package has no socket-manager equivalent to delegate to.
type Scheduler struct {
	items taskHeap
	seq   int
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	s := &Scheduler{}
	heap.Init(&s.items)
	return s
}

// Register adds task to the scheduler at the given priority. Lower
// priority values are run first.
func (s *Scheduler) Register(task Task, priority int) {
	heap.Push(&s.items, &schedItem{task: task, priority: priority, seq: s.seq})
	s.seq++
}

// Run drives every registered task to completion, always resuming the
// lowest-priority pending task next. Tasks that still have work left
// after their turn are re-queued at the same priority.
func (s *Scheduler) Run() {
	for s.items.Len() > 0 {
		item := heap.Pop(&s.items).(*schedItem)
		if item.task.Run() {
			item.seq = s.seq
			s.seq++
			heap.Push(&s.items, item)
		}
	}
}

// Pending reports how many tasks remain registered (running or
// waiting for their turn).
func (s *Scheduler) Pending() int {
	return s.items.Len()
}

// SpawnIterTask builds an IterTask over e and registers it with
// scheduler at priority, mirroring ft_spawn_iter_task.
func (e *Engine) SpawnIterTask(scheduler *Scheduler, query *Query, callback IterCallback, priority int) {
	task := NewIterTask(e, query, callback)
	scheduler.Register(task, priority)
}
