package flowtable

import (
	"testing"
	"time"

	"github.com/rlane/indigo/ofp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIterTaskVisitsLiveEntriesSkipsDeleteMarkedAndFree(t *testing.T) {
	e := Create(Config{MaxEntries: 8})

	var entries []*Entry
	for i := uint64(1); i <= 3; i++ {
		entry, err := e.Add(i, addMsg(ofp.PortNo(i), 100), time.Now())
		require.NoError(t, err)
		entries = append(entries, entry)
	}
	e.MarkDeleted(entries[1], ofp.FlowReasonDelete)

	var visited []uint64
	done := false
	task := NewIterTask(e, nil, func(entry *Entry) {
		if entry == nil {
			done = true
			return
		}
		visited = append(visited, entry.ID())
	})

	for task.Run() {
	}

	assert.True(t, done, "end sentinel should have been delivered")
	assert.ElementsMatch(t, []uint64{1, 3}, visited)
}

func TestIterTaskYieldsEveryMaxSteps(t *testing.T) {
	e := Create(Config{MaxEntries: maxStepsPerRun * 2})

	for i := uint64(1); i <= maxStepsPerRun+5; i++ {
		_, err := e.Add(i, addMsg(ofp.PortNo(i), 100), time.Now())
		require.NoError(t, err)
	}

	task := NewIterTask(e, nil, func(entry *Entry) {})

	more := task.Run()
	assert.True(t, more, "task should not finish within the first maxStepsPerRun slots")
	assert.Equal(t, maxStepsPerRun, task.cursor)
}

func TestIterTaskHonorsQueryFilter(t *testing.T) {
	e := Create(Config{MaxEntries: 4})

	_, err := e.Add(1, addMsg(1, 100), time.Now())
	require.NoError(t, err)
	_, err = e.Add(2, addMsg(2, 200), time.Now())
	require.NoError(t, err)

	q := &Query{Match: matchFor(2), Mode: ModeStrict}

	var visited []uint64
	task := NewIterTask(e, q, func(entry *Entry) {
		if entry != nil {
			visited = append(visited, entry.ID())
		}
	})
	for task.Run() {
	}

	assert.Equal(t, []uint64{2}, visited)
}

func TestIterTaskSweeps1000EntriesExactlyOnceEach(t *testing.T) {
	const n = 1000
	e := Create(Config{MaxEntries: n})

	for i := uint64(1); i <= n; i++ {
		_, err := e.Add(i, addMsg(ofp.PortNo(i), 100), time.Now())
		require.NoError(t, err)
	}

	visited := make(map[uint64]int)
	nilCallbacks := 0
	task := NewIterTask(e, nil, func(entry *Entry) {
		if entry == nil {
			nilCallbacks++
			return
		}
		visited[entry.ID()]++
	})

	for task.Run() {
	}

	assert.Len(t, visited, n)
	for id, count := range visited {
		assert.Equal(t, 1, count, "entry %d visited more than once", id)
	}
	assert.Equal(t, 1, nilCallbacks)
}

func TestSchedulerRunsLowestPriorityFirst(t *testing.T) {
	s := NewScheduler()

	var order []string
	mk := func(name string, n int) Task {
		remaining := n
		return taskFunc(func() bool {
			order = append(order, name)
			remaining--
			return remaining > 0
		})
	}

	s.Register(mk("low", 1), 10)
	s.Register(mk("high", 1), 0)

	s.Run()

	assert.Equal(t, []string{"high", "low"}, order)
	assert.Equal(t, 0, s.Pending())
}

func TestSchedulerRequeuesUnfinishedTasks(t *testing.T) {
	s := NewScheduler()

	calls := 0
	s.Register(taskFunc(func() bool {
		calls++
		return calls < 3
	}), 0)

	s.Run()
	assert.Equal(t, 3, calls)
}

type taskFunc func() bool

func (f taskFunc) Run() bool { return f() }
