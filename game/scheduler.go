package game

import (
	"container/heap"
	"time"
)

// Scheduler は仮想時間で動くタイマー。Advanceで時間を進めた分だけ期限の来たタスクを実行する。
// シングルスレッドで使う前提で、ロックは持たない。
type Scheduler struct {
	now   time.Duration
	seq   uint64
	queue taskQueue
}

// Task はスケジュールされたコールバック。所有者がCancelすると以降は二度と実行されない
type Task struct {
	at        time.Duration
	period    time.Duration // 0なら一回限り
	seq       uint64
	fn        func()
	cancelled bool
	index     int
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Now は開始からの経過仮想時間
func (s *Scheduler) Now() time.Duration {
	return s.now
}

// After はdelay後に一度だけfnを実行する
func (s *Scheduler) After(delay time.Duration, fn func()) *Task {
	return s.schedule(delay, 0, fn)
}

// Every はperiodごとにfnを実行する。最初の実行はperiod後
func (s *Scheduler) Every(period time.Duration, fn func()) *Task {
	if period <= 0 {
		panic("game: Every requires a positive period")
	}
	return s.schedule(period, period, fn)
}

func (s *Scheduler) schedule(delay, period time.Duration, fn func()) *Task {
	if delay < 0 {
		delay = 0
	}
	s.seq++
	t := &Task{at: s.now + delay, period: period, seq: s.seq, fn: fn}
	heap.Push(&s.queue, t)
	return t
}

// Cancel はタスクを無効化する。nilや実行済みのタスクに対しても安全
func (t *Task) Cancel() {
	if t == nil {
		return
	}
	t.cancelled = true
}

// Active はタスクがまだ実行予定かどうか
func (t *Task) Active() bool {
	return t != nil && !t.cancelled
}

// Advance は仮想時間をdだけ進め、その間に期限を迎えたタスクを期限順（同時刻なら登録順）に実行する
func (s *Scheduler) Advance(d time.Duration) {
	target := s.now + d
	for s.queue.Len() > 0 {
		next := s.queue[0]
		if next.at > target {
			break
		}
		heap.Pop(&s.queue)
		if next.cancelled {
			continue
		}
		s.now = next.at
		if next.period > 0 {
			next.at += next.period
			s.seq++
			next.seq = s.seq
			heap.Push(&s.queue, next)
		} else {
			next.cancelled = true
		}
		next.fn()
	}
	s.now = target
}

// CancelAll は全てのタスクを無効化する。マッチ終了時に使用
func (s *Scheduler) CancelAll() {
	for _, t := range s.queue {
		t.cancelled = true
	}
	s.queue = s.queue[:0]
}

// Pending はキャンセルされていない待機中タスクの数
func (s *Scheduler) Pending() int {
	n := 0
	for _, t := range s.queue {
		if !t.cancelled {
			n++
		}
	}
	return n
}

type taskQueue []*Task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].at == q[j].at {
		return q[i].seq < q[j].seq
	}
	return q[i].at < q[j].at
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x any) {
	t := x.(*Task)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}
