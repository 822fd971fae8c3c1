package worker

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"hello-pool/internal/events"
	"hello-pool/internal/logger"
	"hello-pool/internal/metrics"

	"github.com/Workiva/go-datastructures/queue"
)

// State はワーカーの状態
type State int32

const (
	StateIdle State = iota
	StateExecuting
	StateExited
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateExecuting:
		return "Executing"
	case StateExited:
		return "Exited"
	default:
		return "Unknown"
	}
}

// receiver は全ワーカーで共有する受信側
// 取り出し中だけロックを持つ
type receiver struct {
	mu sync.Mutex
	q  *queue.Queue
}

// recv は次のメッセージを1件取り出す
// キューが破棄されていれば ok=false を返す
func (r *receiver) recv() (msg Message, ok bool) {
	r.mu.Lock()
	items, err := r.q.Get(1)
	r.mu.Unlock()

	if err != nil || len(items) == 0 {
		return Message{}, false
	}
	return items[0].(Message), true
}

// Worker はメッセージを待ってジョブを実行し続けるゴルーチン
type Worker struct {
	id      int
	scope   string
	rx      *receiver
	metrics *metrics.Metrics
	events  *events.Bus

	state     atomic.Int32
	completed atomic.Uint64
	panicked  atomic.Uint64
	done      chan struct{}
}

func newWorker(id int, rx *receiver, m *metrics.Metrics, bus *events.Bus) *Worker {
	return &Worker{
		id:      id,
		scope:   fmt.Sprintf("worker-%d", id),
		rx:      rx,
		metrics: m,
		events:  bus,
		done:    make(chan struct{}),
	}
}

// ID はワーカーIDを返す
func (w *Worker) ID() int {
	return w.id
}

// State は現在の状態を返す
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Done はワーカーが終了すると閉じるチャネルを返す
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) publish(ev events.Event) {
	if w.events != nil {
		w.events.Publish(ev)
	}
}

// run はワーカーのメインループ
func (w *Worker) run() {
	defer close(w.done)

	w.publish(events.NewWorkerStartedEvent(w.id))

	for {
		msg, ok := w.rx.recv()
		if !ok {
			logger.Debug(w.scope, "disconnected - exiting")
			w.exit("disconnected")
			return
		}

		switch msg.Kind {
		case MsgNewJob:
			w.execute(msg.take())
		case MsgTerminate:
			logger.Debug(w.scope, "told to terminate - exiting")
			w.exit("terminate")
			return
		}
	}
}

func (w *Worker) exit(reason string) {
	w.state.Store(int32(StateExited))
	w.publish(events.NewWorkerExitedEvent(w.id, reason))
}

// execute はジョブを同期的に実行する
// パニックはここで回収し、ワーカーは待機に戻る
func (w *Worker) execute(job Job) {
	w.state.Store(int32(StateExecuting))
	if w.metrics != nil {
		w.metrics.RecordStart()
	}
	w.publish(events.NewJobStartedEvent(w.id))
	logger.Debug(w.scope, "got a job - running")

	start := time.Now()
	defer func() {
		took := time.Since(start)
		if r := recover(); r != nil {
			w.panicked.Add(1)
			if w.metrics != nil {
				w.metrics.RecordPanic(took)
			}
			logger.Error(w.scope, "job panicked after %v: %v", took, r)
			w.publish(events.NewJobPanickedEvent(w.id, took, r))
		} else {
			w.completed.Add(1)
			if w.metrics != nil {
				w.metrics.RecordSuccess(took)
			}
			logger.Debug(w.scope, "finished the job in %v", took)
			w.publish(events.NewJobFinishedEvent(w.id, took))
		}
		w.state.Store(int32(StateIdle))
	}()

	job()
}
