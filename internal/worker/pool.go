package worker

import (
	"fmt"
	"sync"
	"sync/atomic"

	"hello-pool/internal/events"
	"hello-pool/internal/logger"
	"hello-pool/internal/metrics"

	"github.com/Workiva/go-datastructures/queue"
)

// PoolConfig はワーカープールの設定
type PoolConfig struct {
	NumWorkers int              // ワーカー数（1以上）
	Metrics    *metrics.Metrics // nil なら記録しない
	Events     *events.Bus      // nil なら発行しない
}

// DefaultPoolConfig はデフォルト設定を返す
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		NumWorkers: 4,
	}
}

// Pool は固定数のワーカーと共有キューを管理する
type Pool struct {
	workers []*Worker
	queue   *queue.Queue
	metrics *metrics.Metrics
	events  *events.Bus

	// Run は読み取りロック、Close は書き込みロックを取る
	// Terminate より後にジョブが積まれることはない
	sendMu    sync.RWMutex
	closing   atomic.Bool
	closeOnce sync.Once
}

// NewPool は numWorkers 個のワーカーを持つプールを作成して起動する
// numWorkers が 1 未満ならパニックする
func NewPool(numWorkers int) *Pool {
	config := DefaultPoolConfig()
	config.NumWorkers = numWorkers
	return NewPoolWithConfig(config)
}

// NewPoolWithConfig は設定を指定してプールを作成して起動する
func NewPoolWithConfig(config PoolConfig) *Pool {
	n := config.NumWorkers
	if n < 1 {
		panic(fmt.Errorf("%w: got %d", ErrInvalidSize, n))
	}

	q := queue.New(int64(n))
	rx := &receiver{q: q}

	p := &Pool{
		workers: make([]*Worker, 0, n),
		queue:   q,
		metrics: config.Metrics,
		events:  config.Events,
	}

	for id := range n {
		w := newWorker(id, rx, p.metrics, p.events)
		p.workers = append(p.workers, w)
		go w.run()
	}

	logger.Info("", "WorkerPool started with %d workers", n)
	return p
}

// Run はジョブをキューに積み、すぐに戻る
// 最初に空いたワーカーが実行する
func (p *Pool) Run(job Job) {
	if job == nil {
		panic(ErrNilJob)
	}

	p.sendMu.RLock()
	defer p.sendMu.RUnlock()

	if p.closing.Load() {
		panic(ErrPoolClosed)
	}
	if err := p.queue.Put(newJobMessage(job)); err != nil {
		panic(fmt.Errorf("%w: %v", ErrPoolClosed, err))
	}
	if p.metrics != nil {
		p.metrics.RecordSubmit()
	}
}

// Close はワーカーごとに Terminate を送り、ID順に全ワーカーの終了を待つ
// それまでに積まれたジョブはすべて実行される
// 二度目以降の呼び出しは最初の Close が終わるまで待って戻る
func (p *Pool) Close() {
	p.closeOnce.Do(p.shutdown)
}

func (p *Pool) shutdown() {
	p.sendMu.Lock()
	p.closing.Store(true)

	logger.Info("", "Sending terminate message to all %d workers", len(p.workers))
	msgs := make([]interface{}, len(p.workers))
	for i := range msgs {
		msgs[i] = terminateMessage()
	}
	err := p.queue.Put(msgs...)
	p.sendMu.Unlock()

	if err != nil {
		// キューは join 後にしか破棄しないのでここには来ない
		logger.Error("", "failed to send terminate messages: %v", err)
	}

	for _, w := range p.workers {
		logger.Debug(w.scope, "waiting for exit")
		<-w.done
	}

	p.queue.Dispose()
	if p.events != nil {
		p.events.Publish(events.NewPoolClosedEvent())
	}
	logger.Info("", "WorkerPool stopped")
}

// Closed は Close が始まっていれば true を返す
func (p *Pool) Closed() bool {
	return p.closing.Load()
}

// Size はワーカー数を返す
func (p *Pool) Size() int {
	return len(p.workers)
}

// Worker は id 番目のワーカーを返す
func (p *Pool) Worker(id int) *Worker {
	return p.workers[id]
}

// QueueLen はまだ取り出されていないメッセージ数を返す
func (p *Pool) QueueLen() int64 {
	if p.queue.Disposed() {
		return 0
	}
	return p.queue.Len()
}

// Stats はプールの状態
type Stats struct {
	Workers   int
	Idle      int
	Executing int
	Exited    int
	Queued    int64
	Completed uint64
	Panicked  uint64
}

// Stats は現在の状態を集計して返す
func (p *Pool) Stats() Stats {
	s := Stats{
		Workers: len(p.workers),
		Queued:  p.QueueLen(),
	}
	for _, w := range p.workers {
		switch w.State() {
		case StateIdle:
			s.Idle++
		case StateExecuting:
			s.Executing++
		case StateExited:
			s.Exited++
		}
		s.Completed += w.completed.Load()
		s.Panicked += w.panicked.Load()
	}
	return s
}
