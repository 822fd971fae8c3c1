package events

import (
	"sync"
	"sync/atomic"

	"hello-pool/internal/metrics"
)

const defaultBufferSize = 256

// BusConfig はイベントバスの設定
type BusConfig struct {
	BufferSize int              // 購読チャネルのバッファ（0でデフォルト）
	Metrics    *metrics.Metrics // 取りこぼしを記録する（nil なら記録しない）
}

// subscription は1購読者の配信先と種類フィルタ
type subscription struct {
	ch    chan Event
	types map[EventType]struct{} // 空なら全種類
}

func (s *subscription) wants(t EventType) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// Bus はワーカープールのライフサイクルイベントを配る
// Publish はワーカーのループから呼ばれるので決してブロックしない
type Bus struct {
	mu          sync.RWMutex
	subscribers map[<-chan Event]*subscription
	bufferSize  int
	closed      bool

	metrics *metrics.Metrics
	dropped atomic.Uint64
}

// NewBus はデフォルト設定のバスを作成する
func NewBus() *Bus {
	return NewBusWithConfig(BusConfig{})
}

// NewBusWithConfig は設定を指定してバスを作成する
func NewBusWithConfig(config BusConfig) *Bus {
	size := config.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	return &Bus{
		subscribers: make(map[<-chan Event]*subscription),
		bufferSize:  size,
		metrics:     config.Metrics,
	}
}

// Subscribe は types のイベントだけを受け取るチャネルを返す（省略時は全種類）
// 閉じたバスへの購読は閉じたチャネルを返す
func (b *Bus) Subscribe(types ...EventType) <-chan Event {
	sub := &subscription{ch: make(chan Event, b.bufferSize)}
	if len(types) > 0 {
		sub.types = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(sub.ch)
		return sub.ch
	}
	b.subscribers[sub.ch] = sub
	return sub.ch
}

// Unsubscribe は購読を解除してチャネルを閉じる
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subscribers[ch]
	if !ok {
		return
	}
	delete(b.subscribers, ch)
	close(sub.ch)
}

// Publish は該当する購読者へイベントを配る
// バッファが埋まった購読者には配らず、取りこぼしとして数える
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if !sub.wants(event.Type) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			b.dropped.Add(1)
			if b.metrics != nil {
				b.metrics.RecordDroppedEvent()
			}
		}
	}
}

// Dropped は取りこぼしたイベント数を返す
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// SubscriberCount は購読者数を返す
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close は全購読チャネルを閉じる。以後の Publish は何もしない
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for ch, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, ch)
	}
}
