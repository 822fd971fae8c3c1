package worker

import (
	"testing"
	"time"

	"github.com/Workiva/go-datastructures/queue"
)

func TestMessageTake(t *testing.T) {
	ran := 0
	msg := newJobMessage(func() { ran++ })

	job := msg.take()
	if job == nil {
		t.Fatal("expected job")
	}
	if msg.take() != nil {
		t.Error("expected second take to return nil")
	}

	job()
	if ran != 1 {
		t.Errorf("expected job to run once, ran %d", ran)
	}

	if got := terminateMessage().Kind; got != MsgTerminate {
		t.Errorf("expected Terminate, got %v", got)
	}
	if MsgNewJob.String() != "NewJob" || MessageKind(9).String() != "Unknown" {
		t.Error("unexpected MessageKind names")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateIdle, "Idle"},
		{StateExecuting, "Executing"},
		{StateExited, "Exited"},
		{State(42), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.expected)
		}
	}
}

func TestReceiverReleasesLockAfterDequeue(t *testing.T) {
	rx := &receiver{q: queue.New(1)}
	if err := rx.q.Put(terminateMessage()); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	msg, ok := rx.recv()
	if !ok || msg.Kind != MsgTerminate {
		t.Fatalf("unexpected message: %+v ok=%v", msg, ok)
	}
	if !rx.mu.TryLock() {
		t.Fatal("receiver lock still held after dequeue")
	}
	rx.mu.Unlock()
}

func TestWorkerExitsOnDisconnect(t *testing.T) {
	rx := &receiver{q: queue.New(1)}
	w := newWorker(0, rx, nil, nil)

	// 送信側が消えたキューは Terminate と同じ扱い
	rx.q.Dispose()
	go w.run()

	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("worker did not exit after queue was disposed")
	}
	if w.State() != StateExited {
		t.Errorf("expected Exited, got %v", w.State())
	}
}

func TestWorkerStateTransitions(t *testing.T) {
	rx := &receiver{q: queue.New(2)}
	w := newWorker(1, rx, nil, nil)

	if w.State() != StateIdle {
		t.Fatalf("expected Idle before start, got %v", w.State())
	}

	started := make(chan struct{})
	release := make(chan struct{})
	go w.run()

	if err := rx.q.Put(newJobMessage(func() {
		close(started)
		<-release
	})); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	<-started
	if w.State() != StateExecuting {
		t.Errorf("expected Executing, got %v", w.State())
	}
	close(release)

	if err := rx.q.Put(terminateMessage()); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("worker did not exit on terminate")
	}
	if w.State() != StateExited {
		t.Errorf("expected Exited, got %v", w.State())
	}
	if w.completed.Load() != 1 {
		t.Errorf("expected 1 completed job, got %d", w.completed.Load())
	}
}
