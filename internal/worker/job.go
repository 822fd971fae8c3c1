package worker

import "errors"

var (
	// ErrInvalidSize はワーカー数が 1 未満のときのパニック値
	ErrInvalidSize = errors.New("worker: pool size must be at least 1")
	// ErrPoolClosed は Close 開始後に Run が呼ばれたときのパニック値
	ErrPoolClosed = errors.New("worker: run on closed pool")
	// ErrNilJob は nil ジョブが渡されたときのパニック値
	ErrNilJob = errors.New("worker: nil job")
)

// Job はワーカーが実行するジョブを表す
// 引数も戻り値も持たず、キャプチャした状態ごと別ゴルーチンに渡される
type Job func()

// MessageKind はキューを流れるメッセージの種類
type MessageKind int

const (
	MsgNewJob MessageKind = iota
	MsgTerminate
)

func (k MessageKind) String() string {
	switch k {
	case MsgNewJob:
		return "NewJob"
	case MsgTerminate:
		return "Terminate"
	default:
		return "Unknown"
	}
}

// Message はワーカーに届く1件の指示
type Message struct {
	Kind MessageKind
	Job  Job
}

func newJobMessage(job Job) Message {
	return Message{Kind: MsgNewJob, Job: job}
}

func terminateMessage() Message {
	return Message{Kind: MsgTerminate}
}

// take はジョブを取り出し、メッセージ側の参照を消す
// 同じメッセージから二度実行されることはない
func (m *Message) take() Job {
	job := m.Job
	m.Job = nil
	return job
}
