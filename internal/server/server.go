// Package server is the TCP listener and static page responder that feeds
// connections to the worker pool, one job per accepted connection.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"hello-pool/internal/logger"
	"hello-pool/internal/worker"

	"golang.org/x/net/netutil"
)

const scope = "server"

// リクエスト行の照合は先頭一致のみ
var (
	rootGet  = []byte("GET / HTTP/1.1\r\n")
	sleepGet = []byte("GET /sleep HTTP/1.1\r\n")
)

const (
	statusOK            = "HTTP/1.1 200 OK"
	statusNotFound      = "HTTP/1.1 404 NOT FOUND"
	statusInternalError = "HTTP/1.1 500 INTERNAL SERVER ERROR"

	helloPage    = "hello.html"
	notFoundPage = "404.html"
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Runner はジョブを受け付ける実行系（*worker.Pool が満たす）
type Runner interface {
	Run(job worker.Job)
}

// Config はサーバー設定
type Config struct {
	Addr        string        // 待ち受けアドレス
	DocRoot     string        // hello.html / 404.html の置き場所
	ReadBuffer  int           // 1回の読み込みサイズ
	SleepDelay  time.Duration // /sleep の待ち時間
	MaxConns    int           // 同時接続数の上限（0で無制限）
	ReadTimeout time.Duration // リクエスト読み込みの期限（0で無期限）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Addr:        "127.0.0.1:7878",
		DocRoot:     "www",
		ReadBuffer:  1024,
		SleepDelay:  5 * time.Second,
		ReadTimeout: 30 * time.Second,
	}
}

// Server は接続を受け付けてプールに渡す
type Server struct {
	config Config
	pool   Runner

	mu       sync.Mutex
	listener net.Listener
}

// New は新しいサーバーを作成する
func New(config Config, pool Runner) *Server {
	if config.ReadBuffer <= 0 {
		config.ReadBuffer = DefaultConfig().ReadBuffer
	}
	return &Server{
		config: config,
		pool:   pool,
	}
}

// Listen はアドレスにバインドする
// Serve より前に呼べば実際のアドレスを Addr で確認できる
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	if s.config.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.config.MaxConns)
	}
	s.listener = ln
	return nil
}

// Addr は待ち受け中のアドレスを返す（未バインドなら nil）
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve は ctx がキャンセルされるまで接続を受け付ける
// プールの Close は呼び出し側の責任
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		_ = ln.Close()
	}()

	logger.Info(scope, "listening on %s", ln.Addr())

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.Info(scope, "stopped accepting connections")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("listener closed: %w", err)
			}

			backoff = nextBackoff(backoff)
			logger.Warn(scope, "accept error: %v; retrying in %v", err, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		backoff = 0

		s.pool.Run(func() {
			s.handleConnection(conn)
		})
	}
}

// nextBackoff は倍々で伸ばし、上限付きで揺らぎを足す
func nextBackoff(prev time.Duration) time.Duration {
	next := prev * 2
	if next < minAcceptBackoff {
		next = minAcceptBackoff
	}
	if next > maxAcceptBackoff {
		next = maxAcceptBackoff
	}
	return next/2 + time.Duration(rand.Int63n(int64(next/2)+1))
}

// handleConnection は1接続分の読み込み・応答を行う
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()

	if s.config.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	}

	buf := make([]byte, s.config.ReadBuffer)
	n, err := conn.Read(buf)
	if err != nil && n == 0 {
		if errors.Is(err, io.EOF) {
			logger.Debug(scope, "%s closed before sending a request", remote)
		} else {
			logger.Warn(scope, "read from %s failed: %v", remote, err)
		}
		return
	}

	status, page := s.route(buf[:n])

	body, err := os.ReadFile(filepath.Join(s.config.DocRoot, page))
	if err != nil {
		logger.Error(scope, "failed to read %s: %v", page, err)
		status, body = statusInternalError, nil
	}

	if _, err := conn.Write(formatResponse(status, body)); err != nil {
		logger.Warn(scope, "write to %s failed: %v", remote, err)
		return
	}
	logger.Debug(scope, "%s -> %s", remote, status)
}

// route はリクエスト先頭からステータス行とページを決める
func (s *Server) route(request []byte) (status, page string) {
	switch {
	case bytes.HasPrefix(request, rootGet):
		return statusOK, helloPage
	case bytes.HasPrefix(request, sleepGet):
		time.Sleep(s.config.SleepDelay)
		return statusOK, helloPage
	default:
		return statusNotFound, notFoundPage
	}
}

func formatResponse(status string, body []byte) []byte {
	var b bytes.Buffer
	b.Grow(len(status) + len(body) + 32)
	b.WriteString(status)
	b.WriteString("\r\nContent-Length: ")
	b.WriteString(strconv.Itoa(len(body)))
	b.WriteString("\r\n\r\n")
	b.Write(body)
	return b.Bytes()
}
