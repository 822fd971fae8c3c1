// math/rand.Seed を有効にして seed.MustInit を効かせる（受付リトライの揺らぎに使う）
//go:debug randseednop=0

// Package main is the entry point for hello-pool.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hello-pool/internal/config"
	"hello-pool/internal/events"
	"hello-pool/internal/logger"
	"hello-pool/internal/metrics"
	"hello-pool/internal/server"
	"hello-pool/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sean-/seed"
	"github.com/sean-/sysexits"
)

var (
	version = "dev"
)

// options はコマンドラインフラグ
type options struct {
	configFile  string
	envFile     string
	addr        string
	workers     int
	docRoot     string
	metricsAddr string
	logLevel    string
	showVersion bool

	// explicit は明示的に指定されたフラグ名
	explicit map[string]bool
}

// set はフラグが明示的に指定されたかを返す
func (o options) set(name string) bool {
	return o.explicit[name]
}

func main() {
	os.Exit(realMain())
}

func realMain() int {
	seed.MustInit()

	var opts options
	flag.StringVar(&opts.configFile, "config", "", "設定ファイルパス (YAML/JSON)")
	flag.StringVar(&opts.envFile, "env-file", ".env", ".env ファイルパス（存在しなければ無視）")
	flag.StringVar(&opts.addr, "addr", "", "待ち受けアドレス (例: 127.0.0.1:7878)")
	flag.IntVar(&opts.workers, "workers", 0, "ワーカー数")
	flag.StringVar(&opts.docRoot, "doc-root", "", "hello.html / 404.html のディレクトリ")
	flag.StringVar(&opts.metricsAddr, "metrics-addr", "", "Prometheus /metrics のアドレス（空で無効）")
	flag.StringVar(&opts.logLevel, "log-level", "", "ログレベル (debug, info, warn, error)")
	flag.BoolVar(&opts.showVersion, "version", false, "バージョンを表示")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `hello-pool - static page server on a fixed-size worker pool

Usage:
  hello-pool [options]

Options:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # デフォルト (127.0.0.1:7878, 4 workers)
  hello-pool

  # 設定ファイルから起動
  hello-pool --config hello.yaml

  # フラグでカスタマイズ
  hello-pool --addr :8080 --workers 8 --metrics-addr :9100
`)
	}

	flag.Parse()

	opts.explicit = make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		opts.explicit[f.Name] = true
	})

	if opts.showVersion {
		fmt.Printf("hello-pool version %s\n", version)
		return sysexits.OK
	}

	cfg, err := buildConfig(opts)
	if err != nil {
		logger.Error("", "設定エラー: %v", err)
		return sysexits.Config
	}

	logger.Default.SetLevel(cfg.LogLevel())

	if err := run(cfg); err != nil {
		logger.Error("", "サーバーエラー: %v", err)
		return exitCode(err)
	}
	return sysexits.OK
}

// errListen はアドレスにバインドできなかったことを表す
var errListen = errors.New("listen failed")

// exitCode はエラーを終了コードに対応付ける
func exitCode(err error) int {
	switch {
	case err == nil:
		return sysexits.OK
	case errors.Is(err, errListen):
		return sysexits.Unavailable
	default:
		return sysexits.Software
	}
}

// buildConfig はデフォルト < ファイル < 環境変数 < フラグ の順に設定を重ねる
func buildConfig(opts options) (*config.FileConfig, error) {
	cfg := config.Default()

	if opts.configFile != "" {
		fileConfig, err := config.LoadFile(opts.configFile)
		if err != nil {
			return nil, fmt.Errorf("設定ファイル読み込みエラー: %w", err)
		}
		cfg = fileConfig
	}

	if err := config.LoadEnv(opts.envFile); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	// 明示的に渡されたフラグだけを反映する（-workers 0 も Validate で弾く）
	if opts.set("addr") {
		cfg.Server.Addr = opts.addr
	}
	if opts.set("workers") {
		cfg.Pool.Workers = opts.workers
	}
	if opts.set("doc-root") {
		cfg.Server.DocRoot = opts.docRoot
	}
	if opts.set("metrics-addr") {
		cfg.Server.MetricsAddr = opts.metricsAddr
	}
	if opts.set("log-level") {
		cfg.Log.Level = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定検証エラー: %w", err)
	}
	return cfg, nil
}

// run はプールとサーバーを起動し、シグナルを受けたらプールを排出して戻る
func run(cfg *config.FileConfig) error {
	fmt.Println("hello-pool")
	fmt.Println("==========")
	fmt.Printf("Addr: %s, Workers: %d, DocRoot: %s\n", cfg.Server.Addr, cfg.Pool.Workers, cfg.Server.DocRoot)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			fmt.Println("\n中断シグナルを受信、サーバーを終了中...")
			cancel()
		case <-ctx.Done():
		}
	}()

	m := metrics.New()
	bus := events.NewBusWithConfig(events.BusConfig{Metrics: m})
	defer bus.Close()
	go logEvents(bus.Subscribe())

	pool := worker.NewPoolWithConfig(worker.PoolConfig{
		NumWorkers: cfg.Pool.Workers,
		Metrics:    m,
		Events:     bus,
	})

	if cfg.Server.MetricsAddr != "" {
		stopMetrics := serveMetrics(ctx, cfg.Server.MetricsAddr, m)
		defer stopMetrics()
	}

	srv := server.New(server.Config{
		Addr:        cfg.Server.Addr,
		DocRoot:     cfg.Server.DocRoot,
		ReadBuffer:  cfg.Server.ReadBuffer,
		SleepDelay:  cfg.SleepDuration(),
		MaxConns:    cfg.Server.MaxConns,
		ReadTimeout: server.DefaultConfig().ReadTimeout,
	}, pool)

	if err := srv.Listen(); err != nil {
		pool.Close()
		return fmt.Errorf("%w: %w", errListen, err)
	}

	serveErr := srv.Serve(ctx)

	// 受付停止後、キュー済みの接続をすべて処理してから終了する
	pool.Close()

	snap := m.Snapshot()
	logger.Info("", "handled %d connections (%d panicked), avg %v, p99 %v, %d events dropped",
		snap.Completed+snap.Panicked, snap.Panicked, snap.AverageLatency, snap.P99Latency, snap.DroppedEvents)

	return serveErr
}

// logEvents はワーカーのライフサイクルをデバッグログに流す
func logEvents(ch <-chan events.Event) {
	for ev := range ch {
		if ev.WorkerID < 0 {
			logger.Debug("", "event %s", ev.Type)
			continue
		}
		logger.Debug(fmt.Sprintf("worker-%d", ev.WorkerID), "event %s %+v", ev.Type, ev.Data)
	}
}

// serveMetrics は Prometheus のエンドポイントを起動し、停止関数を返す
func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("", "metrics listening on http://%s/metrics", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("", "metrics server failed: %v", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}
}
