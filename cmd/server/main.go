package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/fernwick/chatter/internal/auth"
	"github.com/fernwick/chatter/internal/config"
	"github.com/fernwick/chatter/internal/profile"
	"github.com/fernwick/chatter/internal/telemetry"
	"github.com/fernwick/chatter/pkg/dispatch"
	"github.com/fernwick/chatter/pkg/history"
	"github.com/fernwick/chatter/pkg/hub"
)

// set via -ldflags "-X main.version=... -X main.gitSHA=..."
var (
	version = "dev"
	gitSHA  = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := buildLogger(cfg.DevLog)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	telemetry.SetBuildInfo(version, gitSHA)

	verifier, closeVerifier, err := buildVerifier(cfg, logger)
	if err != nil {
		logger.Fatal("auth backend init failed", zap.Error(err))
	}
	defer closeVerifier()

	queue := make(chan hub.Envelope, cfg.QueueSize)
	telemetry.ObserveQueueDepth(func() float64 { return float64(len(queue)) })

	h := hub.New(queue, cfg.SendBuffer, logger.Named("hub"))
	store := history.NewStore(cfg.HistorySize, cfg.ConversationCache)
	profiles := profile.NewCache(
		profile.NewHTTPFetcher(cfg.ProfileEndpoint, cfg.AuthToken),
		cfg.ProfileCache, logger.Named("profile"))

	d := dispatch.New(h, store, verifier, profiles, queue, logger.Named("dispatch"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go d.Run(ctx)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// The browser client connects cross-origin through the site's proxy.
		CheckOrigin: func(*http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", telemetry.Handler())
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		go h.Serve(conn)
	})

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("chatter listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("auth_backend", cfg.AuthBackend),
		zap.String("version", version))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func buildLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// buildVerifier selects the identity-secret backend. Exactly one backend is
// active per process.
func buildVerifier(cfg config.Config, logger *zap.Logger) (auth.Verifier, func(), error) {
	switch cfg.AuthBackend {
	case config.BackendEtcd:
		cli, err := clientv3.New(clientv3.Config{
			Endpoints:   cfg.EtcdEndpoints,
			DialTimeout: 5 * time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		return auth.NewEtcdVerifier(cli, cfg.EtcdSecretPrefix), func() { _ = cli.Close() }, nil
	default:
		return auth.NewHTTPVerifier(cfg.AuthEndpoint, cfg.AuthToken, logger.Named("auth")), func() {}, nil
	}
}
