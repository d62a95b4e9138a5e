package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/medassist/medassist/config"
	"github.com/medassist/medassist/internal/agent/core"
	"github.com/medassist/medassist/internal/agent/telemetry"
	"github.com/medassist/medassist/internal/cache"
	"github.com/medassist/medassist/internal/httpx"
	"github.com/medassist/medassist/internal/server"
	"github.com/medassist/medassist/internal/translate"
	"github.com/medassist/medassist/tools"
)

// app bundles the wired pipeline and everything that needs closing.
type app struct {
	cfg       *config.Config
	orch      *core.Orchestrator
	telemetry *telemetry.Telemetry
	session   *httpx.Session
	logger    *log.Logger
}

func buildApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Writer(), "[MEDASSIST] ", log.LstdFlags)

	sess, err := httpx.New(cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("building http session: %w", err)
	}

	registered, err := tools.New(cfg, sess)
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("building tools: %w", err)
	}

	tele := telemetry.NewTelemetry(cfg.Telemetry)
	translator := translate.NewClient(cfg.Translation, cfg.Languages).WithTelemetry(tele)

	var store cache.Cache = cache.Noop{}
	if cfg.Storage.Redis.Enabled {
		redisCache, err := cache.NewRedis(ctx, cfg.Storage.Redis)
		if err != nil {
			// Caching is best effort: a dead Redis degrades, never blocks.
			logger.Printf("redis unavailable, running without cache: %v", err)
		} else {
			store = redisCache
		}
	}

	orch := core.NewOrchestrator(cfg, registered, translator, tele, store)
	return &app{cfg: cfg, orch: orch, telemetry: tele, session: sess, logger: logger}, nil
}

func (a *app) close() {
	a.orch.Close()
	a.session.Close()
	a.telemetry.Shutdown()
}

func main() {
	var cfgPath string

	root := &cobra.Command{Use: "medassist", Short: "Medical assistant query pipeline"}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")

	ask := &cobra.Command{
		Use:   "ask [query]",
		Short: "Answer a single query, or start an interactive session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			if len(args) > 0 {
				return a.askOnce(ctx, strings.Join(args, " "))
			}
			return a.askLoop(ctx)
		},
	}

	var serveAddr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			addr := serveAddr
			if addr == "" {
				addr = a.cfg.Server.Address
			}

			srv := server.New(a.orch, a.telemetry)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(addr) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (defaults to server.address)")

	root.AddCommand(ask, serve)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func (a *app) askOnce(ctx context.Context, query string) error {
	timeout := a.cfg.General.DefaultTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := a.orch.Answer(queryCtx, query)
	if err != nil {
		return err
	}
	fmt.Println(result.Answer)
	return nil
}

// askLoop reads queries from stdin until EOF or an exit word.
func (a *app) askLoop(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	fmt.Println("输入问题，输入 exit/quit/退出 结束")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		switch strings.ToLower(query) {
		case "exit", "quit", "退出":
			return nil
		}
		if err := a.askOnce(ctx, query); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			a.logger.Printf("query failed: %v", err)
		}
	}
	return scanner.Err()
}
