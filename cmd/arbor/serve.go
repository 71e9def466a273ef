package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/presentation/tui"
	httpAdapter "github.com/aretw0/arbor/pkg/adapters/http"
	redisAdapter "github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve SOURCE",
	Short: "Run a simulated population behind the HTTP API",
	Long: `Attaches --entities entities, advances all of them every --interval with scripted
conditions (see simulate) and exposes the introspection API and Prometheus metrics over HTTP.
When ARBOR_REDIS_ADDR is set, instances and locks live in Redis.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		if !cmd.Flags().Changed("addr") {
			addr = env.HTTPAddr
		}
		count, _ := cmd.Flags().GetInt("entities")
		interval, _ := cmd.Flags().GetDuration("interval")
		initial, _ := cmd.Flags().GetString("initial")
		trueNames, _ := cmd.Flags().GetStringSlice("true")
		at, _ := cmd.Flags().GetStringArray("at")

		script, err := cli.ParseScript(trueNames, at)
		if err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := observability.NewMetrics("arbor")
		if err := metrics.Register(reg); err != nil {
			return err
		}

		// The server needs the engine and the engine needs the server's
		// hooks, so the hooks forward through a variable set below.
		var server *httpAdapter.Server
		stream := domain.LifecycleHooks{
			OnTransition: func(ctx context.Context, e *domain.TransitionEvent) { server.Hooks().OnTransition(ctx, e) },
			OnTerminate:  func(ctx context.Context, e *domain.TransitionEvent) { server.Hooks().OnTerminate(ctx, e) },
		}

		opts := []arbor.Option{
			arbor.WithHistoryLimit(env.HistoryLimit),
			arbor.WithLifecycleHooks(observability.Combine(metrics.Hooks(), stream)),
		}
		if env.RedisAddr != "" {
			client := redis.NewClient(&redis.Options{Addr: env.RedisAddr})
			defer client.Close()
			if err := client.Ping(cmd.Context()).Err(); err != nil {
				return fmt.Errorf("redis %s: %w", env.RedisAddr, err)
			}
			opts = append(opts,
				arbor.WithStore(redisAdapter.NewFromClient(client, redisAdapter.WithPrefix(env.RedisPrefix))),
				arbor.WithLocker(redisAdapter.NewLocker(client, env.RedisPrefix)),
			)
			logger.Info("Using redis store", "addr", env.RedisAddr, "prefix", env.RedisPrefix)
		}

		eng, err := cli.CreateEngine(cmd.Context(), args[0], logger, debugEnabled(cmd), opts...)
		if err != nil {
			return err
		}
		if err := script.Register(eng); err != nil {
			return err
		}
		if initial == "" {
			roots := eng.Tree().Roots()
			if len(roots) == 0 {
				return fmt.Errorf("tree has no states")
			}
			initial = string(roots[0])
		}

		server = httpAdapter.NewServer(eng,
			httpAdapter.WithLogger(logger),
			httpAdapter.WithMetrics(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
			httpAdapter.WithVersion(Version),
		)

		pop := cli.NewPopulation(eng, eng.Name, count, interval, logger)
		if err := pop.Attach(cmd.Context(), domain.StateID(initial)); err != nil {
			return err
		}
		start, err := pop.NextTick(cmd.Context())
		if err != nil {
			return err
		}

		if isTerminal(cmd.ErrOrStderr()) {
			tui.NewPalette().PrintBanner(cmd.ErrOrStderr(), fmt.Sprintf("%s %s on %s", eng.Name, Version, addr))
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := &http.Server{
			Addr:              addr,
			Handler:           server.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting arbor server", "addr", srv.Addr, "entities", count, "interval", interval)
			serverErrors <- srv.ListenAndServe()
		}()

		popDone := make(chan error, 1)
		go func() {
			popDone <- pop.Run(ctx, start)
		}()

		select {
		case err := <-serverErrors:
			stop()
			<-popDone
			return fmt.Errorf("server error: %w", err)

		case <-ctx.Done():
			logger.Info("Start shutdown")
			<-popDone

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "err", err)
				_ = srv.Close()
			}
			logger.Info("Arbor server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Listen address; overrides ARBOR_HTTP_ADDR")
	serveCmd.Flags().Int("entities", 10, "Number of simulated entities")
	serveCmd.Flags().Duration("interval", time.Second, "Tick interval")
	serveCmd.Flags().String("initial", "", "Initial state (defaults to the first root)")
	serveCmd.Flags().StringSlice("true", nil, "Conditions that start true")
	serveCmd.Flags().StringArray("at", nil, "Switch a condition at a tick: TICK:NAME=BOOL")
}
