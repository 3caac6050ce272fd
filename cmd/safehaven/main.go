// Command safehaven serves the voice companion API: audio or text turns
// in, spoken replies out, conversation history in Postgres.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/abdulmalikadebayo/safehaven/internal/api"
	"github.com/abdulmalikadebayo/safehaven/internal/config"
	"github.com/abdulmalikadebayo/safehaven/internal/metrics"
	"github.com/abdulmalikadebayo/safehaven/internal/reasoning"
	"github.com/abdulmalikadebayo/safehaven/internal/speech/stt"
	"github.com/abdulmalikadebayo/safehaven/internal/speech/tts"
	"github.com/abdulmalikadebayo/safehaven/internal/store"
	"github.com/abdulmalikadebayo/safehaven/internal/turn"
)

type serviceDeps struct {
	loadConfig   func() (config.Config, error)
	openStore    func(ctx context.Context, cfg config.Config) (store.DataStore, func(), error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultServiceDeps() serviceDeps {
	return serviceDeps{
		loadConfig: config.LoadFromEnv,
		openStore:  openPostgres,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func openPostgres(ctx context.Context, cfg config.Config) (store.DataStore, func(), error) {
	if err := store.Migrate(cfg.DatabaseURL); err != nil {
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	st, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return st, st.Close, nil
}

// upstreamClient is the HTTP client shared by all provider adapters.
// Per-request deadlines come from contexts, so the client itself has no
// overall timeout.
func upstreamClient(cfg config.Config) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: cfg.UpstreamConnectTimeout,
			}).DialContext,
			ResponseHeaderTimeout: cfg.UpstreamResponseHeaderTimeout,
			MaxIdleConnsPerHost:   8,
			ForceAttemptHTTP2:     true,
		},
	}
}

func buildTranscriber(cfg config.Config, client *http.Client) (stt.Transcriber, func() error) {
	switch cfg.STTProvider {
	case config.STTGoogle:
		p := stt.NewGoogle(cfg.GoogleSTTLanguage)
		return p, p.Close
	default:
		p := stt.NewWhisper(cfg.OpenAIAPIKey,
			stt.WithWhisperBaseURL(cfg.OpenAIBaseURL),
			stt.WithWhisperModel(cfg.WhisperModel),
			stt.WithWhisperHTTPClient(client),
		)
		return p, nil
	}
}

func buildReasoner(cfg config.Config, client *http.Client) reasoning.Provider {
	switch cfg.ReasoningProvider {
	case config.ReasoningGemini:
		return reasoning.NewGemini(cfg.GeminiAPIKey, cfg.ReasoningModel)
	default:
		return reasoning.NewOpenAI(cfg.OpenAIAPIKey,
			reasoning.WithOpenAIBaseURL(cfg.OpenAIBaseURL),
			reasoning.WithOpenAIModel(cfg.ReasoningModel),
			reasoning.WithOpenAIHTTPClient(client),
		)
	}
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
	}
}

func runService(ctx context.Context, logger *slog.Logger, deps serviceDeps) error {
	if deps.loadConfig == nil || deps.openStore == nil {
		return errors.New("missing store dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, closeStore, err := deps.openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	m := metrics.New("safehaven")
	client := upstreamClient(cfg)

	transcriber, closeTranscriber := buildTranscriber(cfg, client)
	if closeTranscriber != nil {
		defer func() {
			if err := closeTranscriber(); err != nil {
				logger.Warn("close transcriber", "error", err)
			}
		}()
	}

	engine := reasoning.NewEngine(buildReasoner(cfg, client),
		reasoning.WithTimeout(cfg.ReasoningTimeout),
		reasoning.WithMaxRetries(cfg.ReasoningMaxRetries),
		reasoning.WithLogger(logger),
		reasoning.WithMetrics(m),
	)

	synthesizer := tts.NewYarnGPT(cfg.YarnGPTAPIKey,
		tts.WithAPIURL(cfg.YarnGPTAPIURL),
		tts.WithHTTPClient(client),
	)

	orc := turn.New(transcriber, engine, synthesizer, st,
		turn.WithLogger(logger),
		turn.WithDefaultVoice(cfg.DefaultVoice),
		turn.WithMetrics(m),
	)

	srv := api.New(cfg, logger, st, orc, m)
	httpSrv := buildHTTPServer(cfg, srv.Router())

	logger.Info("starting safehaven",
		"addr", cfg.Addr,
		"stt_provider", cfg.STTProvider,
		"reasoning_provider", cfg.ReasoningProvider,
		"reasoning_model", cfg.ReasoningModel,
	)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("safehaven stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps serviceDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	// A missing .env is fine; explicit environment wins either way.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stderr, "safehaven: load .env: %v\n", err)
		return 1
	}

	if err := runService(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "safehaven: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultServiceDeps()))
}
