package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ashita-ai/wyrmgate/internal/auth"
	"github.com/ashita-ai/wyrmgate/internal/config"
	"github.com/ashita-ai/wyrmgate/internal/llm"
	"github.com/ashita-ai/wyrmgate/internal/mcp"
	"github.com/ashita-ai/wyrmgate/internal/orchestrator"
	"github.com/ashita-ai/wyrmgate/internal/ratelimit"
	"github.com/ashita-ai/wyrmgate/internal/server"
	"github.com/ashita-ai/wyrmgate/internal/storage"
	"github.com/ashita-ai/wyrmgate/internal/storage/memory"
	"github.com/ashita-ai/wyrmgate/internal/storage/sqlite"
	"github.com/ashita-ai/wyrmgate/internal/telemetry"
	"github.com/ashita-ai/wyrmgate/internal/tools"
	"github.com/ashita-ai/wyrmgate/internal/validate"
	"github.com/ashita-ai/wyrmgate/migrations"
)

// version is set at build time via -ldflags.
var version = "dev"

// Default model names per provider.
const (
	defaultOpenAIModel = "gpt-4o-mini"
	defaultGeminiModel = "gemini-1.5-flash"
)

func main() {
	os.Exit(run0(os.Args[1:]))
}

func run0(args []string) int {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	if len(args) > 0 && args[0] == "token" {
		if err := issueToken(args[1:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	logger := newLogger(os.Getenv("WYRMGATE_LOG_LEVEL"))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}

// backend is everything the server needs from a store.
type backend interface {
	orchestrator.StateStore
	orchestrator.ConversationStore
	server.Pinger
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("wyrmgate starting", "version", version, "port", cfg.Port, "store", cfg.Store, "llm", cfg.LLMProvider)

	otelShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:       cfg.OTELEndpoint,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version,
		Insecure:       cfg.OTELInsecure,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	store, notifier, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	model, closeModel, err := newModel(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeModel()

	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTExpiration)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if cfg.JWTPrivateKeyPath == "" {
		logger.Warn("auth: using ephemeral signing keys, tokens will not survive a restart")
	}

	// With a notify connection events reach subscribers on every instance;
	// otherwise delivery stays in this process.
	broker := server.NewBroker(notifier, logger)
	if broker.Distributed() {
		logger.Info("SSE broker: postgres")
	} else {
		logger.Info("SSE broker: local")
	}
	go broker.Start(ctx)

	catalog := tools.NewCatalog(tools.DefaultRoller())
	svc := orchestrator.New(orchestrator.Deps{
		Model:         model,
		Catalog:       catalog,
		States:        store,
		Conversations: store,
		Publisher:     broker,
		Logger:        logger,
	}, orchestrator.Config{
		MaxChatRounds:      cfg.MaxChatRounds,
		MaxGameRounds:      cfg.MaxGameRounds,
		MaxToolResultChars: cfg.MaxToolResultChars,
		SaveTimeout:        cfg.SaveTimeout,
	})

	validator := validate.New(validate.Config{
		MaxMessages:        cfg.MaxMessages,
		MaxMessageLength:   cfg.MaxMessageLength,
		MaxTotalLength:     cfg.MaxTotalLength,
		Blocklist:          append(append([]string(nil), validate.DefaultBlocklist...), cfg.Blocklist...),
		AllowedClientTools: cfg.AllowedClientTools,
	})

	var limiter ratelimit.Limiter = ratelimit.NoopLimiter{}
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	defer func() { _ = limiter.Close() }()

	mcpSrv := mcp.New(catalog, store, logger, version)

	srv := server.New(server.ServerConfig{
		Service:             svc,
		Validator:           validator,
		Store:               store,
		JWTMgr:              jwtMgr,
		Logger:              logger,
		Limiter:             limiter,
		Broker:              broker,
		MCPServer:           mcpSrv.MCPServer(),
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		RequestTimeout:      cfg.RequestTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		StreamChunkRunes:    cfg.StreamChunkRunes,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	// In-flight turns finish and save before the store closes.
	slog.Info("wyrmgate shutting down")
	httpCtx, httpCancel := context.WithTimeout(context.Background(), cfg.RequestTimeout+cfg.SaveTimeout)
	if err := srv.Shutdown(httpCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	httpCancel()

	slog.Info("wyrmgate stopped")
	return nil
}

// openStore returns the configured backend, the LISTEN/NOTIFY channel when
// the backend has one, and a close function.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (backend, server.Notifier, func(), error) {
	switch cfg.Store {
	case config.StorePostgres:
		db, err := storage.New(ctx, cfg.DatabaseURL, cfg.NotifyURL, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("storage: %w", err)
		}
		closeFn := func() { db.Close(context.Background()) }
		if err := db.RunMigrations(ctx, migrations.FS); err != nil {
			closeFn()
			return nil, nil, nil, fmt.Errorf("storage: migrate: %w", err)
		}
		if db.HasNotify() {
			return db, db, closeFn, nil
		}
		return db, nil, closeFn, nil

	case config.StoreSQLite:
		st, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("storage: %w", err)
		}
		return st, nil, func() { _ = st.Close() }, nil

	default:
		logger.Warn("storage: in-memory store, state is lost on restart")
		return memory.New(), nil, func() {}, nil
	}
}

func newModel(ctx context.Context, cfg config.Config, logger *slog.Logger) (llm.Model, func(), error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		name := orDefault(cfg.LLMModel, defaultGeminiModel)
		g, err := llm.NewGemini(ctx, llm.GeminiConfig{APIKey: cfg.GeminiAPIKey, Model: name}, logger)
		if err != nil {
			return nil, nil, err
		}
		return g, func() { _ = g.Close() }, nil
	default:
		return llm.NewOpenAI(llm.OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      orDefault(cfg.LLMModel, defaultOpenAIModel),
			Stream:     cfg.LLMStream,
			MaxRetries: 2,
		}, logger), func() {}, nil
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// issueToken implements `wyrmgate token -user <id> [-name <display>]`. It
// signs with the configured key pair, so the server must share it.
func issueToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	userID := fs.String("user", "", "user id to put in the token subject")
	name := fs.String("name", "", "optional display name")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	priv, pub := os.Getenv("WYRMGATE_JWT_PRIVATE_KEY"), os.Getenv("WYRMGATE_JWT_PUBLIC_KEY")
	if priv == "" || pub == "" {
		return errors.New("WYRMGATE_JWT_PRIVATE_KEY and WYRMGATE_JWT_PUBLIC_KEY must point at the server's key pair (see scripts/genkey)")
	}
	mgr, err := auth.NewJWTManager(priv, pub, *ttl)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	tok, exp, err := mgr.IssueToken(strings.TrimSpace(*userID), *name)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s\n# expires %s\n", tok, exp.UTC().Format(time.RFC3339))
	return err
}
