package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/Corona-HomeLab/FinSight/internal/ai"
	"github.com/Corona-HomeLab/FinSight/internal/assistant"
	"github.com/Corona-HomeLab/FinSight/internal/chunker"
	"github.com/Corona-HomeLab/FinSight/internal/config"
	"github.com/Corona-HomeLab/FinSight/internal/db"
	"github.com/Corona-HomeLab/FinSight/internal/embedcache"
	"github.com/Corona-HomeLab/FinSight/internal/handler"
	"github.com/Corona-HomeLab/FinSight/internal/job"
	"github.com/Corona-HomeLab/FinSight/internal/loader"
	"github.com/Corona-HomeLab/FinSight/internal/middleware"
	"github.com/Corona-HomeLab/FinSight/internal/pkg/jwt"
	"github.com/Corona-HomeLab/FinSight/internal/registry"
	"github.com/Corona-HomeLab/FinSight/internal/router"
	"github.com/Corona-HomeLab/FinSight/internal/schedule"
	"github.com/Corona-HomeLab/FinSight/internal/vecstore"
)

func main() {
	var configPath string
	var tokenName string
	var tokenTTLHours int

	rootCmd := &cobra.Command{
		Use:   "finsight",
		Short: "financial data chat assistant",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cfg.APISecret == "" {
				return fmt.Errorf("api_secret is required to run the server")
			}
			a, cleanup, err := buildAssistant(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			return runServer(cfg, a)
		},
	}

	cliCmd := &cobra.Command{
		Use:   "cli",
		Short: "interactive chat on stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, cleanup, err := buildAssistant(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			return runCLI(cmd.Context(), a)
		},
	}

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "mint an api token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cfg.APISecret == "" {
				return fmt.Errorf("api_secret is required to mint tokens")
			}
			ttl := cfg.TokenTTL
			if tokenTTLHours > 0 {
				ttl = tokenTTLHours
			}
			token, err := jwt.GenerateToken(tokenName, []byte(cfg.APISecret), time.Duration(ttl)*time.Hour)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&tokenName, "name", "cli", "caller name embedded in the token")
	tokenCmd.Flags().IntVar(&tokenTTLHours, "ttl", 0, "token lifetime in hours, defaults to token_ttl_hours from config")

	rootCmd.AddCommand(runCmd, cliCmd, tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
	return cfg, nil
}

func buildEmbedder(cfg *config.Config) (ai.IEmbedder, error) {
	items := make([]ai.EmbedderEntry, 0, len(cfg.AI.Embedders))
	for _, pc := range cfg.AI.Embedders {
		provider, err := ai.NewEmbedProvider(pc.Provider, pc.Data)
		if err != nil {
			return nil, fmt.Errorf("init embed provider %s: %w", pc.Provider, err)
		}
		items = append(items, ai.EmbedderEntry{
			Name:     pc.Provider + "/" + pc.Model,
			Embedder: ai.NewEmbedder(provider, pc.Model),
		})
	}
	embedder := ai.NewGroupEmbedder(items)
	embedder = embedcache.WrapLruCacheToEmbedder(
		embedder,
		cfg.AI.EmbedCacheSize,
		time.Duration(cfg.AI.EmbedCacheTTLMins)*time.Minute,
	)
	return embedder, nil
}

func buildGenerator(cfg *config.Config) (ai.IGenerator, error) {
	items := make([]ai.GeneratorEntry, 0, len(cfg.AI.Generators))
	for _, pc := range cfg.AI.Generators {
		provider, err := ai.NewProvider(pc.Provider, pc.Data)
		if err != nil {
			return nil, fmt.Errorf("init ai provider %s: %w", pc.Provider, err)
		}
		items = append(items, ai.GeneratorEntry{
			Name:      pc.Provider + "/" + pc.Model,
			Generator: ai.NewGenerator(provider, pc.Model),
		})
	}
	return ai.NewGroupGenerator(items), nil
}

func buildStore(cfg *config.Config, embedder ai.IEmbedder) (vecstore.Store, func(), error) {
	switch cfg.VectorStore.Type {
	case "postgres":
		conn, err := db.Open(cfg.VectorStore.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("open db: %w", err)
		}
		if err := db.ApplyMigrations(conn); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("migrations: %w", err)
		}
		return vecstore.NewPGStore(conn, embedder), func() { conn.Close() }, nil
	default:
		return vecstore.NewMemoryStore(embedder), func() {}, nil
	}
}

func buildAssistant(ctx context.Context, cfg *config.Config) (*assistant.Assistant, func(), error) {
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, nil, err
	}
	generator, err := buildGenerator(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, cleanup, err := buildStore(cfg, embedder)
	if err != nil {
		return nil, nil, err
	}

	reg := registry.NewRegistry(ctx, cfg.SourcesPath)
	a := assistant.New(
		reg,
		loader.NewLoader(&http.Client{Timeout: time.Duration(cfg.Chat.FetchTimeout) * time.Second}),
		chunker.NewChunker(cfg.Chat.ChunkSize),
		router.New(),
		store,
		generator,
		assistant.Options{
			TopK:           cfg.Chat.TopK,
			HistoryLimit:   cfg.Chat.HistoryLimit,
			FetchTimeout:   time.Duration(cfg.Chat.FetchTimeout) * time.Second,
			GenTimeout:     time.Duration(cfg.Chat.GenTimeout) * time.Second,
			GenMaxAttempts: cfg.Chat.GenMaxAttempts,
		},
	)
	return a, cleanup, nil
}

func runServer(cfg *config.Config, a *assistant.Assistant) error {
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	logutil.GetLogger(context.Background()).Info("starting server",
		zap.String("addr", addr),
		zap.String("vector_store", cfg.VectorStore.Type),
	)

	deps := handler.RouterDeps{
		Chat:          handler.NewChatHandler(a),
		Sources:       handler.NewSourceHandler(a),
		JWTSecret:     []byte(cfg.APISecret),
		RateLimitSecs: cfg.RateLimit,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var scheduler *schedule.CronScheduler
	if cfg.RefreshCron != "" {
		scheduler = schedule.NewCronScheduler()
		if err := scheduler.AddJob(job.NewSourceRefreshJob(a), cfg.RefreshCron); err != nil {
			return fmt.Errorf("schedule refresh: %w", err)
		}
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
