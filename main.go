package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/dermadict/internal/analysis"
	"github.com/raine/dermadict/internal/bot"
	"github.com/raine/dermadict/internal/config"
	"github.com/raine/dermadict/internal/janitor"
	"github.com/raine/dermadict/internal/llm"
	"github.com/raine/dermadict/internal/server"
	"github.com/raine/dermadict/internal/storage"
	"github.com/raine/dermadict/internal/viewer"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	config.LoadEnvFile()

	if os.Getenv("AI_GATEWAY_API_KEY") == "" && os.Getenv("GEMINI_API_KEY") == "" && isInteractiveTerminal() {
		if !runSetupWizard() {
			waitOnWindows()
			os.Exit(1)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fatalWithWait("invalid configuration: %v", err)
	}
	setupLogging(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	gin.SetMode(gin.ReleaseMode)

	// Create context that cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Credential() == "" {
		log.Warn().Str("provider", cfg.Provider).Msg("AI service credential is not set, analysis requests will fail")
	}

	var analyzer llm.Analyzer
	switch cfg.Provider {
	case config.ProviderGemini:
		gemini, err := llm.NewGeminiAnalyzer(ctx, cfg.Gemini, cfg.Gateway.Temperature)
		if err != nil {
			fatalWithWait("failed to initialize gemini analyzer: %v", err)
		}
		analyzer = gemini
		log.Info().Str("model", cfg.Gemini.Model).Msg("gemini analyzer initialized")
	default:
		analyzer = llm.NewGatewayAnalyzer(cfg.Gateway)
		log.Info().Str("url", cfg.Gateway.BaseURL).Str("model", cfg.Gateway.Model).Msg("gateway analyzer initialized")
	}

	var cacheStore *storage.SQLiteStore
	if cfg.Cache.Enabled() {
		encryptionKey, err := storage.DeriveKey(cfg.Cache.Key)
		if err != nil {
			fatalWithWait("failed to derive cache encryption key: %v", err)
		}
		cacheStore, err = storage.NewSQLiteStore(cfg.Cache.Path, encryptionKey)
		if err != nil {
			fatalWithWait("failed to initialize analysis cache: %v", err)
		}
		defer cacheStore.Close()
		analyzer = llm.NewCachedAnalyzer(analyzer, cacheStore, cfg.Cache.TTL)
		log.Info().Str("path", cfg.Cache.Path).Dur("ttl", cfg.Cache.TTL).Msg("analysis caching enabled")
	}

	g, ctx := errgroup.WithContext(ctx)

	srv := server.New(analyzer, server.Options{RequireDisclaimer: cfg.RequireDisclaimer})
	g.Go(func() error {
		return srv.Run(ctx, cfg.Addr())
	})

	if cacheStore != nil {
		janitorService := janitor.NewService(cacheStore, cfg.Cache.TTL)
		g.Go(func() error {
			janitorService.Run(ctx)
			return nil
		})
	}

	if cfg.TelegramBotToken != "" {
		tg, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			fatalWithWait("failed to initialize telegram bot: %v", err)
		}
		tg.Debug = false
		log.Info().Str("username", tg.Self.UserName).Msg("authorized on account")
		bot.RegisterCommands(tg)

		g.Go(func() error {
			return runBot(ctx, tg, inProcessAnalyzer(analyzer, cfg.RequireDisclaimer))
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("shutdown with error")
		os.Exit(1)
	}
	log.Info().Msg("shutdown complete")
}

func runBot(ctx context.Context, tg *tgbotapi.BotAPI, analyzer viewer.Analyzer) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := tg.GetUpdatesChan(updateConfig)

	go func() {
		<-ctx.Done()
		tg.StopReceivingUpdates()
	}()

	return bot.NewBot(tg, analyzer).Run(ctx, updates)
}

// inProcessAnalyzer lets the bot use the proxy's analyzer directly, with
// the same disclaimer policy as the HTTP endpoint.
func inProcessAnalyzer(a llm.Analyzer, requireDisclaimer bool) viewer.Analyzer {
	return viewer.AnalyzerFunc(func(ctx context.Context, image string) (*analysis.Result, error) {
		res, err := a.Analyze(ctx, image)
		if err != nil {
			return nil, err
		}
		result := res.Result
		if requireDisclaimer {
			result = analysis.EnsureDisclaimer(result)
		}
		return &result, nil
	})
}

// setupLogging configures the global logger. Unknown levels fall back to
// info.
func setupLogging(out io.Writer, format, level string) {
	if format == "json" {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out})
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
