package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/jlaasanen/dealflow/internal/ai"
	"github.com/jlaasanen/dealflow/internal/bot"
	"github.com/jlaasanen/dealflow/internal/config"
	"github.com/jlaasanen/dealflow/internal/db"
	"github.com/jlaasanen/dealflow/internal/errors"
	"github.com/jlaasanen/dealflow/internal/intent"
	"github.com/jlaasanen/dealflow/internal/lifecycle"
	"github.com/jlaasanen/dealflow/internal/logging"
	"github.com/jlaasanen/dealflow/internal/pipeline"
	"github.com/jlaasanen/dealflow/internal/pprofserver"
	"github.com/jlaasanen/dealflow/internal/repositories"
	"github.com/jlaasanen/dealflow/internal/session"
	"github.com/jlaasanen/dealflow/internal/telegram"
	"github.com/joho/godotenv"
)

func main() {
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	}))
	logger := slog.New(loggerHandler)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "bot exited", errors.SlogError(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	// A missing .env file is fine in deployments that configure the
	// environment directly.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "load .env")
	}

	cfg, err := config.Parse(lookupEnv)
	if err != nil {
		return errors.Wrap(err, "parse configuration")
	}

	// Initialise pprof listening on localhost so that it's not open to the world.
	pprofserver.Launch(cfg.PprofPort, logger)

	dbs, err := db.New(cfg.SQLiteURL)
	if err != nil {
		return errors.Wrap(err, "open database", slog.String("url", cfg.SQLiteURL))
	}
	defer func() {
		if closeErr := dbs.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "close database", errors.SlogError(closeErr))
		}
	}()
	logger.LogAttrs(ctx, slog.LevelInfo, "connected to db", slog.String("url", cfg.SQLiteURL))

	broadcastChats, err := parseChatIDs(cfg.GroupChatIDs)
	if err != nil {
		return errors.Wrap(err, "parse group chat ids")
	}

	generator := ai.NewClient(cfg.OpenAIAPIKey)
	channel := telegram.NewClient(cfg.TelegramBotToken, logger)

	coordinator := lifecycle.New(lifecycle.Config{
		Ideas:            repositories.NewIdeaRepository(dbs, logger),
		Feedback:         repositories.NewFeedbackRepository(dbs, logger),
		Members:          repositories.NewMemberRepository(dbs, logger),
		Pipeline:         pipeline.New(generator, logger),
		Sessions:         session.NewTracker(),
		Channel:          channel,
		Logger:           logger,
		ScoreThreshold:   cfg.ScoreThreshold,
		BroadcastChatIDs: broadcastChats,
	})

	dispatcher := bot.New(bot.Config{
		Updates:       channel,
		Channel:       channel,
		Coordinator:   coordinator,
		Classifier:    intent.NewClassifier(generator, logger),
		Completer:     generator,
		Logger:        logger,
		AdminUsername: cfg.AdminUsername,
	})

	return dispatcher.Run(ctx)
}

func parseChatIDs(raw []string) ([]int64, error) {
	chatIDs := make([]int64, 0, len(raw))
	for _, s := range raw {
		chatID, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, "invalid chat id", slog.String("value", s))
		}
		chatIDs = append(chatIDs, chatID)
	}
	return chatIDs, nil
}
