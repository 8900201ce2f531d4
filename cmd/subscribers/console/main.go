package main

// Redis Pub/Sub subscriber with filters
import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"changelog_emitter/internal/logging"
	"changelog_emitter/internal/subscriber"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := loadConfigFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Setup(cfg.LogFormat, cfg.LogVerbose, "console")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prefix := ""
	if strings.TrimSpace(cfg.Name) != "" {
		prefix = "[" + cfg.Name + "] "
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler := subscriber.PrintHandler(os.Stdout, prefix, cfg.PrettyPrint)
		if err := subscriber.Run(ctx, cfg, log.Logger, handler); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("subscriber exited")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info().Msg("shutting down")
		cancel()
		<-done
	case <-done:
	}
}

func loadConfigFromEnv() (*subscriber.Config, error) {
	customEnv := os.Getenv("ENV_FILE")
	files := subscriber.ParseEnvFilesList(customEnv)
	if len(files) == 0 {
		return subscriber.LoadConfigFromLookup(os.LookupEnv), nil
	}
	vals, err := subscriber.LoadEnvFiles(files)
	if err != nil {
		return nil, err
	}
	return subscriber.LoadConfigFromMap(vals), nil
}
