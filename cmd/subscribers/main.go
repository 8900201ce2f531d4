package main

// Multi-subscriber runner (one binary)
import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"changelog_emitter/internal/logging"
	"changelog_emitter/internal/subscriber"

	"github.com/rs/zerolog/log"
)

func main() {
	logging.Setup(os.Getenv("LOG_FORMAT"), false, "subscribers")

	files := envFilesList()
	if len(files) == 0 {
		log.Fatal().Msg("ENV_FILES (or ENV_FILE) is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for _, f := range files {
		cfg, err := loadConfigFromFile(f)
		if err != nil {
			log.Fatal().Err(err).Str("file", f).Msg("load config")
		}
		if strings.TrimSpace(cfg.Name) == "" {
			cfg.Name = strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		}

		wg.Add(1)
		go func(c *subscriber.Config) {
			defer wg.Done()
			handler := subscriber.PrintHandler(os.Stdout, "["+c.Name+"] ", c.PrettyPrint)
			if err := subscriber.Run(ctx, c, log.Logger, handler); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Str("subscriber", c.Name).Msg("subscriber exited")
			}
		}(cfg)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info().Msg("shutting down")
		cancel()
	case <-ctx.Done():
	}

	wg.Wait()
}

func envFilesList() []string {
	files := os.Getenv("ENV_FILES")
	if strings.TrimSpace(files) == "" {
		files = os.Getenv("ENV_FILE")
	}
	return subscriber.ParseEnvFilesList(files)
}

func loadConfigFromFile(path string) (*subscriber.Config, error) {
	vals, err := subscriber.LoadEnvFiles([]string{path})
	if err != nil {
		return nil, err
	}
	return subscriber.LoadConfigFromMap(vals), nil
}
