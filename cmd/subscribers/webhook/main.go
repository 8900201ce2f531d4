package main

// Subscriber forwarding matched change events to an HTTP endpoint
import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"changelog_emitter/internal/logging"
	"changelog_emitter/internal/subscriber"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, vals, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Setup(cfg.LogFormat, cfg.LogVerbose, "webhook")

	apiURL := strings.TrimSpace(lookup(vals, "API_URL"))
	if apiURL == "" {
		log.Fatal().Msg("API_URL is required")
	}

	callLog, closeLog, err := setupCallLogger(lookup(vals, "API_LOG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("setup api logger")
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hook := subscriber.NewWebhook(apiURL, callLog)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := subscriber.Run(ctx, cfg, log.Logger, hook.Handle); err != nil && !errors.Is(err, context.Canceled) {
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

// setupCallLogger logs webhook calls to stdout and, when path is set, to a
// JSON-lines file.
func setupCallLogger(path string) (zerolog.Logger, func(), error) {
	if strings.TrimSpace(path) == "" {
		return log.Logger.With().Str("component", "api").Logger(), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}
	l := zerolog.New(io.MultiWriter(zerolog.ConsoleWriter{Out: os.Stdout}, f)).
		With().Timestamp().Str("component", "api").Logger()
	log.Info().Str("file", path).Msg("api call logs enabled")
	return l, func() { _ = f.Close() }, nil
}

func loadConfig() (*subscriber.Config, map[string]string, error) {
	files := subscriber.ParseEnvFilesList(os.Getenv("ENV_FILE"))
	if len(files) == 0 {
		return subscriber.LoadConfigFromLookup(os.LookupEnv), nil, nil
	}
	vals, err := subscriber.LoadEnvFiles(files)
	if err != nil {
		return nil, nil, err
	}
	return subscriber.LoadConfigFromMap(vals), vals, nil
}

// lookup prefers the env files, then the process environment.
func lookup(vals map[string]string, key string) string {
	if v, ok := vals[key]; ok {
		return v
	}
	return os.Getenv(key)
}
