package main

// MySQL change event emitter
import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"changelog_emitter/internal/clock"
	"changelog_emitter/internal/codec"
	"changelog_emitter/internal/config"
	"changelog_emitter/internal/emitter"
	"changelog_emitter/internal/logging"
	"changelog_emitter/internal/offset"
	"changelog_emitter/internal/pipeline"
	"changelog_emitter/internal/publisher"
	"changelog_emitter/internal/rawentry"
	"changelog_emitter/internal/sink"
	"changelog_emitter/internal/source"
	"changelog_emitter/internal/table"
	"changelog_emitter/internal/telemetry"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
)

const entryBuffer = 1024

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("emitter stopped")
	}
}

func run() error {
	dotenvErr := config.LoadDotEnv()

	cfg, err := config.Load(os.LookupEnv)
	if err != nil {
		return err
	}
	logging.Setup(cfg.LogFormat, cfg.LogVerbose, "emitter")
	if dotenvErr != nil {
		log.Debug().Err(dotenvErr).Msg("no .env file loaded")
	}

	out, err := sink.New(cfg.SinkOptions())
	if err != nil {
		return fmt.Errorf("init sink: %w", err)
	}
	if cfg.LogFile != "" {
		if out, err = sink.NewJournal(out, cfg.LogFile); err != nil {
			return fmt.Errorf("init message log: %w", err)
		}
	}

	enc, err := codec.New(cfg.Format, cfg.Location)
	if err != nil {
		return err
	}
	filter, err := publisher.NewGlobFilter(cfg.FilterTables, cfg.FilterDBs)
	if err != nil {
		return err
	}

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return fmt.Errorf("open mysql: %w", err)
	}
	defer db.Close()

	tables, err := table.NewCache(table.NewLoader(db), cfg.TableCacheSize)
	if err != nil {
		return err
	}

	pub, err := publisher.New(publisher.Config{
		Sink:           out,
		Codec:          enc,
		Filter:         filter,
		Tables:         tables,
		Topic:          cfg.Topic(),
		TopicPrefix:    cfg.TopicPrefix,
		EmitTombstones: cfg.Tombstones,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := pub.Close(); err != nil {
			log.Warn().Err(err).Msg("close sink")
		}
	}()

	pipe, err := pipeline.New(pipeline.Config{
		Partition: offset.Partition{ServerName: cfg.ServerName},
		Tables:    tables,
		Clock:     clock.System{},
		Receiver:  pub,
		Filter:    filter,
		Policy:    cfg.Policy,
		Workers:   cfg.Workers,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Msg("shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := telemetry.Serve(ctx, cfg.MetricsAddr); err != nil {
				log.Error().Err(err).Msg("metrics server")
			}
		}()
	}

	invalidators := source.Invalidators{tables}
	if inv, ok := enc.(source.Invalidator); ok {
		invalidators = append(invalidators, inv)
	}
	reader := source.NewReader(source.Config{
		Addr:     cfg.Addr,
		User:     cfg.DBUser,
		Password: cfg.DBPass,
		ServerID: cfg.ServerID,
		UseGTID:  cfg.UseGTID,
	}, db, invalidators)

	log.Info().
		Str("addr", cfg.Addr).
		Str("sink", cfg.Sink).
		Str("format", cfg.Format).
		Int("workers", cfg.Workers).
		Str("policy", string(cfg.Policy)).
		Msg("emitter start")

	for {
		err := streamChanges(ctx, db, reader, pipe)
		switch {
		case err == nil, errors.Is(err, context.Canceled):
			return nil
		case errors.Is(err, emitter.ErrUnsupportedKind), errors.Is(err, emitter.ErrShapeMismatch),
			errors.Is(err, pipeline.ErrUnresolvedTable):
			return err
		}
		log.Error().Err(err).Dur("retry_in", cfg.ReconnectDelay).Msg("replication error")
		select {
		case <-time.After(cfg.ReconnectDelay):
		case <-ctx.Done():
			return nil
		}
	}
}

// streamChanges runs one replication session: the reader feeds raw entries
// to the pipeline until either side stops.
func streamChanges(ctx context.Context, db *sql.DB, reader *source.Reader, pipe *pipeline.Pipeline) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping mysql: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	entries := make(chan rawentry.Entry, entryBuffer)
	pipeErr := make(chan error, 1)
	go func() {
		err := pipe.Run(ctx, entries)
		cancel()
		pipeErr <- err
	}()

	readErr := reader.Run(ctx, func(ctx context.Context, entry rawentry.Entry) error {
		select {
		case entries <- entry:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	close(entries)

	if err := <-pipeErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return readErr
}
