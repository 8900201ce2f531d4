// Package source reads the MySQL binlog and turns row events into raw
// entries.
package source

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"changelog_emitter/internal/offset"
	"changelog_emitter/internal/rawentry"
	"changelog_emitter/internal/telemetry"

	"github.com/go-mysql-org/go-mysql/mysql"
	"github.com/go-mysql-org/go-mysql/replication"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Addr     string
	User     string
	Password string
	ServerID uint32
	UseGTID  bool
}

// Invalidator is told when DDL may have changed table layouts.
type Invalidator interface {
	InvalidateSchema(schema string)
}

// Invalidators fans an invalidation out to several caches.
type Invalidators []Invalidator

func (is Invalidators) InvalidateSchema(schema string) {
	for _, i := range is {
		i.InvalidateSchema(schema)
	}
}

// Handler receives raw entries in log order.
type Handler func(ctx context.Context, entry rawentry.Entry) error

type Reader struct {
	cfg         Config
	db          *sql.DB
	invalidator Invalidator
}

// NewReader uses db for SHOW MASTER STATUS and the GTID set. invalidator may
// be nil.
func NewReader(cfg Config, db *sql.DB, invalidator Invalidator) *Reader {
	return &Reader{cfg: cfg, db: db, invalidator: invalidator}
}

// Run streams from the current master tip until ctx is done or handle fails.
func (r *Reader) Run(ctx context.Context, handle Handler) error {
	host, port := splitHostPort(r.cfg.Addr)
	syncer := replication.NewBinlogSyncer(replication.BinlogSyncerConfig{
		ServerID:        r.cfg.ServerID,
		Flavor:          mysql.MySQLFlavor,
		Host:            host,
		Port:            port,
		User:            r.cfg.User,
		Password:        r.cfg.Password,
		UseDecimal:      true,
		ParseTime:       true,
		HeartbeatPeriod: 30 * time.Second,
		ReadTimeout:     90 * time.Second,
	})
	defer syncer.Close()

	streamer, pos, err := r.start(ctx, syncer)
	if err != nil {
		return err
	}

	for {
		ev, err := streamer.GetEvent(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("get event: %w", err)
		}

		switch e := ev.Event.(type) {
		case *replication.RotateEvent:
			pos.File = string(e.NextLogName)
			pos.Pos = uint32(e.Position)
			log.Info().Str("file", pos.File).Uint32("pos", pos.Pos).Msg("binlog rotated")

		case *replication.GTIDEvent:
			if next, err := e.GTIDNext(); err == nil {
				pos.GTID = next.String()
			}

		case *replication.QueryEvent:
			if r.invalidator != nil && isDDL(string(e.Query)) {
				r.invalidator.InvalidateSchema(string(e.Schema))
			}

		case *replication.RowsEvent:
			pos.Pos = ev.Header.LogPos
			pos.ServerID = ev.Header.ServerID
			pos.Timestamp = time.Unix(int64(ev.Header.Timestamp), 0)
			for _, entry := range EntriesFromRows(ev.Header.EventType, e, pos) {
				telemetry.RawEntriesTotal.WithLabelValues(entry.Kind.String()).Inc()
				if err := handle(ctx, entry); err != nil {
					return err
				}
			}
		}
	}
}

func (r *Reader) start(ctx context.Context, syncer *replication.BinlogSyncer) (*replication.BinlogStreamer, offset.Position, error) {
	file, p, err := readMasterFilePos(ctx, r.db)
	if err != nil {
		return nil, offset.Position{}, fmt.Errorf("read master status: %w", err)
	}
	pos := offset.Position{File: file, Pos: uint32(p), ServerID: r.cfg.ServerID}

	if r.cfg.UseGTID {
		gtidStr, err := readExecutedGTIDSet(ctx, r.db)
		if err != nil {
			return nil, pos, fmt.Errorf("read GTID set: %w", err)
		}
		gs, err := mysql.ParseGTIDSet(mysql.MySQLFlavor, gtidStr)
		if err != nil {
			return nil, pos, fmt.Errorf("parse GTID set: %w", err)
		}
		streamer, err := syncer.StartSyncGTID(gs)
		if err != nil {
			return nil, pos, fmt.Errorf("start binlog sync: %w", err)
		}
		log.Info().Str("gtid", gs.String()).Msg("streaming from executed GTID set")
		return streamer, pos, nil
	}

	streamer, err := syncer.StartSync(mysql.Position{Name: file, Pos: uint32(p)})
	if err != nil {
		return nil, pos, fmt.Errorf("start binlog sync: %w", err)
	}
	log.Info().Str("position", pos.String()).Msg("streaming from master tip")
	return streamer, pos, nil
}

func readMasterFilePos(ctx context.Context, db *sql.DB) (file string, pos uint64, err error) {
	var binDo, binIgnore, execGTID sql.NullString
	scan := func(query string) error {
		return db.QueryRowContext(ctx, query).Scan(&file, &pos, &binDo, &binIgnore, &execGTID)
	}
	if err = scan("SHOW MASTER STATUS"); err != nil {
		// MySQL 8.4 removed SHOW MASTER STATUS.
		if err2 := scan("SHOW BINARY LOG STATUS"); err2 != nil {
			return "", 0, err
		}
	}
	if file == "" {
		return "", 0, fmt.Errorf("binary logging not enabled (empty file from SHOW MASTER STATUS)")
	}
	return file, pos, nil
}

func readExecutedGTIDSet(ctx context.Context, db *sql.DB) (string, error) {
	var s string
	if err := db.QueryRowContext(ctx, "SELECT @@GLOBAL.gtid_executed").Scan(&s); err != nil {
		return "", err
	}
	return strings.ReplaceAll(s, "\n", ""), nil
}

func isDDL(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	for _, prefix := range []string{"ALTER ", "CREATE ", "DROP ", "RENAME ", "TRUNCATE "} {
		if strings.HasPrefix(q, prefix) {
			return true
		}
	}
	return false
}

func splitHostPort(addr string) (string, uint16) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 3306
	}
	p, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return host, 3306
	}
	return host, uint16(p)
}
