package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/edgecomet/skeleton/internal/common/configtypes"
	"github.com/edgecomet/skeleton/internal/eventlog"
	"github.com/edgecomet/skeleton/internal/storage/clickhousestore"
	"github.com/edgecomet/skeleton/internal/storage/filestore"
	"github.com/edgecomet/skeleton/internal/storage/mongostore"
	"github.com/edgecomet/skeleton/internal/storage/mysqlstore"
	"github.com/edgecomet/skeleton/internal/storage/postgresstore"
)

// Sink is an event bulk writer backed by a database connection.
type Sink interface {
	eventlog.BulkWriter
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

var (
	_ Sink = (*mongostore.Client)(nil)
	_ Sink = (*clickhousestore.Client)(nil)
	_ Sink = (*mysqlstore.Client)(nil)
	_ Sink = (*postgresstore.Client)(nil)
	_ Sink = (*filestore.Client)(nil)
)

// OpenSink connects the database named by cfg.EventWriter.Sink.
func OpenSink(ctx context.Context, cfg *configtypes.AppConfig, logger *zap.Logger) (Sink, error) {
	var (
		sink Sink
		err  error
	)
	switch cfg.EventWriter.Sink {
	case configtypes.SinkMongo:
		sink, err = asSink(mongostore.NewClient(ctx, &cfg.Mongo, logger))
	case configtypes.SinkClickHouse:
		sink, err = asSink(clickhousestore.NewClient(ctx, &cfg.ClickHouse, logger))
	case configtypes.SinkMySQL:
		sink, err = asSink(mysqlstore.NewClient(ctx, &cfg.MySQL, logger))
	case configtypes.SinkPostgres:
		sink, err = asSink(postgresstore.NewClient(ctx, &cfg.Postgres, logger))
	case configtypes.SinkFile:
		sink, err = asSink(filestore.NewClient(&cfg.EventFile, logger))
	default:
		return nil, fmt.Errorf("unknown event sink %q", cfg.EventWriter.Sink)
	}
	if err != nil {
		return nil, fmt.Errorf("%s sink: %w", cfg.EventWriter.Sink, err)
	}
	return sink, nil
}

// asSink keeps a failed constructor's typed nil out of the interface.
func asSink[T Sink](client T, err error) (Sink, error) {
	if err != nil {
		return nil, err
	}
	return client, nil
}
