package replica

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnectSource opens a single connection to the source store. Change
// fetching is strictly sequential, so one connection is enough.
func ConnectSource(ctx context.Context, connString string, tlsConf *tls.Config) (*pgx.Conn, error) {
	cfg, err := pgx.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source connection string: %w", err)
	}
	if tlsConf != nil {
		cfg.TLSConfig = tlsConf
	}

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, &StoreConnectionError{Store: "source", Err: err}
	}
	return conn, nil
}

// ConnectTarget opens a connection pool to the target store and verifies it
// with a ping.
func ConnectTarget(ctx context.Context, connString string, tlsConf *tls.Config, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse target connection string: %w", err)
	}
	if tlsConf != nil {
		cfg.ConnConfig.TLSConfig = tlsConf
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns > 0 {
		cfg.MinConns = minConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, &StoreConnectionError{Store: "target", Err: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &StoreConnectionError{Store: "target", Err: err}
	}
	return pool, nil
}

// asConnectionError classifies err as a connectivity failure against the
// named store, or returns nil when it is a store-side rejection instead.
func asConnectionError(store string, err error) *StoreConnectionError {
	var pgConnErr *pgconn.ConnectError
	if errors.As(err, &pgConnErr) {
		return &StoreConnectionError{Store: store, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &StoreConnectionError{Store: store, Err: err}
	}
	return nil
}
