package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/sandrolain/replica-bridge/src/common/tlsconfig"
	"github.com/sandrolain/replica-bridge/src/config"
	"github.com/sandrolain/replica-bridge/src/notify"
	"github.com/sandrolain/replica-bridge/src/replica"
)

func main() {
	w := os.Stdout

	// Set global logger with custom options
	slog.SetDefault(slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
		}),
	))

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	sourceTLS, err := tlsconfig.BuildClientConfigIfEnabled(cfg.Source.TLS)
	if err != nil {
		slog.Error("failed to build source TLS config", "error", err)
		os.Exit(1)
	}
	targetTLS, err := tlsconfig.BuildClientConfigIfEnabled(cfg.Target.TLS)
	if err != nil {
		slog.Error("failed to build target TLS config", "error", err)
		os.Exit(1)
	}

	sourceConn, err := replica.ConnectSource(ctx, cfg.Source.ConnString, sourceTLS)
	if err != nil {
		slog.Error("failed to connect to source store", "error", err)
		os.Exit(1)
	}
	defer sourceConn.Close(context.Background())

	targetPool, err := replica.ConnectTarget(ctx, cfg.Target.ConnString, targetTLS, cfg.Target.MaxConns, cfg.Target.MinConns)
	if err != nil {
		slog.Error("failed to connect to target store", "error", err)
		os.Exit(1)
	}
	defer targetPool.Close()

	watermarks, err := replica.NewPGWatermarkStore(ctx, targetPool, cfg.Staging.Schema, cfg.Staging.MetadataTable)
	if err != nil {
		slog.Error("failed to prepare run-metadata table", "error", err)
		os.Exit(1)
	}

	var notifier replica.Notifier
	if cfg.Notify != nil {
		n, err := notify.NewNATSNotifier(cfg.Notify.Address, cfg.Notify.Subject, cfg.Notify.Timeout)
		if err != nil {
			slog.Error("failed to create notifier", "error", err)
			os.Exit(1)
		}
		defer n.Close()
		notifier = n
	}

	replicator := replica.NewReplicator(
		watermarks,
		replica.NewPGChangeFetcher(sourceConn),
		replica.NewUpsertEngine(targetPool, cfg.Staging.Schema),
		notifier,
	)

	reports, err := replicator.Run(ctx, cfg.Descriptors())

	var inserted, updated int64
	for _, rep := range reports {
		inserted += rep.Result.RowsInserted
		updated += rep.Result.RowsUpdated
	}
	slog.Info("replication finished",
		"tables", len(reports),
		"inserted", inserted,
		"updated", updated,
	)

	if err != nil {
		slog.Error("replication completed with failures", "error", err)
		os.Exit(1)
	}
}
