// Package notify publishes per-table replication reports to external
// collaborators. Publication is best-effort observability: a publish failure
// never fails the table cycle that produced the report.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	nats "github.com/nats-io/nats.go"
	"github.com/sandrolain/replica-bridge/src/replica"
)

// NATSNotifier publishes each report as a JSON message on a fixed subject.
type NATSNotifier struct {
	subject string
	slog    *slog.Logger
	conn    *nats.Conn
}

// NewNATSNotifier connects to the NATS server and returns a notifier bound
// to the given subject.
func NewNATSNotifier(address, subject string, timeout time.Duration) (*NATSNotifier, error) {
	l := slog.Default().With("context", "NATS Notifier")

	conn, err := nats.Connect(address, nats.Timeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS server: %w", err)
	}
	l.Info("NATS notifier connected", "address", address, "subject", subject)

	return &NATSNotifier{
		subject: subject,
		slog:    l,
		conn:    conn,
	}, nil
}

// Publish sends one table report.
func (n *NATSNotifier) Publish(report replica.TableReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("error encoding report: %w", err)
	}

	n.slog.Debug("publishing report", "subject", n.subject, "table", report.Schema+"."+report.Table)

	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("error publishing to NATS: %w", err)
	}
	return nil
}

// Close drains the connection.
func (n *NATSNotifier) Close() error {
	if n.conn != nil && n.conn.IsConnected() {
		n.conn.Close()
	}
	return nil
}
