//go:build integration

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	nats "github.com/nats-io/nats.go"
	"github.com/sandrolain/replica-bridge/src/replica"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testSubject = "replication.reports"

var (
	natsContainer testcontainers.Container
	natsAddress   string
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	// Setup NATS container
	req := testcontainers.ContainerRequest{
		Image:        "nats:2.10-alpine",
		ExposedPorts: []string{"4222/tcp"},
		WaitingFor:   wait.ForLog("Server is ready"),
	}

	natsC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to start NATS container: %v", err))
	}
	natsContainer = natsC

	host, err := natsC.Host(ctx)
	if err != nil {
		panic(fmt.Sprintf("failed to get NATS host: %v", err))
	}
	port, err := natsC.MappedPort(ctx, "4222/tcp")
	if err != nil {
		panic(fmt.Sprintf("failed to get NATS port: %v", err))
	}
	natsAddress = fmt.Sprintf("nats://%s:%s", host, port.Port())

	code := m.Run()

	if err := natsContainer.Terminate(ctx); err != nil {
		fmt.Printf("failed to terminate NATS container: %v\n", err)
	}

	os.Exit(code)
}

func TestNATSNotifierPublishIntegration(t *testing.T) {
	notifier, err := NewNATSNotifier(natsAddress, testSubject, 5*time.Second)
	require.NoError(t, err)
	defer notifier.Close()

	sub, err := nats.Connect(natsAddress)
	require.NoError(t, err)
	defer sub.Close()

	msgChan := make(chan *nats.Msg, 1)
	_, err = sub.ChanSubscribe(testSubject, msgChan)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	report := replica.TableReport{
		RunID:     uuid.New(),
		Schema:    "sales",
		Table:     "orders",
		Since:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Result:    replica.UpsertResult{RowsInserted: 2, RowsUpdated: 1},
		Duration:  420 * time.Millisecond,
		Succeeded: true,
	}
	require.NoError(t, notifier.Publish(report))

	select {
	case msg := <-msgChan:
		var got replica.TableReport
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, report.RunID, got.RunID)
		assert.Equal(t, "sales", got.Schema)
		assert.Equal(t, "orders", got.Table)
		assert.Equal(t, int64(2), got.Result.RowsInserted)
		assert.Equal(t, int64(1), got.Result.RowsUpdated)
		assert.True(t, got.Succeeded)
		assert.Empty(t, got.Error)

	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for published report")
	}
}

func TestNATSNotifierPublishFailureReportIntegration(t *testing.T) {
	notifier, err := NewNATSNotifier(natsAddress, testSubject, 5*time.Second)
	require.NoError(t, err)
	defer notifier.Close()

	sub, err := nats.Connect(natsAddress)
	require.NoError(t, err)
	defer sub.Close()

	msgChan := make(chan *nats.Msg, 1)
	_, err = sub.ChanSubscribe(testSubject, msgChan)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	report := replica.TableReport{
		RunID:     uuid.New(),
		Schema:    "sales",
		Table:     "orders",
		Succeeded: false,
		Error:     "upsert failed for sales.orders: boom",
	}
	require.NoError(t, notifier.Publish(report))

	select {
	case msg := <-msgChan:
		var got replica.TableReport
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.False(t, got.Succeeded)
		assert.Contains(t, got.Error, "upsert failed")

	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for published report")
	}
}
