package database

import (
	"context"
	"testing"
	"time"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/theredstring/redstring-sub011/ent"
)

// newTestClient spins up a real Postgres container and auto-migrates the
// archive schema, mirroring the teacher's pkg/database/client_test.go but
// against EventRecord/TelemetryRecord instead of the incident-response
// entities.
func newTestClient(t *testing.T) *Client {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	drv, err := sql.Open(dialect.Postgres, connStr)
	require.NoError(t, err)

	db := drv.DB()
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	entClient := ent.NewClient(ent.Driver(drv))
	require.NoError(t, entClient.Schema.Create(ctx))

	client := NewClientFromEnt(entClient, db)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestDatabaseClientConnectionPool(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.DB().PingContext(ctx))

	health, err := Health(ctx, client.DB())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Greater(t, health.MaxOpenConns, 0)
}

func TestArchivesEventAndTelemetryRecords(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	ev, err := client.EventRecord.Create().
		SetSeq(1).
		SetTs(time.Now()).
		SetEventType("PATCH_APPLIED").
		SetPayload(map[string]interface{}{"graphId": "g1"}).
		Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, "PATCH_APPLIED", ev.EventType)

	tel, err := client.TelemetryRecord.Create().
		SetSeq(1).
		SetTs(time.Now()).
		SetTelemetryType("tool_call").
		SetCid("cid-1").
		SetFields(map[string]interface{}{"status": "completed"}).
		Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cid-1", tel.Cid)

	count, err := client.EventRecord.Query().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
