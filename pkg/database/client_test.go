package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestClient starts a throwaway Postgres container, applies migrations,
// and returns a connected Client.
func newTestClient(t *testing.T) *Client {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("pulse_test"),
		postgres.WithUsername("pulse_test"),
		postgres.WithPassword("pulse_test"),
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

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := Config{
		Host:     host,
		Port:     port.Int(),
		User:     "pulse_test",
		Password: "pulse_test",
		Database: "pulse_test",
		SSLMode:  "disable",
		MaxConns: 10,
		MinConns: 1,
	}

	client, err := NewClient(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, CreateGINIndexes(ctx, client.Pool))

	t.Cleanup(client.Close)

	return client
}

func TestDatabaseClient_ConnectionPool(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	err := client.Pool.Ping(ctx)
	require.NoError(t, err)

	health, err := Health(ctx, client.Pool)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Greater(t, health.MaxConns, int32(0))
}

func TestSpanAndTraceRoundTrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.Pool.Exec(ctx,
		`INSERT INTO traces (trace_id, root_kind, started_at) VALUES ($1, $2, $3)`,
		"trace-1", "llm_call", time.Now())
	require.NoError(t, err)

	_, err = client.Pool.Exec(ctx,
		`INSERT INTO spans (span_id, trace_id, kind, name, status, started_at, attributes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		"span-1", "trace-1", "llm_call", "chat.completions", "ok", time.Now(), []byte(`{"model":"gpt-4o"}`))
	require.NoError(t, err)

	var gotName string
	err = client.Pool.QueryRow(ctx, `SELECT name FROM spans WHERE span_id = $1`, "span-1").Scan(&gotName)
	require.NoError(t, err)
	assert.Equal(t, "chat.completions", gotName)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test", Password: "test",
				Database: "test", SSLMode: "disable", MaxConns: 10, MinConns: 5,
			},
			wantErr: false,
		},
		{
			name: "missing password",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test", Password: "",
				Database: "test", MaxConns: 10, MinConns: 5,
			},
			wantErr: true,
		},
		{
			name: "min exceeds max",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test", Password: "test",
				Database: "test", MaxConns: 5, MinConns: 10,
			},
			wantErr: true,
		},
		{
			name: "zero max conns",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test", Password: "test",
				Database: "test", MaxConns: 0, MinConns: 0,
			},
			wantErr: true,
		},
		{
			name: "negative min conns",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test", Password: "test",
				Database: "test", MaxConns: 10, MinConns: -1,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
