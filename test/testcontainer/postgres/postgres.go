package postgres

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/marcodd23/go-txscope/pkg/dbx"
	"github.com/marcodd23/go-txscope/pkg/dbx/pgxdb"
	"github.com/marcodd23/go-txscope/pkg/logx"
	"github.com/marcodd23/go-txscope/test"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresContainerImage = "docker.io/postgres:16-alpine"
	postgresContainerPort  = "5432/tcp"

	MainDbName     = "main-db"
	MainDbUser     = "postgres"
	MainDbPassword = "password"
)

// PostgresContainer represents the postgres Container type used in the module.
type PostgresContainer struct {
	Container      *postgres.PostgresContainer
	MappedPort     nat.Port
	Host           string
	DbName         string
	DbUser         string
	DbPassword     string
	PrepStatements []dbx.PreparedStatement
}

const TestSnapshotId = "test-snapshot"

// StartPostgresContainer starts a postgres container initialized with init_schema.sql.
func StartPostgresContainer(ctx context.Context, t *testing.T, preparesStatements ...dbx.PreparedStatement) *PostgresContainer {
	return StartPostgresContainerWithInitScript(ctx, t, filepath.Join("test/testcontainer/postgres", "init_schema.sql"), preparesStatements...)
}

// StartPostgresContainerWithInitScript starts a postgres container and runs initScriptPath on it.
// The path is relative to the project root.
func StartPostgresContainerWithInitScript(ctx context.Context, t *testing.T, initScriptPath string, preparesStatements ...dbx.PreparedStatement) *PostgresContainer {
	root := test.ConfigTestRootPath()

	pg, err := postgres.Run(ctx,
		postgresContainerImage,
		postgres.WithInitScripts(filepath.Join(root, filepath.Clean(initScriptPath))),
		postgres.WithDatabase(MainDbName),
		postgres.WithUsername(MainDbUser),
		postgres.WithPassword(MainDbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(10*time.Second)),
	)

	require.NoError(t, err)
	require.NotNil(t, pg)

	mappedPort, err := pg.MappedPort(ctx, postgresContainerPort)
	require.NoError(t, err)

	host, err := pg.Host(ctx)
	require.NoError(t, err)

	log.Printf("Postgres running at %s:%s", host, mappedPort.Port())

	// Snapshot taken right after init, Restore brings the schema back to an empty state
	err = pg.Snapshot(ctx, postgres.WithSnapshotName(TestSnapshotId))
	require.NoError(t, err)

	return &PostgresContainer{
		Container:      pg,
		MappedPort:     mappedPort,
		Host:           host,
		DbName:         MainDbName,
		DbUser:         MainDbUser,
		DbPassword:     MainDbPassword,
		PrepStatements: preparesStatements,
	}
}

// Restore resets the database to the snapshot taken at startup.
// Every pool connected to the database must be closed first.
func (c *PostgresContainer) Restore(ctx context.Context, t *testing.T) {
	err := c.Container.Restore(ctx, postgres.WithSnapshotName(TestSnapshotId))
	require.NoError(t, err)
}

func (c *PostgresContainer) StopContainer(ctx context.Context, t *testing.T) error {
	logx.GetLogger().LogInfo(ctx, "Terminating the Container ....")

	timeout := time.Second * 3

	err := c.Container.Stop(ctx, &timeout)
	if err != nil {
		require.NoError(t, err, fmt.Sprintf("error stopping the Container %v", err))
		return err
	}

	return nil
}

// PoolConfig returns the pool configuration pointing at the container.
func (c *PostgresContainer) PoolConfig(connectionLimit int32) dbx.PoolConfig {
	cfg := dbx.NewPoolConfig()
	cfg.IsLocalEnv = true
	cfg.Host = c.Host
	cfg.Port = int32(c.MappedPort.Int())
	cfg.DBName = c.DbName
	cfg.User = c.DbUser
	cfg.Password = c.DbPassword
	cfg.ConnectionLimit = connectionLimit
	cfg.ConnectTimeout = 5 * time.Second
	cfg.PreparedStatements = c.PrepStatements

	return cfg
}

// SetupDatabaseConnection opens a pgxdb pool on the container and waits for the database to answer.
func SetupDatabaseConnection(ctx context.Context, t *testing.T, container *PostgresContainer, connectionLimit int32) *pgxdb.Pool {
	pool, err := pgxdb.NewPool(ctx, container.PoolConfig(connectionLimit))
	require.NoError(t, err)

	waitForDBReady(ctx, t, pool)

	return pool
}

func waitForDBReady(ctx context.Context, t *testing.T, pool *pgxdb.Pool) {
	for retries := 0; retries < 20; retries++ {
		conn, err := pool.Acquire(ctx)
		if err == nil {
			_, err = conn.Query(ctx, "SELECT 1")
			conn.Release()

			if err == nil {
				return
			}
		}

		t.Log(err)
		t.Log("Waiting for database to be ready...")
		time.Sleep(2 * time.Second)
	}

	t.Fatal("Database is not ready after waiting")
}
