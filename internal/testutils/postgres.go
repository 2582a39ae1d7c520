//go:build integration
// +build integration

package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/linskybing/csvflow/internal/config"
	"github.com/linskybing/csvflow/internal/config/db"
)

// SetupPostgresForIntegration returns a migrated database. TEST_DB_DSN points
// at an existing server; otherwise a throwaway postgres container is started.
func SetupPostgresForIntegration() (*gorm.DB, func()) {
	ctx := context.Background()

	var terminate func()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		req := testcontainers.ContainerRequest{
			Image: "postgres:15",
			Env: map[string]string{
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_USER":     "test",
				"POSTGRES_DB":       "csvflow",
			},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
		}

		pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if err != nil {
			log.Fatal(err)
		}
		host, err := pg.Host(ctx)
		if err != nil {
			log.Fatal(err)
		}
		port, err := pg.MappedPort(ctx, "5432")
		if err != nil {
			log.Fatal(err)
		}
		dsn = fmt.Sprintf("postgres://test:test@%s:%s/csvflow?sslmode=disable", host, port.Port())
		terminate = func() { _ = pg.Terminate(ctx) }
	}

	// retry db connect
	var sqlDB *sql.DB
	var err error
	for i := 0; i < 10; i++ {
		sqlDB, err = sql.Open("postgres", dsn)
		if err == nil {
			err = sqlDB.Ping()
			if err == nil {
				break
			}
		}
		time.Sleep(1 * time.Second)
	}
	if err != nil {
		log.Fatal(err)
	}

	gdb, err := db.OpenWithDialector(postgres.New(postgres.Config{Conn: sqlDB}), config.DatabaseConfig{}, zap.NewNop())
	if err != nil {
		log.Fatal(err)
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal(err)
	}

	cleanup := func() {
		_ = sqlDB.Close()
		if terminate != nil {
			terminate()
		}
	}
	return gdb, cleanup
}

// Truncate empties every table between tests.
func Truncate(gdb *gorm.DB) error {
	return gdb.Exec("TRUNCATE TABLE job_events, jobs, users RESTART IDENTITY CASCADE").Error
}
