package testutil

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"go.uber.org/multierr"
)

// Cleanup stops and removes a container started by this package.
type Cleanup func() error

const postgresExpireSeconds = 120

// ErrDockerUnavailable is returned when no Docker daemon can be reached.
var ErrDockerUnavailable = fmt.Errorf("docker is not available")

func initDockertest() (*dockertest.Pool, error) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, multierr.Append(ErrDockerUnavailable, err)
	}
	if err := pool.Client.Ping(); err != nil {
		return nil, multierr.Append(ErrDockerUnavailable, err)
	}
	pool.MaxWait = time.Minute
	return pool, nil
}

// StartPostgres runs a disposable PostgreSQL container and returns a DSN for it.
func StartPostgres() (_ string, _ Cleanup, err error) {
	pool, err := initDockertest()
	if err != nil {
		return "", nil, err
	}

	resource, err := pool.RunWithOptions(
		&dockertest.RunOptions{
			Repository: "postgres",
			Tag:        "16-alpine",
			Env: []string{
				"POSTGRES_USER=board",
				"POSTGRES_PASSWORD=board",
				"POSTGRES_DB=board",
			},
		},
		func(config *docker.HostConfig) {
			// 容器退出后自动删除，启动失败不重试
			config.AutoRemove = true
			config.RestartPolicy = docker.RestartPolicy{Name: "no"}
		},
	)
	if err != nil {
		return "", nil, fmt.Errorf("failed to run postgres container: %w", err)
	}

	cleanup := func() error {
		if purgeErr := pool.Purge(resource); purgeErr != nil {
			return fmt.Errorf("failed to purge postgres container: %w", purgeErr)
		}
		return nil
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, cleanup())
		}
	}()

	if err = resource.Expire(postgresExpireSeconds); err != nil {
		return "", nil, fmt.Errorf("failed to set expire time: %w", err)
	}

	dsn := fmt.Sprintf("host=%s port=%s user=board password=board dbname=board sslmode=disable",
		resource.GetBoundIP("5432/tcp"), resource.GetPort("5432/tcp"))

	err = pool.Retry(func() error {
		db, retryErr := sql.Open("pgx", dsn)
		if retryErr != nil {
			return retryErr
		}
		defer db.Close()
		return db.Ping()
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return dsn, cleanup, nil
}
