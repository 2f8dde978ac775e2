package app_test

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postcast/internal/app"
	"postcast/internal/testutils"
)

func migrationPath() string {
	_, b, _, _ := runtime.Caller(0)
	return fmt.Sprintf("file://%s/../../migrations", filepath.Dir(b))
}

func TestBootstrap_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	suite := testutils.NewIntegrationSuite(t)
	suite.Setup()
	defer suite.Teardown()

	cfg := suite.GetAppConfig()
	cfg.MigrationPath = migrationPath()

	deps, err := app.Bootstrap(context.Background(), cfg)
	require.NoError(t, err)
	defer deps.Close()

	var exists bool
	err = deps.DB.QueryRow("SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = 'failed_generations')").Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "failed_generations table should exist")

	assert.NoError(t, deps.Redis.Ping(context.Background()).Err())
	assert.NoError(t, deps.NSQProducer.Ping())

	assert.True(t, deps.Store.Configured())
	n, err := deps.Store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
