package migrations

import (
	"io"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresMigrationsHaveBothDirections(t *testing.T) {
	src, err := iofs.New(Postgres, "postgres")
	require.NoError(t, err)
	defer src.Close()

	version, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	up, _, err := src.ReadUp(version)
	require.NoError(t, err)
	defer up.Close()
	body, err := io.ReadAll(up)
	require.NoError(t, err)
	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS payments")
	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS invoice_sequences")

	down, _, err := src.ReadDown(version)
	require.NoError(t, err)
	defer down.Close()
}
