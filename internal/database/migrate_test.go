package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationNames_SortedAndEmbedded(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "0001_auth_schema.sql", names[0])

	body, err := migrationFS.ReadFile("migrations/" + names[0])
	require.NoError(t, err)
	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS refresh_tokens")
	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS token_blacklist")
}
