package db

import (
	"net/url"
	"testing"

	"github.com/dlms-org/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresURL(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "dlms",
		Password: "p@ss word",
		DBName:   "dlms_db",
	}

	u, err := url.Parse(PostgresURL(cfg))
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "db.internal:5433", u.Host)
	assert.Equal(t, "/dlms_db", u.Path)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))

	password, ok := u.User.Password()
	require.True(t, ok)
	assert.Equal(t, "p@ss word", password)

	cfg.UseSSL = true
	u, err = url.Parse(PostgresURL(cfg))
	require.NoError(t, err)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
}
