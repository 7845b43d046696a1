package postgres

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "postgres://u:p@localhost:5432/rnd?sslmode=disable", want: "pgx5://u:p@localhost:5432/rnd?sslmode=disable"},
		{in: "postgresql://localhost/rnd", want: "pgx5://localhost/rnd"},
		{in: "pgx5://localhost/rnd", want: "pgx5://localhost/rnd"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, migrationURL(tt.in))
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	names, err := fs.Glob(migrationFiles, "migrations/*.up.sql")

	require.NoError(t, err)
	assert.Contains(t, names, "migrations/000001_change_log.up.sql")
}
