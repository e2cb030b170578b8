package migrations

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	assert.Equal(t, "1", parseVersion("V1__accounts.sql"))
	assert.Equal(t, "12", parseVersion("V12__add_index.sql"))
	assert.Equal(t, "", parseVersion("seed.sql"))
	assert.Equal(t, "", parseVersion("V3.sql"))
}

func TestListMigrationsOrdersNumerically(t *testing.T) {
	fsys := fstest.MapFS{
		"V10__later.sql": {Data: []byte("SELECT 1;")},
		"V2__domain.sql": {Data: []byte("SELECT 1;")},
		"V1__init.sql":   {Data: []byte("SELECT 1;")},
		"notes.txt":      {Data: []byte("ignored")},
		"extra_seed.sql": {Data: []byte("SELECT 1;")},
	}

	migs, err := listMigrations(fsys)
	require.NoError(t, err)

	names := make([]string, 0, len(migs))
	for _, mig := range migs {
		names = append(names, mig.Name)
	}
	assert.Equal(t, []string{"V1__init.sql", "V2__domain.sql", "V10__later.sql", "extra_seed.sql"}, names)
}

func TestBundledMigrationsAreVersioned(t *testing.T) {
	migs, err := listMigrations(Files())
	require.NoError(t, err)
	require.NotEmpty(t, migs)
	for _, mig := range migs {
		assert.NotEmpty(t, mig.Version, mig.Name)
	}
}
