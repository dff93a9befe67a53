package pg_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/notifyhub/pkg/logger"
	"github.com/dmitrymomot/notifyhub/pkg/notification"
	"github.com/dmitrymomot/notifyhub/pkg/pg"
)

func TestMigrate_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	log := logger.Discard()

	err := pg.Migrate(ctx, nil, nil, pg.Config{MigrationsDir: "migrations"}, log)
	assert.ErrorIs(t, err, pg.ErrMigrationsFSNotProvided)

	err = pg.Migrate(ctx, nil, fstest.MapFS{}, pg.Config{}, log)
	assert.ErrorIs(t, err, pg.ErrMigrationPathNotProvided)

	err = pg.Migrate(ctx, nil, fstest.MapFS{}, pg.Config{MigrationsDir: "migrations"}, log)
	assert.ErrorIs(t, err, pg.ErrMigrationsDirNotFound)
}

func TestNotificationMigrationsEmbedded(t *testing.T) {
	t.Parallel()

	entries, err := notification.Migrations.ReadDir("migrations")
	assert.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestConnect_EmptyConnectionString(t *testing.T) {
	t.Parallel()

	_, err := pg.Connect(context.Background(), pg.Config{})
	assert.ErrorIs(t, err, pg.ErrEmptyConnectionString)
	assert.False(t, pg.Config{}.Enabled())
}
