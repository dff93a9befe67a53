// Package pg bootstraps the PostgreSQL pool that backs the durable
// notification store.
//
// Connect opens a pgx/v5 pool with retries, Migrate applies goose migrations
// from an embedded filesystem (see notification.Migrations) and Healthcheck
// exposes a ping probe:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := pg.Migrate(ctx, pool, notification.Migrations, cfg, log); err != nil {
//		return err
//	}
//	store := notification.NewPostgresStorage(pool)
//
// Configuration comes from PG_* environment variables, see Config.
package pg
