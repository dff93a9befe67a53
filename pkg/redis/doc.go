// Package redis connects to Redis, which holds the push subscription
// registry.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	store := pushsub.NewRedisStore(client, cfg.KeyPrefix)
package redis
