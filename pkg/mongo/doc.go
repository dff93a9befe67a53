// Package mongo connects to MongoDB, which stores user notification
// preferences.
//
//	db, err := mongo.NewWithDatabase(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	store := preference.NewMongoStore(db.Collection("preferences"))
package mongo
