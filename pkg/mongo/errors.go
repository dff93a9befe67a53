package mongo

import "errors"

var (
	ErrFailedToConnectToMongo = errors.New("failed to connect to mongo")
	ErrEmptyConnectionURL     = errors.New("mongo connection url is empty; set MONGODB_URL or run with in-memory preferences")
	ErrHealthcheckFailed      = errors.New("preference database is not reachable")
)
