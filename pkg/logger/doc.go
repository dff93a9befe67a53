// Package logger builds the structured *slog.Logger used across notifyhub and
// provides attribute helpers that keep key names consistent between the
// queue, the presence hub and the channel senders.
//
// A logger is created with New and configured with functional options:
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "notifyhub"),
//	    logger.WithContextValue("connection_id", ctxKeyConn),
//	)
//	logger.SetAsDefault(log)
//
//	log.WarnContext(ctx, "push delivery failed",
//	    logger.UserID(userID),
//	    logger.Channel("push"),
//	    logger.Error(err),
//	)
//
// Development environments get a text handler at debug level, staging and
// production get a JSON handler at info level. Context extractors registered
// with WithContextExtractors or WithContextValue run on every record, so
// request scoped values reach the log line without threading them through
// every call.
//
// Error and UserID style helpers return an empty slog.Attr for nil input,
// which slog drops, so callers never need a nil check before logging.
package logger
