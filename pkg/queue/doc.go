// Package queue is the priority dispatch queue that decouples notification
// creation from channel delivery.
//
// Producers call Enqueuer.Enqueue with a channel name ("push", "email",
// "realtime", ...) and a JSON-serialisable payload. The Dispatcher runs one
// Worker pool per channel, so a slow provider on one channel never holds up
// another.
//
// # Ordering
//
// A worker claims the eligible job (scheduled time elapsed, not locked) of
// the highest Tier, breaking ties by enqueue order. Every Config.StarvationEvery
// claims the oldest eligible job is taken instead, so a LOW backlog is served
// even under sustained HIGH load. There is no global FIFO across tiers.
//
// # Retries
//
// A handler error increments the attempt count and reschedules the job after
// Backoff(base, max, attempts), i.e. 5s, 10s, 20s with the defaults. At
// Config.MaxAttempts the job becomes terminally failed and is kept (bounded by
// Config.KeepFailed) for operators; errors wrapped with Permanent fail at once.
//
// # Delivery guarantee
//
// Execution is at-least-once. A running worker renews its lock; a job whose
// worker dies keeps the lock until Config.LockTimeout and is then claimed
// again, or failed when it has no attempts left. Workers that lost their lock
// get ErrLockLost when reporting the outcome. Handlers run for at most
// Config.JobTimeout.
//
// MemoryStorage keeps jobs in the process. PostgresStorage keeps them in the
// queue_jobs table created by Migrations, so queued and delayed jobs survive
// a restart.
//
// # Periodic tasks
//
// Scheduler enqueues named jobs on MaintenanceChannel according to a Schedule
// (Every, DailyAt). A Router dispatches them by name:
//
//	router := queue.NewRouter()
//	router.RegisterFunc("notifications.purge", svc.RetentionTask(cfg))
//	_ = dispatcher.Handle(queue.MaintenanceChannel, router)
//	_ = scheduler.AddTask("notifications.purge", queue.DailyAt(3, 0))
package queue
