// Package notifications turns domain events into persisted, typed
// notifications off the caller's path.
//
// Enqueue returns immediately. A Scheduler (the in-process TaskQueue by
// default) later runs Process, which validates metadata, drops
// self-notifications, dedupes per event and recipient, stores the record
// unread, fires notificationCreated at the project's webhook and publishes to
// any sinks. Failures are logged and never reach the caller that enqueued.
package notifications
