// Package notifier delivers "new item" notifications to Discord webhooks.
//
// Every detected change gets exactly one delivery attempt. The service
// throttles sends with a token bucket, bounds each call with a timeout and
// records the outcome in three places: a small in-memory history (for the ops
// /status endpoint), the storage audit log, and the event bus.
package notifier
