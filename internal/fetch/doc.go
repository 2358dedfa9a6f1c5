// Package fetch provides the shared, throttled and caching client every call to the
// control plane goes through.
//
// A single Client is built per run and passed to every consumer. It keeps a
// process-lifetime cache keyed by resource kind and id and a global throttle bounding how
// often uncached calls may be dispatched, regardless of how many goroutines are asking.
//
// Producers report a legitimately absent resource by returning ErrNotFound; that outcome
// is cached like a value. Any other producer error is wrapped in a TransientError, handed
// back to the caller and never cached, so a later call may try again.
package fetch
