/*
Package observability turns arbor's lifecycle events into logs and prometheus metrics.

Hooks are plain domain.LifecycleHooks values, so several of them can be
combined with Chain and passed to arbor.WithLifecycleHooks.
*/
package observability
