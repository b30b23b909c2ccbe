/*
Package results manages persisted diagnosis records.

The Manager wraps a ports.ResultStore with per-record locking, optionally
backed by a distributed locker when several processes share one store.
*/
package results
