// Package history keeps a local audit trail of publish cycles in the
// publish_history SQLite table, bounded by a retention window.
package history
