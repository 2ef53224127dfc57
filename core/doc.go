// Package core contains the canonical hookgate domain contracts: webhook
// endpoints, notification records, connections, configuration, and the error
// taxonomy shared by the gate, the notification pipeline, and the connection
// state machine. Lower-level adapters depend on this package; core must not
// depend on storage-specific or transport-specific adapters.
package core
