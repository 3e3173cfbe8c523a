/*
Package storage provides the hierarchical key-value stores behind every Glean database.

The storage package implements the Store interface twice: MemoryStore keeps a
JSON-shaped tree in memory, and BoltStore persists the same tree in a bbolt
bucket. The metrics, events and pending pings databases address values by
path (ping name / metric type / metric identifier) and never care which
backend they run on.

# Architecture

	┌──────────────────── STORAGE ─────────────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │             Store interface                 │          │
	│  │  Get(path)            → value | nil         │          │
	│  │  Update(path, fn)     → fn(old) stored      │          │
	│  │  Delete(path)         → prune empty parents │          │
	│  └──────────────┬───────────────┬─────────────┘          │
	│                 │               │                          │
	│  ┌──────────────▼─────┐  ┌──────▼──────────────────┐      │
	│  │    MemoryStore      │  │       BoltStore          │      │
	│  │  - map[string]any   │  │  - File: <dir>/glean.db  │      │
	│  │  - RWMutex          │  │  - One bucket per store  │      │
	│  │  - deep copies      │  │  - key = path[0]         │      │
	│  └─────────────────────┘  │  - value = JSON subtree  │      │
	│                           │  - one tx per Update     │      │
	│                           └──────────────────────────┘      │
	└────────────────────────────────────────────────────────┘

# Buckets

	userLifetimeMetrics   ping → type → identifier → value
	pingLifetimeMetrics   ping → type → identifier → value
	appLifetimeMetrics    ping → type → identifier → value
	events                ping → [event, event, ...]
	pendingPings          document id → ping record

# Value Shapes

Values are normalized through encoding/json before they are stored, so both
backends return the same Go types: map[string]any, []any, float64, string
and bool. Callers convert numbers back with a type assertion on float64.

An Update transform that returns nil deletes the entry. Deleting the last
child of an object removes the object as well, so a ping with no remaining
metrics leaves no trace in the store.

# Concurrency

Stores are safe for concurrent use, but the Glean databases only ever touch
them from inside dispatcher tasks. The dispatcher is what gives the client
single-writer semantics; the store only guarantees that each Update is atomic.

# Usage

	db, err := storage.OpenBolt("/var/lib/myapp/glean")
	if err != nil {
		return err
	}
	defer db.Close()

	events, err := db.Store(storage.StoreEvents)
	if err != nil {
		return err
	}

	err = events.Update([]string{"events"}, func(old any) any {
		list, _ := old.([]any)
		return append(list, map[string]any{"category": "ui", "name": "click", "timestamp": 12})
	})
*/
package storage
