package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/cuemby/glean/pkg/log"
	"github.com/cuemby/glean/pkg/storage"
	"github.com/cuemby/glean/pkg/types"
	"github.com/rs/zerolog"
)

// PingsObserver is notified of every ping that is durably recorded
type PingsObserver interface {
	Update(identifier string, ping types.PingRecord)
}

// PingsDatabase keeps assembled pings until they are uploaded. Entries are
// keyed by document id.
type PingsDatabase struct {
	store    storage.Store
	observer PingsObserver
	logger   zerolog.Logger
}

// NewPingsDatabase creates a pings database over the pending pings store
func NewPingsDatabase(store storage.Store) *PingsDatabase {
	return &PingsDatabase{
		store:  store,
		logger: log.WithComponent("pings_database"),
	}
}

// AttachObserver registers the component that uploads recorded pings
func (db *PingsDatabase) AttachObserver(observer PingsObserver) {
	db.observer = observer
}

// RecordPing stores a ping and notifies the observer
func (db *PingsDatabase) RecordPing(identifier string, ping types.PingRecord) error {
	err := db.store.Update([]string{identifier}, func(any) any { return ping })
	if err != nil {
		return fmt.Errorf("failed to record ping %s: %w", identifier, err)
	}
	if db.observer != nil {
		db.observer.Update(identifier, ping)
	}
	return nil
}

// DeletePing removes a ping
func (db *PingsDatabase) DeletePing(identifier string) error {
	return db.store.Delete([]string{identifier})
}

// GetAllPings returns every pending ping ordered by collection date.
// Entries that do not parse are deleted.
func (db *PingsDatabase) GetAllPings() ([]types.QueuedPing, error) {
	root, err := db.store.Get(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending pings: %w", err)
	}
	byID, _ := root.(map[string]any)

	pings := make([]types.QueuedPing, 0, len(byID))
	for identifier, raw := range byID {
		record, err := decodePingRecord(raw)
		if err != nil {
			db.logger.Warn().Err(err).Str("document_id", identifier).Msg("Unexpected data found in pending pings store, deleting")
			if delErr := db.DeletePing(identifier); delErr != nil {
				db.logger.Error().Err(delErr).Msg("Failed to delete invalid pending ping")
			}
			continue
		}
		pings = append(pings, types.QueuedPing{Identifier: identifier, PingRecord: record})
	}

	sort.SliceStable(pings, func(i, j int) bool {
		if pings[i].CollectionDate != pings[j].CollectionDate {
			return pings[i].CollectionDate < pings[j].CollectionDate
		}
		return pings[i].Identifier < pings[j].Identifier
	})
	return pings, nil
}

// Count returns the number of pending pings
func (db *PingsDatabase) Count() int {
	root, err := db.store.Get(nil)
	if err != nil {
		return 0
	}
	byID, _ := root.(map[string]any)
	return len(byID)
}

// ScanPendingPings hands every ping left over from previous runs to the observer
func (db *PingsDatabase) ScanPendingPings() error {
	if db.observer == nil {
		return nil
	}
	pings, err := db.GetAllPings()
	if err != nil {
		return err
	}
	for _, ping := range pings {
		db.observer.Update(ping.Identifier, ping.PingRecord)
	}
	return nil
}

// ClearAll deletes pending pings. Deletion-request pings are kept when
// keepDeletionRequest is set.
func (db *PingsDatabase) ClearAll(keepDeletionRequest bool) error {
	if !keepDeletionRequest {
		return db.store.Delete(nil)
	}

	pings, err := db.GetAllPings()
	if err != nil {
		return err
	}
	for _, ping := range pings {
		if ping.IsDeletionRequest() {
			continue
		}
		if err := db.DeletePing(ping.Identifier); err != nil {
			return err
		}
	}
	return nil
}

func decodePingRecord(raw any) (types.PingRecord, error) {
	var record types.PingRecord
	data, err := json.Marshal(raw)
	if err != nil {
		return record, err
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return record, err
	}
	if record.Path == "" {
		return record, errors.New("ping has no path")
	}
	if record.Payload == nil {
		return record, errors.New("ping has no payload")
	}
	return record, nil
}
