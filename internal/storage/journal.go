package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Storage keys
const (
	keyRunState         = "run_state"
	prefixEpoch         = "epoch/"
	prefixCheckpoint    = "checkpoint/"
	checkpointKeyFormat = prefixCheckpoint + "%020d"
	epochKeyFormat      = prefixEpoch + "%010d"
)

// EpochRecord describes one gradient flush of the network.
type EpochRecord struct {
	Epoch     int       `json:"epoch"`
	Mode      string    `json:"mode"`
	Samples   int       `json:"samples"`
	MeanError float64   `json:"mean_error"`
	Time      time.Time `json:"time"`
}

// CheckpointRecord describes one rewrite of the dataset log.
type CheckpointRecord struct {
	Positions int       `json:"positions"`
	Accepted  int       `json:"accepted"`
	MeanEval  float64   `json:"mean_eval"`
	Time      time.Time `json:"time"`
}

// RunState is what a new run continues from.
type RunState struct {
	Epoch        int       `json:"epoch"`
	TotalSamples int64     `json:"total_samples"`
	Checkpoints  int       `json:"checkpoints"`
	LastRun      time.Time `json:"last_run"`
}

// Journal wraps BadgerDB for the trainer's run history.
type Journal struct {
	db *badger.DB
}

// OpenJournal opens or creates the journal in dir.
func OpenJournal(dir string) (*Journal, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // Disable logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// OpenDefaultJournal opens the journal in the data directory.
func OpenDefaultJournal() (*Journal, error) {
	dbDir, err := GetDatabaseDir()
	if err != nil {
		return nil, err
	}
	return OpenJournal(dbDir)
}

// OpenInMemory opens a journal that is never written to disk.
func OpenInMemory() (*Journal, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Close closes the database
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

func (j *Journal) put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// scan decodes every value under prefix, in key order.
func (j *Journal) scan(prefix string, fn func(val []byte) error) error {
	return j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if err := it.Item().Value(fn); err != nil {
				return err
			}
		}
		return nil
	})
}

// RecordEpoch stores an epoch and advances the run state past it.
func (j *Journal) RecordEpoch(rec EpochRecord) error {
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}
	if err := j.put(fmt.Sprintf(epochKeyFormat, rec.Epoch), rec); err != nil {
		return err
	}

	state, err := j.LoadRunState()
	if err != nil {
		return err
	}
	if rec.Epoch+1 > state.Epoch {
		state.Epoch = rec.Epoch + 1
	}
	state.TotalSamples += int64(rec.Samples)
	return j.SaveRunState(state)
}

// Epochs returns every recorded epoch in epoch order.
func (j *Journal) Epochs() ([]EpochRecord, error) {
	var out []EpochRecord
	err := j.scan(prefixEpoch, func(val []byte) error {
		var rec EpochRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

// RecordCheckpoint stores a dataset checkpoint.
func (j *Journal) RecordCheckpoint(rec CheckpointRecord) error {
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}
	if err := j.put(fmt.Sprintf(checkpointKeyFormat, rec.Time.UnixNano()), rec); err != nil {
		return err
	}

	state, err := j.LoadRunState()
	if err != nil {
		return err
	}
	state.Checkpoints++
	return j.SaveRunState(state)
}

// Checkpoints returns every recorded checkpoint, oldest first.
func (j *Journal) Checkpoints() ([]CheckpointRecord, error) {
	var out []CheckpointRecord
	err := j.scan(prefixCheckpoint, func(val []byte) error {
		var rec CheckpointRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

// SaveRunState saves the run state
func (j *Journal) SaveRunState(state *RunState) error {
	state.LastRun = time.Now()
	return j.put(keyRunState, state)
}

// LoadRunState loads the run state, returns a zero state if not found
func (j *Journal) LoadRunState() (*RunState, error) {
	state := &RunState{}

	err := j.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyRunState))
		if err == badger.ErrKeyNotFound {
			return nil // Use zero state
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, state)
		})
	})

	return state, err
}
