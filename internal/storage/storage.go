// Package storage persists the historical event set and an audit log of
// served predictions. It uses BoltDB as the storage engine and provides
// thread-safe operations with time-ordered keys for efficient range reads.
package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"quakewatch/internal/events"
)

const (
	eventsBucket      = "events"      // Historical event records
	predictionsBucket = "predictions" // Audit log of served predictions
)

// PredictionRecord is one audit-log entry for a served prediction.
type PredictionRecord struct {
	RequestID     string             `json:"request_id"`
	At            time.Time          `json:"at"`
	Input         map[string]any     `json:"input"`
	Label         string             `json:"label"`
	Probabilities map[string]float64 `json:"probabilities"`
	Warnings      []string           `json:"warnings,omitempty"`
	ModelVersion  string             `json:"model_version"`
}

// Store provides persistent storage backed by BoltDB.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the database under dataPath and ensures buckets
// exist.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "quakewatch.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(eventsBucket)); err != nil {
			return fmt.Errorf("create events bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ReplaceEvents rewrites the events bucket with the given records. Called
// once per training run after the dataset is loaded.
func (s *Store) ReplaceEvents(records []events.Record) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(eventsBucket)); err != nil {
			return fmt.Errorf("clear events bucket: %w", err)
		}
		b, err := tx.CreateBucket([]byte(eventsBucket))
		if err != nil {
			return fmt.Errorf("recreate events bucket: %w", err)
		}

		for i, rec := range records {
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("marshal event: %w", err)
			}
			ts := int64(0)
			if rec.Time != nil {
				ts = rec.Time.UnixNano()
			}
			key := fmt.Sprintf("%020d_%08d", ts, i)
			if err := b.Put([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Events returns up to limit stored event records in time order. A
// non-positive limit returns everything.
func (s *Store) Events(limit int) ([]events.Record, error) {
	var records []events.Record

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(eventsBucket)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if limit > 0 && len(records) >= limit {
				break
			}
			var rec events.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // Skip malformed records
			}
			records = append(records, rec)
		}
		return nil
	})

	return records, err
}

// EventCount returns the number of stored event records.
func (s *Store) EventCount() (int, error) {
	count := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket([]byte(eventsBucket)).Stats().KeyN
		return nil
	})
	return count, err
}

// StorePrediction appends a served prediction to the audit log.
func (s *Store) StorePrediction(rec PredictionRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal prediction: %w", err)
		}

		key := fmt.Sprintf("%020d_%s", rec.At.UnixNano(), rec.RequestID)
		return b.Put([]byte(key), data)
	})
}

// Predictions returns audit-log entries in the given time range, inclusive.
func (s *Store) Predictions(start, end time.Time) ([]PredictionRecord, error) {
	var records []PredictionRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()

		startKey := []byte(fmt.Sprintf("%020d", start.UnixNano()))
		endKey := []byte(fmt.Sprintf("%020d", end.UnixNano()+1))

		for k, v := c.Seek(startKey); k != nil && string(k) < string(endKey); k, v = c.Next() {
			var rec PredictionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // Skip malformed records
			}
			records = append(records, rec)
		}
		return nil
	})

	return records, err
}
