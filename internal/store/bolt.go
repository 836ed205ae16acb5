// Package store persists records and statements in BoltDB.
package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/zombor/veripay/internal/receipt"
	"github.com/zombor/veripay/internal/reconcile"
)

var (
	recordsBucket      = []byte("records")
	reservationsBucket = []byte("reservations")
	statementsBucket   = []byte("statements")
)

// BoltDB implements receipt.Store and reconcile.StatementStore. bbolt
// allows one write transaction at a time, which makes Reserve atomic.
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens (or creates) the database file
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{recordsBucket, reservationsBucket, statementsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// Reserve claims an id for the lifetime of the database. Ids are never
// released, so a reserved id is never handed out twice.
func (b *BoltDB) Reserve(id string) (bool, error) {
	var reserved bool
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(reservationsBucket)
		if bucket.Get([]byte(id)) != nil {
			return nil
		}
		reserved = true
		return bucket.Put([]byte(id), []byte(time.Now().UTC().Format(time.RFC3339Nano)))
	})
	if err != nil {
		return false, fmt.Errorf("reserving %s: %w", id, err)
	}
	return reserved, nil
}

// Append stores a new record. Existing records are never overwritten.
func (b *BoltDB) Append(record *receipt.Record) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(recordsBucket)
		if bucket.Get([]byte(record.ID)) != nil {
			return fmt.Errorf("%w: %s", receipt.ErrRecordExists, record.ID)
		}
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshaling record: %w", err)
		}
		if err := tx.Bucket(reservationsBucket).Put([]byte(record.ID), []byte("appended")); err != nil {
			return err
		}
		return bucket.Put([]byte(record.ID), data)
	})
}

// GetRecord retrieves a record by ID
func (b *BoltDB) GetRecord(id string) (*receipt.Record, error) {
	var record *receipt.Record
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(recordsBucket).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", receipt.ErrNotFound, id)
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListRecords returns all records ordered by capture time
func (b *BoltDB) ListRecords() ([]*receipt.Record, error) {
	records := make([]*receipt.Record, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(recordsBucket).ForEach(func(k, v []byte) error {
			var record receipt.Record
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("unmarshaling record %s: %w", k, err)
			}
			records = append(records, &record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CapturedAt.Equal(records[j].CapturedAt) {
			return records[i].CapturedAt.Before(records[j].CapturedAt)
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

// SaveStatement stores a statement unless one with the same id exists.
// It reports whether the statement was new.
func (b *BoltDB) SaveStatement(statement *reconcile.Statement) (bool, error) {
	var created bool
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(statementsBucket)
		if bucket.Get([]byte(statement.ID)) != nil {
			return nil
		}
		data, err := json.Marshal(statement)
		if err != nil {
			return fmt.Errorf("marshaling statement: %w", err)
		}
		created = true
		return bucket.Put([]byte(statement.ID), data)
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// GetStatement retrieves a statement by ID
func (b *BoltDB) GetStatement(id string) (*reconcile.Statement, error) {
	var statement *reconcile.Statement
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(statementsBucket).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", reconcile.ErrStatementNotFound, id)
		}
		return json.Unmarshal(data, &statement)
	})
	if err != nil {
		return nil, err
	}
	return statement, nil
}

// ListStatements returns all statements ordered by upload time
func (b *BoltDB) ListStatements() ([]*reconcile.Statement, error) {
	statements := make([]*reconcile.Statement, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(statementsBucket).ForEach(func(k, v []byte) error {
			var statement reconcile.Statement
			if err := json.Unmarshal(v, &statement); err != nil {
				return fmt.Errorf("unmarshaling statement %s: %w", k, err)
			}
			statements = append(statements, &statement)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(statements, func(i, j int) bool {
		if !statements[i].UploadedAt.Equal(statements[j].UploadedAt) {
			return statements[i].UploadedAt.Before(statements[j].UploadedAt)
		}
		return statements[i].ID < statements[j].ID
	})
	return statements, nil
}

// Close closes the database
func (b *BoltDB) Close() error {
	return b.db.Close()
}
