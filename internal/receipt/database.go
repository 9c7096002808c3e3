package receipt

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/zombor/receipt-clerk/internal/expense"
)

const (
	receiptsBucket    = "receipts"
	correctionsBucket = "corrections"
)

// ErrNotFound is returned when a receipt or correction does not exist
var ErrNotFound = errors.New("not found")

// DB defines the interface for database operations
type DB interface {
	// SaveReceipt saves a receipt to the database
	SaveReceipt(receipt *expense.Receipt) error

	// GetReceipt retrieves a receipt by ID
	GetReceipt(id string) (*expense.Receipt, error)

	// ListReceipts returns all receipts
	ListReceipts() ([]*expense.Receipt, error)

	// DeleteReceipt removes a receipt from the database
	DeleteReceipt(id string) error

	// SaveCorrection stores a correction, replacing any for the same raw name and store
	SaveCorrection(correction *expense.Correction) error

	// LookupCorrection returns the product name for a raw name at a store
	LookupCorrection(rawName, store string) (string, bool, error)

	// ListCorrections returns all corrections
	ListCorrections() ([]*expense.Correction, error)

	// DeleteCorrection removes a correction
	DeleteCorrection(rawName, store string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{receiptsBucket, correctionsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
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

// put marshals v as JSON under key in bucket
func (b *BoltDB) put(bucket, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", bucket, err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Put([]byte(key), data)
	})
}

// get unmarshals the value under key in bucket into v
func (b *BoltDB) get(bucket, key string, v interface{}) (bool, error) {
	found := false
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucket)).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, v)
	})
	return found, err
}

// SaveReceipt saves a receipt to the database
func (b *BoltDB) SaveReceipt(receipt *expense.Receipt) error {
	if receipt.ID == "" {
		return fmt.Errorf("receipt id is required")
	}
	return b.put(receiptsBucket, receipt.ID, receipt)
}

// GetReceipt retrieves a receipt by ID
func (b *BoltDB) GetReceipt(id string) (*expense.Receipt, error) {
	var receipt expense.Receipt
	found, err := b.get(receiptsBucket, id, &receipt)
	if err != nil {
		return nil, fmt.Errorf("unmarshaling receipt: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("receipt %s: %w", id, ErrNotFound)
	}
	return &receipt, nil
}

// ListReceipts returns all receipts
func (b *BoltDB) ListReceipts() ([]*expense.Receipt, error) {
	receipts := make([]*expense.Receipt, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(receiptsBucket)).ForEach(func(k, v []byte) error {
			var receipt expense.Receipt
			if err := json.Unmarshal(v, &receipt); err != nil {
				return fmt.Errorf("unmarshaling receipt %s: %w", k, err)
			}
			receipts = append(receipts, &receipt)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

// DeleteReceipt removes a receipt from the database
func (b *BoltDB) DeleteReceipt(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptsBucket))
		if bucket.Get([]byte(id)) == nil {
			return fmt.Errorf("receipt %s: %w", id, ErrNotFound)
		}
		return bucket.Delete([]byte(id))
	})
}

// SaveCorrection stores a correction keyed by raw name and store
func (b *BoltDB) SaveCorrection(correction *expense.Correction) error {
	return b.put(correctionsBucket, expense.CorrectionKey(correction.RawName, correction.Store), correction)
}

// LookupCorrection returns the product name for a raw name at a store
func (b *BoltDB) LookupCorrection(rawName, store string) (string, bool, error) {
	var correction expense.Correction
	found, err := b.get(correctionsBucket, expense.CorrectionKey(rawName, store), &correction)
	if err != nil {
		return "", false, fmt.Errorf("unmarshaling correction: %w", err)
	}
	if !found {
		return "", false, nil
	}
	return correction.ProductName, true, nil
}

// ListCorrections returns all corrections ordered by key
func (b *BoltDB) ListCorrections() ([]*expense.Correction, error) {
	corrections := make([]*expense.Correction, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(correctionsBucket)).ForEach(func(k, v []byte) error {
			var correction expense.Correction
			if err := json.Unmarshal(v, &correction); err != nil {
				return fmt.Errorf("unmarshaling correction %s: %w", k, err)
			}
			corrections = append(corrections, &correction)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return corrections, nil
}

// DeleteCorrection removes a correction
func (b *BoltDB) DeleteCorrection(rawName, store string) error {
	key := []byte(expense.CorrectionKey(rawName, store))
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(correctionsBucket))
		if bucket.Get(key) == nil {
			return fmt.Errorf("correction %s: %w", key, ErrNotFound)
		}
		return bucket.Delete(key)
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
