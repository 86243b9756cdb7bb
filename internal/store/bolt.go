package store

import (
	"context"
	"encoding/binary"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketKV          = []byte("kv")
	bucketDeadLetters = []byte("dead-letters")
)

// BoltStore keeps guest data in a local bbolt file. Dead letters are keyed
// by a sequence number so iteration order is insertion order.
type BoltStore struct {
	db        *bolt.DB
	bktKV     []byte
	bktLetter []byte
}

func OpenBolt(path, prefix string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	s := &BoltStore{
		db:        db,
		bktKV:     []byte(prefix + string(bucketKV)),
		bktLetter: []byte(prefix + string(bucketDeadLetters)),
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, e := tx.CreateBucketIfNotExists(s.bktKV); e != nil {
			return e
		}
		if _, e := tx.CreateBucketIfNotExists(s.bktLetter); e != nil {
			return e
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) Close() error { return s.db.Close() }

func (s *BoltStore) Put(_ context.Context, key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bktKV).Put([]byte(key), []byte(value))
	})
}

func (s *BoltStore) Get(_ context.Context, key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bktKV).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		value = string(v)
		return nil
	})
	return value, err
}

func (s *BoltStore) PutDeadLetter(_ context.Context, id string, record []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bktLetter)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		// key: 8-byte sequence followed by the record id
		key := binary.BigEndian.AppendUint64(nil, seq)
		key = append(key, id...)
		return b.Put(key, record)
	})
}

// DeadLetters returns up to limit records, newest first.
func (s *BoltStore) DeadLetters(_ context.Context, limit int) ([]DeadLetter, error) {
	var out []DeadLetter
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bktLetter).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			out = append(out, DeadLetter{
				ID:     string(k[8:]),
				Record: append([]byte(nil), v...),
			})
		}
		return nil
	})
	return out, err
}
