// Package store persists fixed headers observed by the inspector, so a
// capture can be inspected after the fact.
package store

import (
	"encoding/binary"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/pkg/errors"
)

// Key layout:
//	"cnt" + packet type nibble   -> big-endian uint64 observation count
//	"hdr" + big-endian unix nano -> control byte + big-endian remaining length

type DiskStore struct {
	db *badger.DB
}

func NewDiskStore(dir string) (*DiskStore, error) {
	opts := badger.DefaultOptions
	opts.Dir, opts.ValueDir = dir, dir
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "error opening capture store")
	}

	return &DiskStore{db: db}, nil
}

func (s *DiskStore) Close() error {
	return s.db.Close()
}

// Record journals one observed fixed header and bumps the counter of
// its packet type.
func (s *DiskStore) Record(controlByte byte, remainingLength uint32) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := make([]byte, 0, 11)
		key = append(key, []byte("hdr")...)
		var ts [8]byte
		binary.BigEndian.PutUint64(ts[:], uint64(time.Now().UnixNano()))
		key = append(key, ts[:]...)

		val := make([]byte, 5)
		val[0] = controlByte
		binary.BigEndian.PutUint32(val[1:], remainingLength)
		if err := txn.Set(key, val); err != nil {
			return err
		}

		cntKey := []byte{'c', 'n', 't', controlByte >> 4}
		var count uint64
		item, err := txn.Get(cntKey)
		if err != nil {
			if err != badger.ErrKeyNotFound {
				return err
			}
		} else {
			v, err := item.Value()
			if err != nil {
				return err
			}
			count = binary.BigEndian.Uint64(v)
		}

		var cv [8]byte
		binary.BigEndian.PutUint64(cv[:], count+1)
		return txn.Set(cntKey, cv[:])
	})
}

// Counts returns the observation count per packet type, indexed by the
// 4-bit type code.
func (s *DiskStore) Counts() ([16]uint64, error) {
	var counts [16]uint64
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("cnt")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			k := item.Key()
			val, err := item.Value()
			if err != nil {
				return err
			}
			counts[k[3]&0x0F] = binary.BigEndian.Uint64(val)
		}
		return nil
	})

	return counts, err
}

// Replay iterates the header journal in capture order.
func (s *DiskStore) Replay(iter func(at time.Time, controlByte byte, remainingLength uint32)) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("hdr")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			k := item.Key()
			val, err := item.Value()
			if err != nil {
				return err
			}

			at := time.Unix(0, int64(binary.BigEndian.Uint64(k[3:])))
			iter(at, val[0], binary.BigEndian.Uint32(val[1:]))
		}
		return nil
	})
}
