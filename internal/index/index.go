// Package index maps opaque file ids to their physical location.
//
// Entries live in a badger key/value store under "file:{id}". The store also
// hands out monotonic integer sequences used for registry ids.
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

var ErrNotFound = errors.New("index entry not found")

const filePrefix = "file:"

// Entry is the persisted location record of one stored file.
type Entry struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

type Index struct {
	db  *badger.DB
	log *logrus.Logger

	mu   sync.Mutex
	seqs map[string]*badger.Sequence
}

// Open opens the index stored in dir. An empty dir keeps the index in memory.
func Open(dir string, logger *logrus.Logger) (*Index, error) {
	if logger == nil {
		logger = logrus.New()
	}

	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	opts.ValueLogFileSize = 1024 * 1024 * 16

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"dir":      dir,
		"inMemory": dir == "",
	}).Info("file index opened")

	return &Index{db: db, log: logger, seqs: make(map[string]*badger.Sequence)}, nil
}

func (i *Index) Put(e Entry) error {
	if e.ID == "" {
		return errors.New("index entry id is required")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return i.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(filePrefix+e.ID), data)
	})
}

func (i *Index) Get(id string) (Entry, error) {
	var e Entry
	err := i.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(filePrefix + id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	return e, err
}

// Repoint moves every entry stored at oldPath to newPath and returns how many
// entries changed.
func (i *Index) Repoint(oldPath, newPath, newName string) (int, error) {
	changed := 0
	err := i.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		var updates []Entry
		prefix := []byte(filePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			if e.Path == oldPath {
				e.Path = newPath
				e.Name = newName
				updates = append(updates, e)
			}
		}

		for _, e := range updates {
			data, err := json.Marshal(e)
			if err != nil {
				return err
			}
			if err := txn.Set([]byte(filePrefix+e.ID), data); err != nil {
				return err
			}
		}
		changed = len(updates)
		return nil
	})
	return changed, err
}

// NextID returns the next value of the named sequence, starting at 1.
// Values are never handed out twice, even across restarts.
func (i *Index) NextID(name string) (uint64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	seq, ok := i.seqs[name]
	if !ok {
		var err error
		seq, err = i.db.GetSequence([]byte("seq:"+name), 1)
		if err != nil {
			return 0, fmt.Errorf("open sequence %s: %w", name, err)
		}
		i.seqs[name] = seq
	}

	n, err := seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next %s: %w", name, err)
	}
	return n + 1, nil
}

func (i *Index) Close() error {
	i.mu.Lock()
	for name, seq := range i.seqs {
		if err := seq.Release(); err != nil {
			i.log.WithError(err).WithField("sequence", name).Warn("failed to release sequence")
		}
	}
	i.seqs = map[string]*badger.Sequence{}
	i.mu.Unlock()
	return i.db.Close()
}
