package generation

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	generationMarkerPrefix = "g!"
	entryPrefix            = "e!"
	// separates the generation id from the entry key; never appears in either
	keySeparator = "\x1f"
)

// LevelDBStore persists generations in a LevelDB database on disk.
// Entries are stored under a per-generation key prefix so a whole
// generation can be removed with a single prefix scan.
type LevelDBStore struct {
	db *leveldb.DB
}

func NewLevelDBStore(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBStore{db: db}, nil
}

func (l *LevelDBStore) Close() error {
	return l.db.Close()
}

func (l *LevelDBStore) Open(generation string) error {
	return l.db.Put(markerKey(generation), []byte{}, nil)
}

func (l *LevelDBStore) Put(generation, key string, bytes []byte) error {
	if err := l.db.Put(markerKey(generation), []byte{}, nil); err != nil {
		return err
	}
	return l.db.Put(entryKey(generation, key), bytes, nil)
}

func (l *LevelDBStore) Get(generation, key string) ([]byte, bool, error) {
	bytes, err := l.db.Get(entryKey(generation, key), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return bytes, true, nil
}

func (l *LevelDBStore) Has(generation, key string) bool {
	ok, err := l.db.Has(entryKey(generation, key), nil)
	return err == nil && ok
}

func (l *LevelDBStore) Generations() ([]string, error) {
	ids := make([]string, 0)
	iter := l.db.NewIterator(util.BytesPrefix([]byte(generationMarkerPrefix)), nil)
	defer iter.Release()
	for iter.Next() {
		ids = append(ids, string(iter.Key()[len(generationMarkerPrefix):]))
	}
	return ids, iter.Error()
}

func (l *LevelDBStore) Delete(generation string) error {
	batch := new(leveldb.Batch)
	batch.Delete(markerKey(generation))
	iter := l.db.NewIterator(util.BytesPrefix([]byte(entryPrefix+generation+keySeparator)), nil)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return err
	}
	return l.db.Write(batch, nil)
}

func markerKey(generation string) []byte {
	return []byte(generationMarkerPrefix + generation)
}

func entryKey(generation, key string) []byte {
	return []byte(entryPrefix + generation + keySeparator + key)
}
