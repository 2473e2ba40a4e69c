package generation

import (
	"sort"
	"sync"
)

type MemoryStore struct {
	mutex *sync.RWMutex
	db    map[string]map[string][]byte
}

func NewMemoryStore() MemoryStore {
	return MemoryStore{
		mutex: &sync.RWMutex{},
		db:    make(map[string]map[string][]byte),
	}
}

func (m MemoryStore) Open(generation string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.db[generation]; !ok {
		m.db[generation] = make(map[string][]byte)
	}
	return nil
}

func (m MemoryStore) Put(generation, key string, bytes []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	entries, ok := m.db[generation]
	if !ok {
		entries = make(map[string][]byte)
		m.db[generation] = entries
	}
	entries[key] = bytes
	return nil
}

func (m MemoryStore) Get(generation, key string) ([]byte, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	entries, ok := m.db[generation]
	if !ok {
		return nil, false, nil
	}
	bytes, ok := entries[key]
	return bytes, ok, nil
}

func (m MemoryStore) Has(generation, key string) bool {
	_, ok, _ := m.Get(generation, key)
	return ok
}

func (m MemoryStore) Generations() ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	ids := make([]string, 0, len(m.db))
	for id := range m.db {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m MemoryStore) Delete(generation string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.db, generation)
	return nil
}
