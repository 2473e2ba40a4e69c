package generation

import (
	"database/sql"
	"sync"

	_ "github.com/glebarez/go-sqlite"
)

type SQLiteStore struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteStore creates a new store with the given filename as the db.
// If file name is empty, a new in-memory db is opened.
func NewSQLiteStore(filename string) SQLiteStore {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS generations (
		id TEXT PRIMARY KEY
	)`)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS entries (
		generation TEXT,
		key TEXT,
		bytes BLOB,
		PRIMARY KEY (generation, key)
	)`)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec("CREATE INDEX IF NOT EXISTS entries_generation_idx ON entries (generation)")
	if err != nil {
		panic(err)
	}
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		panic(err)
	}
	return SQLiteStore{
		db:         db,
		writeMutex: &sync.Mutex{},
	}
}

func (s SQLiteStore) Open(generation string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("INSERT OR IGNORE INTO generations (id) VALUES (?)", generation)
	return err
}

func (s SQLiteStore) Put(generation, key string, bytes []byte) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	if _, err := s.db.Exec("INSERT OR IGNORE INTO generations (id) VALUES (?)", generation); err != nil {
		return err
	}
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO entries (generation, key, bytes) VALUES (?, ?, ?)",
		generation, key, bytes)
	return err
}

func (s SQLiteStore) Get(generation, key string) ([]byte, bool, error) {
	var bytes []byte
	err := s.db.QueryRow(
		"SELECT bytes FROM entries WHERE generation = ? AND key = ?",
		generation, key).Scan(&bytes)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return bytes, true, nil
}

func (s SQLiteStore) Has(generation, key string) bool {
	var one int
	err := s.db.QueryRow(
		"SELECT 1 FROM entries WHERE generation = ? AND key = ?",
		generation, key).Scan(&one)
	return err == nil
}

func (s SQLiteStore) Generations() ([]string, error) {
	ids := make([]string, 0)
	rows, err := s.db.Query("SELECT id FROM generations ORDER BY id")
	if err != nil {
		return ids, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s SQLiteStore) Delete(generation string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	if _, err := s.db.Exec("DELETE FROM entries WHERE generation = ?", generation); err != nil {
		return err
	}
	_, err := s.db.Exec("DELETE FROM generations WHERE id = ?", generation)
	return err
}
