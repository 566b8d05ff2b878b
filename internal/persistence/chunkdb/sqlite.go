package chunkdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"voxelnav.ai/internal/nav/terrain"
)

// Store caches observed chunk columns per world so a restarted bot can plan
// through terrain it has already seen. Writes are queued and applied by a
// single goroutine; a full queue drops the write.
type Store struct {
	db    *sql.DB
	world string

	ch   chan putReq
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

type putReq struct {
	key    terrain.ChunkKey
	height int
	data   string
}

// OpenSQLite opens (or creates) the cache at path. world namespaces the rows,
// typically the server URL plus seed.
func OpenSQLite(path, world string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db:    db,
		world: world,
		ch:    make(chan putReq, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			world TEXT NOT NULL,
			cx INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			height INTEGER NOT NULL,
			data TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (world, cx, cz)
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Dropped counts writes lost to a full queue.
func (s *Store) Dropped() uint64 { return s.dropped.Load() }

// Put queues a column for storage. It never blocks.
func (s *Store) Put(key terrain.ChunkKey, ids []uint16) {
	if s == nil || s.closed.Load() {
		return
	}
	height := len(ids) / (terrain.ChunkSize * terrain.ChunkSize)
	if height == 0 || height*terrain.ChunkSize*terrain.ChunkSize != len(ids) {
		return
	}
	select {
	case s.ch <- putReq{key: key, height: height, data: terrain.EncodeColumn(ids)}:
	default:
		s.dropped.Add(1)
	}
}

// LoadAll returns every cached column of this world with the given height.
// Rows that fail to decode are skipped.
func (s *Store) LoadAll(ctx context.Context, height int) (map[terrain.ChunkKey][]uint16, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT cx, cz, data FROM chunks WHERE world = ? AND height = ?`, s.world, height)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	want := terrain.ChunkSize * terrain.ChunkSize * height
	out := map[terrain.ChunkKey][]uint16{}
	for rows.Next() {
		var (
			key  terrain.ChunkKey
			data string
		)
		if err := rows.Scan(&key.CX, &key.CZ, &data); err != nil {
			return nil, err
		}
		ids, err := terrain.DecodeColumn(data, want)
		if err != nil {
			continue
		}
		out[key] = ids
	}
	return out, rows.Err()
}

// LoadInto fills store with cached columns it does not already hold.
func (s *Store) LoadInto(ctx context.Context, store *terrain.ChunkStore) (int, error) {
	cols, err := s.LoadAll(ctx, store.Height())
	if err != nil {
		return 0, err
	}
	n := 0
	for key, ids := range cols {
		if store.Loaded(key) {
			continue
		}
		if err := store.SetColumn(key, ids); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *Store) loop() {
	ctx := context.Background()
	upsert, _ := s.db.Prepare(`INSERT OR REPLACE INTO chunks(world,cx,cz,height,data,updated_at) VALUES(?,?,?,?,?,?)`)

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil || upsert == nil {
			continue
		}
		now := time.Now().UTC().Format(time.RFC3339Nano)
		if _, err := tx.Stmt(upsert).Exec(s.world, r.key.CX, r.key.CZ, r.height, r.data, now); err != nil {
			rollback()
			continue
		}
		opCount++
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
		// Commit whenever the queue drains.
		if len(s.ch) == 0 {
			commit()
		}
	}

	commit()
	if upsert != nil {
		_ = upsert.Close()
	}
}
