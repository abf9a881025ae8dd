// Package storage persists whole state objects under a caller-supplied key.
//
// The TextStore interface is the storage medium: a key to text map. Several
// backends are provided:
//
//	store := storage.NewMemoryStore()           // process-wide, default
//	store, _ := storage.NewFileStore(dir)       // one JSON file per key
//	store := storage.NewSQLStore(db)            // PostgreSQL, MySQL, SQLite
//	store := storage.NewS3Store(client, bucket) // one object per key
//
// The Adapter sits on top of a medium and speaks in state objects. It
// never surfaces read failures: corrupt text or an unavailable medium read
// as "nothing stored".
//
//	adapter := storage.NewAdapter(store, logger)
//	state, ok := adapter.Read(ctx, "thread-calculator")
//	err := adapter.Write(ctx, "thread-calculator", state)
package storage
