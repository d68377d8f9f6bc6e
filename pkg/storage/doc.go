// Package storage provides the key-value backends the cart persists to.
//
// The KV interface has one Get and one Set per key, each
// value replaced in full on write.
//
//	kv := storage.NewMemoryStore()
//	// or
//	kv, err := storage.NewFileStore("/var/lib/gomarketplace")
//	// or
//	kv := storage.NewRedisStore(redis.NewClient(opts))
//	// or
//	kv := storage.NewSQLStore(db, storage.WithSQLDialect(storage.DialectPostgreSQL))
//	// or
//	kv := storage.NewS3Store(s3Client, "bucket", "carts/")
//
// Missing keys are reported as found == false with a nil error. Backends
// never close the clients or database handles passed to them.
package storage
