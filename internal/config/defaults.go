package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultTransport      = "auto"
	DefaultReadBufferSize = 32 * 1024
	DefaultOpenTimeout    = 30 * time.Second
	DefaultArchiveDriver  = "sqlite"
	DefaultSQLitePath     = "ssewatch.db"
	DefaultDBPort         = 5432
	DefaultDBSSLMode      = "prefer"
	DefaultMaxConns       = 10
	DefaultMinConns       = 2
	DefaultBatchSize      = 500
	DefaultFlushInterval  = 1 * time.Second
	DefaultBufferSize     = 10000
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
)

func (c *Config) applyDefaults() {
	// Stream defaults
	if c.Stream.Transport == "" {
		c.Stream.Transport = DefaultTransport
	}
	if c.Stream.ReadBufferSize == 0 {
		c.Stream.ReadBufferSize = DefaultReadBufferSize
	}
	if c.Stream.OpenTimeout == 0 {
		c.Stream.OpenTimeout = DefaultOpenTimeout
	}

	// Archive defaults
	if c.Archive.Driver == "" {
		c.Archive.Driver = DefaultArchiveDriver
	}
	if c.Archive.SQLitePath == "" {
		c.Archive.SQLitePath = DefaultSQLitePath
	}
	if c.Archive.BatchSize == 0 {
		c.Archive.BatchSize = DefaultBatchSize
	}
	if c.Archive.FlushInterval == 0 {
		c.Archive.FlushInterval = DefaultFlushInterval
	}
	if c.Archive.BufferSize == 0 {
		c.Archive.BufferSize = DefaultBufferSize
	}
	applyDBDefaults(&c.Archive.Database)

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
