package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks that all required fields are set and values are valid.
// An empty stream.url is allowed; the command line may supply it.
func (c *Config) Validate() error {
	if c.Stream.URL != "" {
		if err := ValidateURL(c.Stream.URL); err != nil {
			return err
		}
	}

	switch c.Stream.Transport {
	case "auto", "sse", "websocket":
	default:
		return fmt.Errorf("stream.transport must be auto, sse or websocket, got %q", c.Stream.Transport)
	}
	if c.Stream.ReadBufferSize < 1 {
		return errors.New("stream.read_buffer_size must be >= 1")
	}
	if c.Stream.OpenTimeout < 0 {
		return errors.New("stream.open_timeout must be >= 0")
	}
	if c.Stream.MaxPendingFrame < 0 {
		return errors.New("stream.max_pending_frame must be >= 0")
	}

	if c.Archive.Enabled {
		switch c.Archive.Driver {
		case "postgres":
			if err := c.Archive.Database.validate("archive.database"); err != nil {
				return err
			}
		case "sqlite":
			if c.Archive.SQLitePath == "" {
				return errors.New("archive.sqlite_path is required")
			}
		default:
			return fmt.Errorf("archive.driver must be postgres or sqlite, got %q", c.Archive.Driver)
		}
		if c.Archive.BatchSize < 1 {
			return errors.New("archive.batch_size must be >= 1")
		}
		if c.Archive.BufferSize < 1 {
			return errors.New("archive.buffer_size must be >= 1")
		}
		if c.Archive.FlushInterval <= 0 {
			return errors.New("archive.flush_interval must be > 0")
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

// ValidateURL checks that u is an absolute http, https, ws or wss URL.
func ValidateURL(u string) error {
	parsed, err := url.Parse(u)
	if err != nil {
		return fmt.Errorf("stream.url: %w", err)
	}
	switch parsed.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("stream.url scheme must be http, https, ws or wss, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("stream.url host is required")
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
