package config

import "time"

// Config is the root configuration for ssewatch.
type Config struct {
	Stream  StreamConfig  `yaml:"stream" toml:"stream"`
	Auth    AuthConfig    `yaml:"auth" toml:"auth"`
	Archive ArchiveConfig `yaml:"archive" toml:"archive"`
	Log     LogConfig     `yaml:"log" toml:"log"`
}

// StreamConfig holds the stream connection settings.
type StreamConfig struct {
	URL              string        `yaml:"url" toml:"url"`
	Transport        string        `yaml:"transport" toml:"transport"` // auto, sse or websocket
	Charset          string        `yaml:"charset" toml:"charset"`     // overrides the response charset
	ReadBufferSize   int           `yaml:"read_buffer_size" toml:"read_buffer_size"`
	OpenTimeout      time.Duration `yaml:"open_timeout" toml:"open_timeout"`
	ReassembleFrames *bool         `yaml:"reassemble_frames" toml:"reassemble_frames"`
	MaxPendingFrame  int           `yaml:"max_pending_frame" toml:"max_pending_frame"`
}

// AuthConfig holds the bearer token settings. Token wins over TokenPath.
type AuthConfig struct {
	Token     string `yaml:"token" toml:"token"`
	TokenPath string `yaml:"token_path" toml:"token_path"`
}

// ArchiveConfig holds the message archive settings.
type ArchiveConfig struct {
	Enabled       bool          `yaml:"enabled" toml:"enabled"`
	Driver        string        `yaml:"driver" toml:"driver"` // postgres or sqlite
	SQLitePath    string        `yaml:"sqlite_path" toml:"sqlite_path"`
	Database      DBConfig      `yaml:"database" toml:"database"`
	BatchSize     int           `yaml:"batch_size" toml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval" toml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size" toml:"buffer_size"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	Name     string `yaml:"name" toml:"name"`
	User     string `yaml:"user" toml:"user"`
	Password string `yaml:"password" toml:"password"`
	SSLMode  string `yaml:"ssl_mode" toml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns" toml:"max_conns"`
	MinConns int    `yaml:"min_conns" toml:"min_conns"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug, info, warn or error
	Format string `yaml:"format" toml:"format"` // text or json
}

// Reassemble reports whether unterminated frames are carried across reads.
func (s StreamConfig) Reassemble() bool {
	return s.ReassembleFrames == nil || *s.ReassembleFrames
}
