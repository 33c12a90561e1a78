// Package config loads ssewatch configuration from YAML or TOML files.
//
// ${VAR} references are expanded from the environment before parsing, so
// secrets such as the database password or the stream token stay out of the
// file:
//
//	stream:
//	  url: https://example.com/events
//	auth:
//	  token: ${STREAM_TOKEN}
package config
