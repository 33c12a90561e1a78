// Package database opens the PostgreSQL pool used by the Postgres archive.
package database
