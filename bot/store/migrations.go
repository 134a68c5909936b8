package store

import "embed"

// Migrations holds the schema for PostgresStore, applied at startup.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations holding the SQL files.
const MigrationsDir = "migrations"
