package store

import "github.com/shaibs3/pagecache/internal/store/shared"

// Re-export shared types for convenience
type DbType = shared.DbType
type DbProviderConfig = shared.DbProviderConfig

// Re-export constants
const (
	DbTypeMemory   = shared.DbTypeMemory
	DbTypePostgres = shared.DbTypePostgres
	DbTypeSQLite   = shared.DbTypeSQLite
	DbTypeGorm     = shared.DbTypeGorm

	DefaultPageCap = shared.DefaultPageCap
)
