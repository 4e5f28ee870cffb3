package store

import (
	"encoding/json"
	"fmt"

	"github.com/shaibs3/pagecache/internal/store/postgres"
	"github.com/shaibs3/pagecache/internal/store/shared"

	"github.com/shaibs3/pagecache/internal/telemetry"
	"go.uber.org/zap"
)

// ProviderFactory defines the interface for creating database providers
type ProviderFactory interface {
	CreateProvider(configJSON string) (DbProvider, error)
}

// DbProviderFactory implements ProviderFactory for creating database providers
type DbProviderFactory struct {
	logger    *zap.Logger
	telemetry *telemetry.Telemetry
}

func NewDbProviderFactory(logger *zap.Logger, tel *telemetry.Telemetry) *DbProviderFactory {
	return &DbProviderFactory{
		logger:    logger.Named("factory"),
		telemetry: tel,
	}
}

// CreateProvider builds the provider described by configJSON; an empty config means memory
func (f *DbProviderFactory) CreateProvider(configJSON string) (DbProvider, error) {
	var config shared.DbProviderConfig
	if configJSON == "" {
		config = shared.DbProviderConfig{DbType: shared.DbTypeMemory, ExtraDetails: map[string]interface{}{}}
	} else if err := json.Unmarshal([]byte(configJSON), &config); err != nil {
		return nil, fmt.Errorf("failed to parse database configuration JSON: %w", err)
	}

	// extra_details may carry credentials, so only the type is logged
	f.logger.Info("creating database provider", zap.String("db_type", config.DbType.String()))

	// Validate database type
	if !config.DbType.IsValid() {
		return nil, fmt.Errorf("unsupported database type: %s", config.DbType)
	}

	var metrics *telemetry.Metrics
	if f.telemetry != nil {
		metrics = f.telemetry.Metrics
	}

	switch config.DbType {
	case shared.DbTypePostgres, shared.DbTypeSQLite:
		return NewSQLProvider(config, f.logger, metrics)
	case shared.DbTypeGorm:
		return postgres.NewPostgresProvider(config, f.logger, metrics)
	case shared.DbTypeMemory:
		pageCap, err := config.PageCap()
		if err != nil {
			return nil, err
		}
		f.logger.Info("Using InMemoryProvider for DB", zap.Int("page_cap", pageCap))
		return NewInMemoryProviderWithCap(pageCap), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.DbType)
	}
}
