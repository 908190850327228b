package app

import (
	"context"

	"go.uber.org/zap"

	"omnisearch/internal/infra/catalog"
)

// ValidateConfig validates the configuration at the provided path.
func (a *App) ValidateConfig(ctx context.Context, cfg ValidateConfig) error {
	catalogData, err := catalog.NewLoader(a.logger).Load(ctx, cfg.ConfigPath)
	if err != nil {
		return err
	}

	simulated := 0
	for _, spec := range catalogData.Tools {
		if spec.Simulated {
			simulated++
		}
	}
	a.logger.Info("configuration validated",
		zap.String("config", cfg.ConfigPath),
		zap.Int("tools", len(catalogData.Tools)),
		zap.Int("simulated", simulated),
		zap.Bool("reconnect", catalogData.Runtime.Reconnect.Enabled),
	)
	return nil
}
