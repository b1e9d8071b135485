package config

import "go.uber.org/fx"

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(provideSeasonalHolder),
)

func provideSeasonalHolder(cfg Config) (*SeasonalHolder, error) {
	return NewSeasonalHolder(cfg.Prediction.SeasonalConfigPath)
}
