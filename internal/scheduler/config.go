package scheduler

import (
	"time"

	"github.com/smallbiznis/harvestprice/internal/config"
)

// Config controls job schedules and run budgets.
type Config struct {
	Enabled            bool
	RefreshSpec        string
	PruneSpec          string
	TrackedCommodities []string
	Retention          time.Duration
	RefreshTimeout     time.Duration
	PruneTimeout       time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:            true,
		RefreshSpec:        "0 */6 * * *",
		PruneSpec:          "30 3 * * *",
		TrackedCommodities: append([]string(nil), config.DefaultTrackedCommodities...),
		RefreshTimeout:     5 * time.Minute,
		PruneTimeout:       2 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:            cfg.Scheduler.Enabled,
		RefreshSpec:        cfg.Scheduler.RefreshCron,
		PruneSpec:          cfg.Scheduler.PruneCron,
		TrackedCommodities: cfg.Scheduler.TrackedCommodities,
		Retention:          time.Duration(cfg.History.RetentionDays) * 24 * time.Hour,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RefreshSpec == "" {
		c.RefreshSpec = defaults.RefreshSpec
	}
	if c.PruneSpec == "" {
		c.PruneSpec = defaults.PruneSpec
	}
	if len(c.TrackedCommodities) == 0 {
		c.TrackedCommodities = defaults.TrackedCommodities
	}
	if c.RefreshTimeout <= 0 {
		c.RefreshTimeout = defaults.RefreshTimeout
	}
	if c.PruneTimeout <= 0 {
		c.PruneTimeout = defaults.PruneTimeout
	}
	return c
}
