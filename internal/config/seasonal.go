package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// SeasonalFactors maps a commodity to twelve monthly price multipliers, January first.
type SeasonalFactors struct {
	Default     []float64            `mapstructure:"default"`
	Commodities map[string][]float64 `mapstructure:"commodities"`
}

func DefaultSeasonalFactors() SeasonalFactors {
	return SeasonalFactors{
		Default: neutralFactors(),
		Commodities: map[string][]float64{
			"tomato": {1.2, 1.15, 1.0, 0.9, 0.85, 0.95, 1.1, 1.15, 1.1, 1.0, 0.95, 1.1},
			"carrot": {0.9, 0.95, 1.0, 1.05, 1.1, 1.05, 1.0, 0.95, 0.9, 0.9, 0.95, 0.9},
			"potato": neutralFactors(),
			"onion":  {1.1, 1.15, 1.2, 1.1, 1.0, 0.95, 0.9, 0.9, 0.95, 1.0, 1.05, 1.1},
		},
	}
}

func neutralFactors() []float64 {
	return []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
}

// Multiplier returns the factor for commodity in the given month.
func (f SeasonalFactors) Multiplier(commodity string, month time.Month) float64 {
	if month < time.January || month > time.December {
		return 1
	}
	factors, ok := f.Commodities[strings.ToLower(strings.TrimSpace(commodity))]
	if !ok {
		factors = f.Default
	}
	if len(factors) != 12 {
		return 1
	}
	return factors[int(month)-1]
}

// SeasonalHolder serves the current seasonal table and reloads it when the
// backing file changes.
type SeasonalHolder struct {
	current atomic.Value // holds SeasonalFactors
}

// NewSeasonalHolder loads seasonal.yml from path, or from the standard config
// directories when path is empty. Built-in defaults apply when no file exists.
func NewSeasonalHolder(path string) (*SeasonalHolder, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("seasonal")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/harvestprice")
		v.AddConfigPath(".")
	}

	defaults := DefaultSeasonalFactors()
	loaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("read seasonal config: %w", err)
		}
		loaded = false
	}

	holder := &SeasonalHolder{}
	if !loaded {
		holder.current.Store(defaults)
		return holder, nil
	}

	cfg, err := decodeSeasonal(v, defaults)
	if err != nil {
		return nil, err
	}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeSeasonal(v, defaults)
		if err != nil {
			log.Printf("[seasonal-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[seasonal-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticSeasonalHolder wraps a fixed table.
func NewStaticSeasonalHolder(factors SeasonalFactors) *SeasonalHolder {
	holder := &SeasonalHolder{}
	holder.current.Store(factors)
	return holder
}

func (h *SeasonalHolder) Get() SeasonalFactors {
	return h.current.Load().(SeasonalFactors)
}

func (h *SeasonalHolder) Multiplier(commodity string, month time.Month) float64 {
	return h.Get().Multiplier(commodity, month)
}

func decodeSeasonal(v *viper.Viper, defaults SeasonalFactors) (SeasonalFactors, error) {
	var cfg SeasonalFactors
	if err := v.UnmarshalKey("seasonal", &cfg); err != nil {
		return SeasonalFactors{}, err
	}
	if len(cfg.Default) == 0 {
		cfg.Default = defaults.Default
	}
	if cfg.Commodities == nil {
		cfg.Commodities = map[string][]float64{}
	}
	if err := validateSeasonal(cfg); err != nil {
		return SeasonalFactors{}, err
	}
	return cfg, nil
}

func validateSeasonal(cfg SeasonalFactors) error {
	if err := validateFactors("default", cfg.Default); err != nil {
		return err
	}
	for name, factors := range cfg.Commodities {
		if err := validateFactors(name, factors); err != nil {
			return err
		}
	}
	return nil
}

func validateFactors(name string, factors []float64) error {
	if len(factors) != 12 {
		return fmt.Errorf("seasonal.%s must have 12 monthly factors, got %d", name, len(factors))
	}
	for i, f := range factors {
		if f <= 0 {
			return fmt.Errorf("seasonal.%s[%d] must be positive", name, i)
		}
	}
	return nil
}
