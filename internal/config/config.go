// Package config loads the engine's tunables from YAML, applying the
// defaults from spec section 6 wherever a key is absent. Modeled after
// chycee-CryptoGo's internal/infra/config.go: a plain struct with yaml
// tags, a loader that starts from defaults and unmarshals over them.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full set of options recognized by the engine.
type Config struct {
	TickIntervalMS int64 `yaml:"tick_interval_ms"`
	QueueCapacity  int   `yaml:"queue_capacity"`
	WorkerPoolSize int   `yaml:"worker_pool_size"`
	MaxRetries     int   `yaml:"max_retries"`
	RetryDelayMS   int64 `yaml:"retry_delay_ms"`

	Drift           float64 `yaml:"drift"`
	Volatility      float64 `yaml:"volatility"`
	TimeStep        float64 `yaml:"dt"`
	BaseAdjustment  float64 `yaml:"base_adjustment"`
	PressureFactor  float64 `yaml:"pressure_factor"`
	TimeWindowMS    int64   `yaml:"time_window_ms"`
	StartingBalance float64 `yaml:"starting_balance"`
	PriceFloor      float64 `yaml:"price_floor"`

	// CandleTicks folds a rolling OHLC window into broadcast snapshots
	// every N ticks; see SPEC_FULL.md's candle-rollup supplement.
	CandleTicks int64 `yaml:"candle_ticks"`

	// RequestTimeoutMS bounds a dispatcher round-trip to a worker.
	RequestTimeoutMS int64 `yaml:"request_timeout_ms"`

	// Items lists the instruments spawned at startup. spec section 5's
	// spawn(item_id, initial_price) is otherwise only reachable from
	// inside the engine; this gives cmd/server something to call it with.
	Items []ItemSeed `yaml:"items"`
}

// ItemSeed names one instrument to spawn at startup and the price its
// worker should start at.
type ItemSeed struct {
	ItemID       string  `yaml:"item_id"`
	InitialPrice float64 `yaml:"initial_price"`
}

// Default returns the section-6 default configuration.
func Default() Config {
	return Config{
		TickIntervalMS:   50,
		QueueCapacity:    1000,
		WorkerPoolSize:   4,
		MaxRetries:       3,
		RetryDelayMS:     100,
		Drift:            0.08,
		Volatility:       0.2,
		TimeStep:         1.0 / 252.0,
		BaseAdjustment:   0.01,
		PressureFactor:   1.0,
		TimeWindowMS:     60000,
		StartingBalance:  100000,
		PriceFloor:       0.01,
		CandleTicks:      20,
		RequestTimeoutMS: 5000,
		Items: []ItemSeed{
			{ItemID: "BTC", InitialPrice: 50000},
		},
	}
}

// Load reads a YAML file at path and overlays it onto the defaults. A
// missing file is not an error: the caller gets defaults back untouched,
// matching the teacher's forgiving startup posture for optional config.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
