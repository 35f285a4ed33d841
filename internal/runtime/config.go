package runtime

import "dario.cat/mergo"

// StorageKind selects which Storage backend Runtime constructs.
type StorageKind string

const (
	StorageMemory     StorageKind = "memory"
	StoragePersistent StorageKind = "persistent"
)

// DrainRetryConfig bounds the drain task's exponential backoff on
// storage append failure (spec.md §4.6).
type DrainRetryConfig struct {
	Attempts int `mapstructure:"attempts"`
	BaseMS   int `mapstructure:"base_ms"`
	MaxMS    int `mapstructure:"max_ms"`
}

// Config is the Runtime's full construction configuration (spec.md
// §4.6 "Configuration").
type Config struct {
	Storage StorageKind `mapstructure:"storage"`
	// Path is the SQLite file path, required when Storage is
	// StoragePersistent.
	Path string `mapstructure:"path"`

	BusCapacity int              `mapstructure:"bus_capacity"`
	DrainRetry  DrainRetryConfig `mapstructure:"drain_retry"`

	// AuthSecret is the shared HMAC secret for the reference HS256
	// capability validator (spec.md §6 "Environment / configuration").
	AuthSecret []byte `mapstructure:"-"`

	// Metrics is an optional observer wired by the embedding process
	// (e.g. cmd/tokad's prometheus registry). Nil becomes a no-op.
	Metrics Metrics `mapstructure:"-"`
}

// defaultConfig holds the normative defaults from spec.md §4.6.
func defaultConfig() Config {
	return Config{
		Storage:     StorageMemory,
		BusCapacity: 1024,
		DrainRetry: DrainRetryConfig{
			Attempts: 10,
			BaseMS:   50,
			MaxMS:    5000,
		},
	}
}

// withDefaults fills any zero-valued field of cfg from
// defaultConfig(), leaving every explicitly-set field untouched.
// Mirrors the teacher's config-defaulting idiom of overlaying a
// baseline onto partial user config via mergo (without WithOverride,
// so mergo only fills gaps rather than clobbering explicit values).
func withDefaults(cfg Config) (Config, error) {
	if err := mergo.Merge(&cfg, defaultConfig()); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
