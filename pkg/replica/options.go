package replica

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config controls the anti-entropy engine timers and bounds.
type Config struct {
	// Name identifies the replica as an endpoint. Required.
	Name string `yaml:"name"`

	// ShipInterval is the cadence of the try-ship tick.
	ShipInterval time.Duration `yaml:"shipInterval"`

	// ShipDebounce is how long a ship is deferred after a try-ship tick so
	// bursts of mutations coalesce into one shipment.
	ShipDebounce time.Duration `yaml:"shipDebounce"`

	// GCInterval is the cadence of delta-buffer garbage collection.
	GCInterval time.Duration `yaml:"gcInterval"`

	// ShipBacklogMax bounds the unshipped backlog: once a deferred ship's
	// snapshot is more than this far past the last ship, it fires even if the
	// system has not quiesced.
	ShipBacklogMax uint64 `yaml:"shipBacklogMax"`

	// InboxSize is the actor inbox capacity.
	InboxSize int `yaml:"inboxSize"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		ShipInterval:   50 * time.Millisecond,
		ShipDebounce:   10 * time.Millisecond,
		GCInterval:     10 * time.Second,
		ShipBacklogMax: 1000,
		InboxSize:      1024,
	}
}

// LoadConfig reads a yaml config file, filling unset fields with defaults.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg.withDefaults(), nil
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ShipInterval <= 0 {
		c.ShipInterval = def.ShipInterval
	}
	if c.ShipDebounce <= 0 {
		c.ShipDebounce = def.ShipDebounce
	}
	if c.GCInterval <= 0 {
		c.GCInterval = def.GCInterval
	}
	if c.ShipBacklogMax == 0 {
		c.ShipBacklogMax = def.ShipBacklogMax
	}
	if c.InboxSize <= 0 {
		c.InboxSize = def.InboxSize
	}
	return c
}

// Notify names an endpoint to signal after each successful outbound ship.
type Notify struct {
	Target  Endpoint
	Payload any
}

// Option adjusts replica construction.
type Option func(*settings)

type settings struct {
	cfg    Config
	notify *Notify
	log    *zap.Logger
}

// WithName sets the replica name.
func WithName(name string) Option {
	return func(s *settings) {
		s.cfg.Name = name
	}
}

// WithConfig replaces the whole configuration. Unset fields fall back to
// defaults.
func WithConfig(cfg Config) Option {
	return func(s *settings) {
		name := s.cfg.Name
		s.cfg = cfg
		if s.cfg.Name == "" {
			s.cfg.Name = name
		}
	}
}

// WithShipInterval sets the try-ship tick cadence.
func WithShipInterval(d time.Duration) Option {
	return func(s *settings) {
		s.cfg.ShipInterval = d
	}
}

// WithShipDebounce sets the coalescing delay between a try-ship tick and its
// deferred ship.
func WithShipDebounce(d time.Duration) Option {
	return func(s *settings) {
		s.cfg.ShipDebounce = d
	}
}

// WithGCInterval sets the delta GC cadence.
func WithGCInterval(d time.Duration) Option {
	return func(s *settings) {
		s.cfg.GCInterval = d
	}
}

// WithShipBacklogMax sets the force-ship backlog bound.
func WithShipBacklogMax(n uint64) Option {
	return func(s *settings) {
		s.cfg.ShipBacklogMax = n
	}
}

// WithNotify signals target with payload after each successful ship.
func WithNotify(target Endpoint, payload any) Option {
	return func(s *settings) {
		s.notify = &Notify{Target: target, Payload: payload}
	}
}

// WithLogger sets the replica logger. Defaults to zap.L().
func WithLogger(log *zap.Logger) Option {
	return func(s *settings) {
		s.log = log
	}
}
