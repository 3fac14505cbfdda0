// Package engineconfig holds tunable defaults for the task-graph engine
// and an optional YAML override file.
package engineconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default tunables. Values mirror the batch/watermark sizes named in the
// HSA-style runtime this engine's packet and signal pools are modeled on.
const (
	// KernargSlabSize is the size of one slab requested from a kernarg
	// region. Carved into equal-sized buckets, each a multiple of 16 bytes.
	KernargSlabSize = 4 * 1024

	// SignalBatchInterrupt is the batch size used when refilling the pool
	// of interrupt-capable (host-wakeable) signals.
	SignalBatchInterrupt = 4096

	// SignalBatchUser is the batch size used when refilling the pool of
	// GPU-only "user" signals, which are far cheaper to create.
	SignalBatchUser = 65536

	// MaxUnorderedQueues bounds how many serial queues the unordered
	// executor round-robins across.
	MaxUnorderedQueues = 64

	// QueueCapacity is the per-queue packet ring size, matching the
	// agent's maximum queue length. Must be a power of two.
	QueueCapacity = 4096
)

// Config is the subset of engine tunables that may be overridden from a
// YAML file. Unset fields keep their package-default value. The engine
// reads only KernargSlabSize and QueueCapacity from a Config; signal pools
// refill with the SignalBatch* constants and the unordered executor's
// fan-out is bounded by hwqueue.MaxUnorderedQueues, so the other fields
// do not change engine behavior.
type Config struct {
	KernargSlabSize      int `yaml:"kernarg_slab_size"`
	SignalBatchInterrupt int `yaml:"signal_batch_interrupt"`
	SignalBatchUser      int `yaml:"signal_batch_user"`
	MaxUnorderedQueues   int `yaml:"max_unordered_queues"`
	QueueCapacity        int `yaml:"queue_capacity"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		KernargSlabSize:      KernargSlabSize,
		SignalBatchInterrupt: SignalBatchInterrupt,
		SignalBatchUser:      SignalBatchUser,
		MaxUnorderedQueues:   MaxUnorderedQueues,
		QueueCapacity:        QueueCapacity,
	}
}

// Load reads a YAML config file and layers it over Default(). A missing
// file is not an error — callers get the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read engine config %s: %w", path, err)
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return cfg, fmt.Errorf("parse engine config %s: %w", path, err)
	}

	if override.KernargSlabSize > 0 {
		cfg.KernargSlabSize = override.KernargSlabSize
	}
	if override.SignalBatchInterrupt > 0 {
		cfg.SignalBatchInterrupt = override.SignalBatchInterrupt
	}
	if override.SignalBatchUser > 0 {
		cfg.SignalBatchUser = override.SignalBatchUser
	}
	if override.MaxUnorderedQueues > 0 {
		cfg.MaxUnorderedQueues = override.MaxUnorderedQueues
	}
	if override.QueueCapacity > 0 {
		cfg.QueueCapacity = override.QueueCapacity
	}
	return cfg, nil
}
