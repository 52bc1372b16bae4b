// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads the static topology and runtime tuning knobs for a
// scheduler instance: per-cell antenna/UE counts, symbol layout, frame
// window size, NUMA worker placement, and retirement mode. Values come
// from an optional YAML file, with command-line flags overriding
// whatever the file specifies.
package config

import (
	"fmt"
	"os"

	"code.hybscloud.com/radiosched/counters"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// NUMANode lists the OS CPU ids available to workers pinned to one NUMA
// node, in the order they should be assigned.
type NUMANode struct {
	ID   int   `yaml:"id"`
	CPUs []int `yaml:"cpus"`
}

// Symbols describes one frame's symbol layout: which OFDM symbols carry
// pilots versus uplink/downlink data, independent of the counters
// package's flattened pilot/data totals.
type Symbols struct {
	Total       uint32 `yaml:"total"`
	PilotCount  uint32 `yaml:"pilot_count"`
	ULDataCount uint32 `yaml:"ul_data_count"`
}

// Config is the fully resolved configuration for one scheduler instance.
type Config struct {
	Window               uint32     `yaml:"window"`
	NumAntennas          uint32     `yaml:"num_antennas"`
	NumUEs               uint32     `yaml:"num_ues"`
	NumSCBlocks          uint32     `yaml:"num_sc_blocks"`
	NumDecodeTasks       uint32     `yaml:"num_decode_tasks"`
	NumDemodDataRequired uint32     `yaml:"num_demod_data_required"`
	Symbols              Symbols    `yaml:"symbols"`
	Mode                 string     `yaml:"mode"` // "uplink", "downlink", or "test_fast_retire"
	NUMANodes            []NUMANode `yaml:"numa_nodes"`
	SampsPerSymbol       uint32     `yaml:"samps_per_symbol"`
	BeaconLen            uint32     `yaml:"beacon_len"`
	RadioAddr            string     `yaml:"radio_addr"`
	LogLevel             string     `yaml:"log_level"`
	LogPretty            bool       `yaml:"log_pretty"`
	// CompactQueues selects CAS-based queue algorithms (n physical slots)
	// over the default FAA-based ones (2n slots) for every MPSC/SPMC/MPMC
	// wiring, halving queue memory at the cost of scalability under
	// contention. Intended for a memory-constrained bench-head deployment.
	CompactQueues bool `yaml:"compact_queues"`
}

// Default returns a small single-NUMA-node configuration suitable for
// tests and local runs.
func Default() Config {
	return Config{
		Window:               8,
		NumAntennas:          4,
		NumUEs:               2,
		NumSCBlocks:          2,
		NumDecodeTasks:       2,
		NumDemodDataRequired: 1,
		Symbols: Symbols{
			Total:       16,
			PilotCount:  1,
			ULDataCount: 2,
		},
		Mode:           "uplink",
		NUMANodes:      []NUMANode{{ID: 0, CPUs: []int{0, 1, 2, 3}}},
		SampsPerSymbol: 64,
		BeaconLen:      16,
		RadioAddr:      "127.0.0.1:9000",
		LogLevel:       "info",
	}
}

// Load reads a YAML file at path, if non-empty, over the defaults, then
// applies flagSet (already parsed) on top. Flags always win over the
// file, matching the layering other radiosched components use for
// defaults vs. explicit overrides.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	applyFlags(&cfg, flags)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFlags(cfg *Config, flags *pflag.FlagSet) {
	if flags == nil {
		return
	}
	if flags.Changed("window") {
		v, _ := flags.GetUint32("window")
		cfg.Window = v
	}
	if flags.Changed("num-antennas") {
		v, _ := flags.GetUint32("num-antennas")
		cfg.NumAntennas = v
	}
	if flags.Changed("num-ues") {
		v, _ := flags.GetUint32("num-ues")
		cfg.NumUEs = v
	}
	if flags.Changed("mode") {
		v, _ := flags.GetString("mode")
		cfg.Mode = v
	}
	if flags.Changed("radio-addr") {
		v, _ := flags.GetString("radio-addr")
		cfg.RadioAddr = v
	}
	if flags.Changed("log-level") {
		v, _ := flags.GetString("log-level")
		cfg.LogLevel = v
	}
	if flags.Changed("log-pretty") {
		v, _ := flags.GetBool("log-pretty")
		cfg.LogPretty = v
	}
	if flags.Changed("compact-queues") {
		v, _ := flags.GetBool("compact-queues")
		cfg.CompactQueues = v
	}
}

// RegisterFlags adds the overridable flags to flags, with defaults
// matching Default() so an unparsed FlagSet never clobbers a loaded
// file's values (Load only copies a flag's value when Changed is true).
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.Uint32("window", d.Window, "frame window size, must be a power of two")
	flags.Uint32("num-antennas", d.NumAntennas, "number of receive antennas")
	flags.Uint32("num-ues", d.NumUEs, "number of scheduled UEs")
	flags.String("mode", d.Mode, "retirement mode: uplink, downlink, or test_fast_retire")
	flags.String("radio-addr", d.RadioAddr, "UDP address of the emulated radio endpoint")
	flags.String("log-level", d.LogLevel, "minimum log level")
	flags.Bool("log-pretty", d.LogPretty, "render logs as a human-readable console line")
	flags.Bool("compact-queues", d.CompactQueues, "use CAS-based compact queue algorithms to halve queue memory")
}

// Validate checks invariants that counters.New and the NUMA topology
// builder would otherwise panic on, returning a descriptive error instead.
func (c Config) Validate() error {
	if c.Window == 0 || c.Window&(c.Window-1) != 0 {
		return fmt.Errorf("config: window %d must be a power of two", c.Window)
	}
	if c.NumAntennas == 0 {
		return fmt.Errorf("config: num_antennas must be > 0")
	}
	if c.NumUEs == 0 {
		return fmt.Errorf("config: num_ues must be > 0")
	}
	if c.SampsPerSymbol == 0 {
		return fmt.Errorf("config: samps_per_symbol must be > 0")
	}
	if c.NumSCBlocks > c.SampsPerSymbol {
		return fmt.Errorf("config: num_sc_blocks (%d) cannot exceed samps_per_symbol (%d)", c.NumSCBlocks, c.SampsPerSymbol)
	}
	switch c.Mode {
	case "uplink", "downlink", "test_fast_retire":
	default:
		return fmt.Errorf("config: unknown mode %q", c.Mode)
	}
	if len(c.NUMANodes) == 0 {
		return fmt.Errorf("config: at least one numa node is required")
	}
	return nil
}

// RetireMode maps the configured mode string to a counters.RetireMode.
func (c Config) RetireMode() counters.RetireMode {
	switch c.Mode {
	case "downlink":
		return counters.ModeDownlink
	case "test_fast_retire":
		return counters.ModeTestFastRetire
	default:
		return counters.ModeUplink
	}
}

// Counters builds the counters.Config this configuration implies.
func (c Config) Counters() counters.Config {
	return counters.Config{
		Window:               c.Window,
		MaxSymbols:           c.Symbols.Total,
		NumAnt:               c.NumAntennas,
		NumPilotSym:          c.Symbols.PilotCount,
		NumULDataSym:         c.Symbols.ULDataCount,
		NumSCBlocks:          c.NumSCBlocks,
		NumUE:                c.NumUEs,
		NumDecodeTasks:       c.NumDecodeTasks,
		NumDemodDataRequired: c.NumDemodDataRequired,
		Mode:                 c.RetireMode(),
	}
}

// TotalCPUs returns the flattened list of CPU ids across every NUMA node,
// in node order, for workers that don't care about node locality.
func (c Config) TotalCPUs() []int {
	var out []int
	for _, n := range c.NUMANodes {
		out = append(out, n.CPUs...)
	}
	return out
}
