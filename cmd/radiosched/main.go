// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command radiosched runs one frame scheduler instance: it loads
// configuration, builds the counters/queue fabric, launches the worker
// pool, the radio front ends, and the master, then blocks until an
// interrupt or terminate signal triggers an orderly shutdown.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"code.hybscloud.com/radiosched/config"
	"code.hybscloud.com/radiosched/doer"
	"code.hybscloud.com/radiosched/dsp"
	"code.hybscloud.com/radiosched/event"
	"code.hybscloud.com/radiosched/obs"
	"code.hybscloud.com/radiosched/radio"
	"code.hybscloud.com/radiosched/scheduler"
	"code.hybscloud.com/radiosched/session"
	"code.hybscloud.com/radiosched/stage"
	"code.hybscloud.com/radiosched/stats"
	"code.hybscloud.com/radiosched/worker"
	"github.com/spf13/pflag"
)

// slowDoerThreshold is the per-Launch duration past which a doer's call
// is logged as an overrun (§4.5, Deadlines), not used for scheduling.
const slowDoerThreshold = 500 * time.Microsecond

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "radiosched:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("radiosched", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to a YAML config file")
	config.RegisterFlags(flags)
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		return err
	}

	level := obs.LevelInformational
	switch cfg.LogLevel {
	case "debug":
		level = obs.LevelDebug
	case "warning":
		level = obs.LevelWarning
	case "error":
		level = obs.LevelError
	}
	log := obs.New(obs.Options{Pretty: cfg.LogPretty, Level: &level})

	sess := session.New(cfg, log)
	arena := stage.NewArena(cfg, cfg.SampsPerSymbol)
	registry := instrumentedRegistry(arena, log)

	workers := buildWorkers(cfg, sess, registry, log)
	frontEnds, err := buildFrontEnds(cfg, sess, arena, log)
	if err != nil {
		return err
	}
	master := scheduler.New(sess, log)

	for _, w := range workers {
		go w.Run()
	}
	for _, f := range frontEnds {
		go f.Run()
	}
	go master.Run()

	sess.Start()
	log.Info().Log("radiosched started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info().Log("shutdown signal received")
	sess.Shutdown()
	log.Info().Log("radiosched stopped")
	return nil
}

// instrumentedRegistry wraps every stage Doer with duration tracking and
// slow-call logging, matching the per-worker instrumentation the
// original's max_tsc cycle counters provided (stats.DurationTracker is
// the Go analogue, see stats.go).
func instrumentedRegistry(arena *stage.Arena, log *obs.Logger) *doer.Registry {
	base := stage.BuildRegistry(arena, dsp.Fake())
	rec := stats.NewDurationTracker()
	onSlow := obs.LogSlowDoer(log)

	kinds := []event.Kind{
		event.KindFFT, event.KindCSI, event.KindZF, event.KindDemul,
		event.KindDecode, event.KindEncode, event.KindPrecode, event.KindIFFT,
	}
	wrapped := make([]doer.Doer, 0, len(kinds))
	for _, k := range kinds {
		d := base.Lookup(k)
		if d == nil {
			continue
		}
		wrapped = append(wrapped, doer.Instrumented{
			Doer:          d,
			Rec:           rec,
			SlowThreshold: slowDoerThreshold,
			OnSlow:        onSlow,
		})
	}
	return doer.NewRegistry(wrapped...)
}

func buildWorkers(cfg config.Config, sess *session.State, reg *doer.Registry, log *obs.Logger) []*worker.Worker {
	cpus := cfg.TotalCPUs()
	out := make([]*worker.Worker, len(cpus))
	for i, cpu := range cpus {
		out[i] = &worker.Worker{
			ID:       i,
			CPU:      cpu,
			Requests: sess.Queues.Requests[i],
			Registry: reg,
			Session:  sess,
			Log:      log,
			// Every worker also drains the shared demul pool: demul is
			// embarrassingly parallel and has no per-worker affinity.
			Demul: sess.Queues.Demul,
		}
	}
	return out
}

func buildFrontEnds(cfg config.Config, sess *session.State, arena *stage.Arena, log *obs.Logger) ([]*radio.FrontEnd, error) {
	host, portStr, err := net.SplitHostPort(cfg.RadioAddr)
	if err != nil {
		return nil, fmt.Errorf("radiosched: parsing radio_addr %q: %w", cfg.RadioAddr, err)
	}
	basePort, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("radiosched: radio_addr port %q: %w", portStr, err)
	}

	// One UDPDriver shared by every front end: TXDispatch is a single
	// MPMC pool drained by whichever front-end goroutine is free, so a
	// completion tagged for antenna 2 must be sendable from any of them.
	// A driver scoped to a single radio could only ever transmit on its
	// own socket, reintroducing the routing bug the shared driver avoids.
	endpoints := make([]radio.UDPEndpoint, cfg.NumAntennas)
	for ant := uint32(0); ant < cfg.NumAntennas; ant++ {
		radioID := int(ant)
		addr := net.JoinHostPort(host, strconv.Itoa(basePort+radioID))
		// Loopback self-send: a standalone run has no separate RRU
		// process, so each radio's client socket targets its own server
		// socket. A real deployment points RemoteAddr at actual RRU
		// hardware, configured per radio outside this default wiring.
		endpoints[ant] = radio.UDPEndpoint{RadioID: radioID, ListenAddr: addr, RemoteAddr: addr}
	}
	driver := radio.NewUDPDriver(int(cfg.SampsPerSymbol), uint16(0), endpoints)
	if err := driver.Start(); err != nil {
		return nil, fmt.Errorf("radiosched: starting radio endpoints: %w", err)
	}

	fronts := make([]*radio.FrontEnd, cfg.NumAntennas)
	for ant := uint32(0); ant < cfg.NumAntennas; ant++ {
		radioID := int(ant)
		fronts[ant] = &radio.FrontEnd{
			RadioID:  radioID,
			CPU:      -1,
			NumSamps: int(cfg.SampsPerSymbol),
			Plan: radio.SymbolPlan{
				Total: uint8(cfg.Symbols.Total),
				Pilot: func(symbol uint8) bool { return uint32(symbol) < cfg.Symbols.PilotCount },
				ULData: func(symbol uint8) bool {
					s := uint32(symbol)
					return s >= cfg.Symbols.PilotCount && s < cfg.Symbols.PilotCount+cfg.Symbols.ULDataCount
				},
			},
			Driver:  driver,
			Sync:    radio.NewSync(radio.FakeBeaconDetector(int(cfg.BeaconLen), 0), int(cfg.BeaconLen), 0),
			Source:  arena.TXSource(),
			Session: sess,
			Log:     log,
			RXSink: func(frameID uint32, symbol uint8) []complex64 {
				return arena.RXSink(frameID, symbol, uint16(radioID))
			},
		}
	}
	return fronts, nil
}
