// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !race

package lfq_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"code.hybscloud.com/radiosched/lfq"
)

// TestMPSCConcurrentProducers stresses the MPSC completion queue wiring:
// multiple workers enqueue concurrently, the master drains sequentially,
// and every enqueued value must be observed exactly once.
func TestMPSCConcurrentProducers(t *testing.T) {
	const (
		producers = 8
		perProd   = 2000
	)
	q := lfq.NewMPSC[int](1024)
	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProd; i++ {
				v := p*perProd + i
				for q.Enqueue(&v) != nil {
				}
			}
		}(p)
	}

	var received atomic.Int64
	seen := make([]bool, producers*perProd)
	var mu sync.Mutex
	done := make(chan struct{})
	go func() {
		for received.Load() < producers*perProd {
			v, err := q.Dequeue()
			if err != nil {
				continue
			}
			mu.Lock()
			if seen[v] {
				t.Errorf("duplicate value %d", v)
			}
			seen[v] = true
			mu.Unlock()
			received.Add(1)
		}
		close(done)
	}()

	wg.Wait()
	<-done

	for i, ok := range seen {
		if !ok {
			t.Fatalf("value %d never observed", i)
		}
	}
}

// TestSPMCConcurrentConsumers stresses the round-robin demul work pool
// wiring: a single dispatcher, many worker consumers, no task lost or
// duplicated.
func TestSPMCConcurrentConsumers(t *testing.T) {
	const (
		consumers = 8
		total     = 4000
	)
	q := lfq.NewSPMC[int](1024)
	seen := make([]atomic.Bool, total)
	var received atomic.Int64

	var wg sync.WaitGroup
	wg.Add(consumers)
	for c := 0; c < consumers; c++ {
		go func() {
			defer wg.Done()
			for received.Load() < total {
				v, err := q.Dequeue()
				if err != nil {
					continue
				}
				if seen[v].Swap(true) {
					t.Errorf("duplicate value %d", v)
				}
				received.Add(1)
			}
		}()
	}

	for i := 0; i < total; i++ {
		v := i
		for q.Enqueue(&v) != nil {
		}
	}
	wg.Wait()

	for i := range seen {
		if !seen[i].Load() {
			t.Fatalf("value %d never observed", i)
		}
	}
}

// TestMPMCConcurrentAll stresses the TX dispatch queue wiring: several
// precode/IFFT workers produce while several radio TX threads consume.
func TestMPMCConcurrentAll(t *testing.T) {
	const (
		producers = 4
		consumers = 4
		perProd   = 2000
		total     = producers * perProd
	)
	q := lfq.NewMPMC[int](2048)
	seen := make([]atomic.Bool, total)

	var prodWg sync.WaitGroup
	prodWg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer prodWg.Done()
			for i := 0; i < perProd; i++ {
				v := p*perProd + i
				for q.Enqueue(&v) != nil {
				}
			}
		}(p)
	}

	var received atomic.Int64
	var consWg sync.WaitGroup
	consWg.Add(consumers)
	for c := 0; c < consumers; c++ {
		go func() {
			defer consWg.Done()
			for received.Load() < total {
				v, err := q.Dequeue()
				if err != nil {
					continue
				}
				if seen[v].Swap(true) {
					t.Errorf("duplicate value %d", v)
				}
				received.Add(1)
			}
		}()
	}

	prodWg.Wait()
	consWg.Wait()

	for i := range seen {
		if !seen[i].Load() {
			t.Fatalf("value %d never observed", i)
		}
	}
}
