// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfq_test

import (
	"errors"
	"testing"

	"code.hybscloud.com/radiosched/lfq"
)

// TestDrainAllowsFullConsumption exercises the shutdown path: once the
// scheduler clears its running flag, producers stop and call Drain so
// consumers can empty the backlog without the threshold mechanism
// returning spurious ErrWouldBlock.
func TestDrainAllowsFullConsumption(t *testing.T) {
	q := lfq.NewMPMC[int](8)
	for i := 0; i < 8; i++ {
		v := i
		if err := q.Enqueue(&v); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}

	d, ok := any(q).(lfq.Drainer)
	if !ok {
		t.Fatal("MPMC does not implement Drainer")
	}
	d.Drain()

	for i := 0; i < 8; i++ {
		if _, err := q.Dequeue(); err != nil {
			t.Fatalf("Dequeue(%d) after Drain: %v", i, err)
		}
	}
	if _, err := q.Dequeue(); !errors.Is(err, lfq.ErrWouldBlock) {
		t.Fatalf("Dequeue on drained+empty queue: got %v, want ErrWouldBlock", err)
	}
}

func TestSPSCIsNotADrainer(t *testing.T) {
	q := lfq.NewSPSC[int](4)
	if _, ok := any(q).(lfq.Drainer); ok {
		t.Fatal("SPSC unexpectedly implements Drainer")
	}
}

func TestMPSCDrainer(t *testing.T) {
	q := lfq.NewMPSC[int](4)
	if _, ok := any(q).(lfq.Drainer); !ok {
		t.Fatal("MPSC does not implement Drainer")
	}
}

func TestSPMCDrainer(t *testing.T) {
	q := lfq.NewSPMC[int](4)
	if _, ok := any(q).(lfq.Drainer); !ok {
		t.Fatal("SPMC does not implement Drainer")
	}
}
