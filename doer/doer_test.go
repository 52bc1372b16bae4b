// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package doer_test

import (
	"testing"
	"time"

	"code.hybscloud.com/radiosched/doer"
	"code.hybscloud.com/radiosched/event"
	"code.hybscloud.com/radiosched/tag"
	"github.com/stretchr/testify/require"
)

func fftDoer() doer.Func {
	return doer.Func{
		EventKind: event.KindFFT,
		Run: func(t tag.Tag) event.Event {
			return event.Event{Kind: event.KindFFT, Tag: t}
		},
	}
}

func TestRegistryDispatch(t *testing.T) {
	r := doer.NewRegistry(fftDoer())
	req := event.Event{Kind: event.KindFFT, Tag: tag.MakeAntennaTag(1, 2, 3)}
	completion := r.Dispatch(req)
	require.Equal(t, event.KindFFT, completion.Kind)
	require.Equal(t, req.Tag, completion.Tag)
}

func TestRegistryDuplicateKindPanics(t *testing.T) {
	require.Panics(t, func() {
		doer.NewRegistry(fftDoer(), fftDoer())
	})
}

func TestRegistryDispatchUnknownKindPanics(t *testing.T) {
	r := doer.NewRegistry(fftDoer())
	require.Panics(t, func() {
		r.Dispatch(event.Event{Kind: event.KindCSI})
	})
}

type recorder struct {
	kind event.Kind
	d    time.Duration
}

func (r *recorder) Record(kind event.Kind, d time.Duration) {
	r.kind = kind
	r.d = d
}

func TestInstrumentedRecordsDuration(t *testing.T) {
	rec := &recorder{}
	var slowCalls int
	d := doer.Instrumented{
		Doer:          fftDoer(),
		Rec:           rec,
		SlowThreshold: time.Nanosecond,
		OnSlow: func(kind event.Kind, t tag.Tag, dur time.Duration) {
			slowCalls++
		},
	}
	ev := d.Launch(tag.MakeFrameTag(1, 0))
	require.Equal(t, event.KindFFT, ev.Kind)
	require.Equal(t, event.KindFFT, rec.kind)
	require.Equal(t, 1, slowCalls)
}
