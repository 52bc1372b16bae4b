// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package worker_test

import (
	"testing"
	"time"

	"code.hybscloud.com/radiosched/config"
	"code.hybscloud.com/radiosched/doer"
	"code.hybscloud.com/radiosched/event"
	"code.hybscloud.com/radiosched/lfq"
	"code.hybscloud.com/radiosched/obs"
	"code.hybscloud.com/radiosched/session"
	"code.hybscloud.com/radiosched/tag"
	"code.hybscloud.com/radiosched/worker"
	"github.com/stretchr/testify/require"
)

func TestWorkerDispatchesAndCompletes(t *testing.T) {
	cfg := config.Default()
	log := obs.New(obs.Options{})
	sess := session.New(cfg, log)

	reg := doer.NewRegistry(doer.Func{
		EventKind: event.KindFFT,
		Run: func(tg tag.Tag) event.Event {
			return event.Event{Kind: event.KindCSI, Tag: tg}
		},
	})

	reqQ := lfq.BuildSPSC[event.Event](lfq.New(4).SingleProducer().SingleConsumer())
	w := &worker.Worker{
		ID:       0,
		CPU:      -1,
		Requests: reqQ,
		Registry: reg,
		Session:  sess,
		Log:      log,
	}

	req := event.Event{Kind: event.KindFFT, Tag: tag.MakeFrameTag(1, 0)}
	require.NoError(t, reqQ.Enqueue(&req))

	done := make(chan struct{})
	go func() {
		w.Run()
		close(done)
	}()

	sess.Start()

	require.Eventually(t, func() bool {
		_, err := sess.Queues.Completion.Dequeue()
		return err == nil
	}, time.Second, time.Millisecond)

	sess.Shutdown()
	<-done
}
