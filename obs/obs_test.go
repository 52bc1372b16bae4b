// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package obs_test

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"code.hybscloud.com/radiosched/event"
	"code.hybscloud.com/radiosched/obs"
	"code.hybscloud.com/radiosched/tag"
	"github.com/stretchr/testify/require"
)

func TestNewLogsJSON(t *testing.T) {
	var buf bytes.Buffer
	log := obs.New(obs.Options{Writer: &buf})

	log.Info().Str("component", "test").Int("frame", 7).Log("hello")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "hello", decoded["message"])
	require.Equal(t, "test", decoded["component"])
	require.Equal(t, float64(7), decoded["frame"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	lvl := obs.LevelWarning
	log := obs.New(obs.Options{Writer: &buf, Level: &lvl})

	log.Info().Log("should be dropped")
	require.Zero(t, buf.Len())

	log.Warning().Log("should be kept")
	require.NotZero(t, buf.Len())
}

func TestLogSlowDoer(t *testing.T) {
	var buf bytes.Buffer
	log := obs.New(obs.Options{Writer: &buf})

	cb := obs.LogSlowDoer(log)
	cb(event.KindFFT, tag.MakeFrameTag(3, 1), 5*time.Millisecond)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "doer exceeded deadline", decoded["message"])
	require.Equal(t, float64(3), decoded["frame"])
}
