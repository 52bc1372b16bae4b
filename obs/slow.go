// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package obs

import (
	"time"

	"code.hybscloud.com/radiosched/event"
	"code.hybscloud.com/radiosched/tag"
)

// LogSlowDoer returns a callback suitable for doer.Instrumented.OnSlow,
// logging at LevelWarning with the frame/symbol decoded from the tag and
// the kind and duration of the call that overran its budget.
func LogSlowDoer(log *Logger) func(kind event.Kind, t tag.Tag, d time.Duration) {
	return func(kind event.Kind, t tag.Tag, d time.Duration) {
		log.Warning().
			Str("kind", kind.String()).
			Int("frame", int(t.Frame())).
			Int("symbol", int(t.Symbol())).
			Dur("duration", d).
			Log("doer exceeded deadline")
	}
}
