// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package lfq

// RaceEnabled is true when the race detector is active. concurrent_test.go
// carries its own //go:build !race tag rather than branching on this at
// runtime, since the race detector's false positives on these queues'
// padded atomic layout would otherwise fail the build outright; this
// constant is kept for callers that want to report the condition instead.
const RaceEnabled = true
