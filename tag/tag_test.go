// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tag_test

import (
	"testing"

	"code.hybscloud.com/radiosched/tag"
)

func TestFrameTagRoundTrip(t *testing.T) {
	tg := tag.MakeFrameTag(12345, 7)
	if got := tg.Frame(); got != 12345 {
		t.Fatalf("Frame() = %d, want 12345", got)
	}
	if got := tg.Symbol(); got != 7 {
		t.Fatalf("Symbol() = %d, want 7", got)
	}
}

func TestAntennaTagRoundTrip(t *testing.T) {
	tg := tag.MakeAntennaTag(1, 2, 900)
	if got := tg.Frame(); got != 1 {
		t.Fatalf("Frame() = %d, want 1", got)
	}
	if got := tg.Symbol(); got != 2 {
		t.Fatalf("Symbol() = %d, want 2", got)
	}
	if got := tg.Antenna(); got != 900 {
		t.Fatalf("Antenna() = %d, want 900", got)
	}
}

func TestCBTagRoundTrip(t *testing.T) {
	tg := tag.MakeCBTag(999999, 31, 500, 700)
	if got := tg.Frame(); got != 999999 {
		t.Fatalf("Frame() = %d, want 999999", got)
	}
	if got := tg.Symbol(); got != 31 {
		t.Fatalf("Symbol() = %d, want 31", got)
	}
	if got := tg.UE(); got != 500 {
		t.Fatalf("UE() = %d, want 500", got)
	}
	if got := tg.CB(); got != 700 {
		t.Fatalf("CB() = %d, want 700", got)
	}
}

func TestMaxFrameRoundTrip(t *testing.T) {
	tg := tag.MakeFrameTag(tag.MaxFrame, 0)
	if got := tg.Frame(); uint64(got) != tag.MaxFrame {
		t.Fatalf("Frame() = %d, want %d", got, tag.MaxFrame)
	}
}

func TestSlot(t *testing.T) {
	tg := tag.MakeFrameTag(19, 0)
	if got := tg.Slot(8); got != 3 {
		t.Fatalf("Slot(8) = %d, want 3", got)
	}
}

func TestTagEquality(t *testing.T) {
	a := tag.MakeCBTag(1, 2, 3, 4)
	b := tag.MakeCBTag(1, 2, 3, 4)
	c := tag.MakeCBTag(1, 2, 3, 5)
	if a != b {
		t.Fatal("identical tag construction produced unequal tags")
	}
	if a == c {
		t.Fatal("different cb index produced equal tags")
	}
}
