// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package hook

import (
	"errors"
	"testing"

	"github.com/Fantom-foundation/Chainbase/common"
)

func TestHook_LinkRoundTrip(t *testing.T) {
	seg := make([]byte, 1<<16)
	a := int64(1024)
	targets := []int64{a + 16, a + 64, a - 512, a + 32768, 16, int64(len(seg)) - 16}
	for _, f := range []Field{Parent, Left, Right} {
		for _, target := range targets {
			if err := SetLink(seg, a, f, target); err != nil {
				t.Fatalf("failed to set link to %d: %v", target, err)
			}
			got, ok := GetLink(seg, a, f)
			if !ok {
				t.Fatalf("link to %d reads back as null", target)
			}
			if got != target {
				t.Errorf("link round trip failed, got %d, wanted %d", got, target)
			}
		}
	}
}

func TestHook_FieldsAreIndependent(t *testing.T) {
	seg := make([]byte, 4096)
	a := int64(256)
	if err := SetLink(seg, a, Parent, a+16); err != nil {
		t.Fatalf("failed to set parent: %v", err)
	}
	if err := SetLink(seg, a, Left, a+32); err != nil {
		t.Fatalf("failed to set left: %v", err)
	}
	if err := SetLink(seg, a, Right, a-64); err != nil {
		t.Fatalf("failed to set right: %v", err)
	}
	SetBalance(seg, a, -1)

	if got, _ := GetLink(seg, a, Parent); got != a+16 {
		t.Errorf("parent link clobbered, got %d, wanted %d", got, a+16)
	}
	if got, _ := GetLink(seg, a, Left); got != a+32 {
		t.Errorf("left link clobbered, got %d, wanted %d", got, a+32)
	}
	if got, _ := GetLink(seg, a, Right); got != a-64 {
		t.Errorf("right link clobbered, got %d, wanted %d", got, a-64)
	}
	if got := Balance(seg, a); got != -1 {
		t.Errorf("balance clobbered, got %d, wanted -1", got)
	}
}

func TestHook_NullSentinel(t *testing.T) {
	seg := make([]byte, 4096)
	a := int64(64)
	Clear(seg, a)
	for _, f := range []Field{Parent, Left, Right} {
		if _, ok := GetLink(seg, a, f); ok {
			t.Errorf("cleared field %d is not null", f)
		}
	}
	if err := SetLink(seg, a, Left, a+128); err != nil {
		t.Fatalf("failed to set left: %v", err)
	}
	SetNull(seg, a, Left)
	if _, ok := GetLink(seg, a, Left); ok {
		t.Errorf("nulled field reads back as a link")
	}
}

func TestHook_SelfLinkIsRejected(t *testing.T) {
	seg := make([]byte, 4096)
	a := int64(64)
	if err := SetLink(seg, a, Left, a); !errors.Is(err, common.ErrCorrupted) {
		t.Errorf("self link not rejected, got %v", err)
	}
}

func TestHook_UnalignedOffsetIsRejected(t *testing.T) {
	seg := make([]byte, 4096)
	a := int64(64)
	for _, target := range []int64{a + 1, a + 2, a + 3, a - 7} {
		if err := SetLink(seg, a, Right, target); !errors.Is(err, common.ErrCorrupted) {
			t.Errorf("unaligned link to %d not rejected, got %v", target, err)
		}
	}
}

func TestHook_OutOfRangeOffsetIsRejected(t *testing.T) {
	seg := make([]byte, 4096)
	a := int64(64)
	if err := SetLink(seg, a, Left, a+(1<<42)+4); !errors.Is(err, common.ErrCorrupted) {
		t.Errorf("over-large link not rejected, got %v", err)
	}
	if err := SetLink(seg, a, Left, a-(1<<43)-4); !errors.Is(err, common.ErrCorrupted) {
		t.Errorf("over-small link not rejected, got %v", err)
	}
	if err := SetLink(seg, a, Left, a+(1<<42)); err != nil {
		t.Errorf("maximum link rejected: %v", err)
	}
}

func TestHook_BalanceHoldsAllFourValues(t *testing.T) {
	seg := make([]byte, 4096)
	a := int64(64)
	if err := SetLink(seg, a, Right, a+1024); err != nil {
		t.Fatalf("failed to set right: %v", err)
	}
	for _, b := range []int{-2, -1, 0, 1} {
		SetBalance(seg, a, b)
		if got := Balance(seg, a); got != b {
			t.Errorf("balance round trip failed, got %d, wanted %d", got, b)
		}
		if got, _ := GetLink(seg, a, Right); got != a+1024 {
			t.Errorf("balance write clobbered right link, got %d", got)
		}
	}
}

func TestHook_ListThreading(t *testing.T) {
	seg := make([]byte, 4096)
	a, b := int64(64), int64(160)
	Clear(seg, a)
	Clear(seg, b)
	if err := SetNext(seg, a, b); err != nil {
		t.Fatalf("failed to thread list: %v", err)
	}
	if got, ok := GetNext(seg, a); !ok || got != b {
		t.Errorf("next link broken, got %d (%t), wanted %d", got, ok, b)
	}
	SetNextNull(seg, a)
	if _, ok := GetNext(seg, a); ok {
		t.Errorf("terminated list still has a next")
	}
}
