// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package shared

import (
	"bytes"
	"testing"

	"github.com/Fantom-foundation/Chainbase/segment"
)

func registeredSegment(t *testing.T, id uint16) *segment.Manager {
	t.Helper()
	m, err := segment.NewMemory(1 << 20)
	if err != nil {
		t.Fatalf("failed to create segment: %v", err)
	}
	if err := segment.Register(id, m); err != nil {
		t.Fatalf("failed to register segment: %v", err)
	}
	t.Cleanup(func() { segment.Unregister(id) })
	return m
}

func TestBytes_MakeAndLoadRoundTrip(t *testing.T) {
	m := registeredSegment(t, 31)
	content := []byte("hello chainbase")
	b, err := Make(m, content)
	if err != nil {
		t.Fatalf("failed to make shared bytes: %v", err)
	}
	got, err := b.Load()
	if err != nil {
		t.Fatalf("failed to load shared bytes: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("round trip failed, got %q", got)
	}
	if b.Len() != len(content) {
		t.Errorf("wrong length, got %d, wanted %d", b.Len(), len(content))
	}
}

func TestBytes_ZeroValueIsEmpty(t *testing.T) {
	var b Bytes
	if !b.Empty() {
		t.Errorf("zero value not empty")
	}
	got, err := b.Load()
	if err != nil || got != nil {
		t.Errorf("loading the empty string, got %q (%v)", got, err)
	}
}

func TestBytes_ReferenceSurvivesEncodeAndRemap(t *testing.T) {
	m := registeredSegment(t, 32)
	b, err := Make(m, []byte("payload"))
	if err != nil {
		t.Fatalf("failed to make shared bytes: %v", err)
	}
	image := make([]byte, EncodedSize)
	b.Store(image)
	decoded, err := LoadFrom(image)
	if err != nil {
		t.Fatalf("failed to decode reference: %v", err)
	}

	// simulate a restart: the id now resolves to a re-registered mapping
	// of the same content
	if err := segment.Register(32, m); err != nil {
		t.Fatalf("failed to re-register: %v", err)
	}
	got, err := decoded.Load()
	if err != nil {
		t.Fatalf("failed to load after remap: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("content lost across remap, got %q", got)
	}
}

func TestBytes_AssignCopiesIntoWritableSegment(t *testing.T) {
	frozen := registeredSegment(t, 33)
	writable := registeredSegment(t, 34)

	b, err := Make(frozen, []byte("old"))
	if err != nil {
		t.Fatalf("failed to make shared bytes: %v", err)
	}
	free := writable.FreeMemory()
	if err := b.Assign(writable, []byte("new content")); err != nil {
		t.Fatalf("failed to assign: %v", err)
	}
	if got, _ := b.Load(); string(got) != "new content" {
		t.Errorf("assign lost content, got %q", got)
	}
	if writable.FreeMemory() >= free {
		t.Errorf("assign did not draw from the writable segment")
	}
}

func TestBytes_ReleaseFreesContent(t *testing.T) {
	m := registeredSegment(t, 35)
	b, err := Make(m, []byte("doomed"))
	if err != nil {
		t.Fatalf("failed to make shared bytes: %v", err)
	}
	b.Release()
	if !b.Empty() {
		t.Errorf("released reference not empty")
	}
}

func TestBytes_Equal(t *testing.T) {
	m := registeredSegment(t, 36)
	a, _ := Make(m, []byte("same"))
	b, _ := Make(m, []byte("same"))
	c, _ := Make(m, []byte("other"))
	if !a.Equal(b) {
		t.Errorf("equal contents reported unequal")
	}
	if a.Equal(c) {
		t.Errorf("different contents reported equal")
	}
	var zero Bytes
	if !zero.Equal(Bytes{}) {
		t.Errorf("empty references reported unequal")
	}
}

func TestBytes_UnregisteredSegmentFails(t *testing.T) {
	m, err := segment.NewMemory(1 << 16)
	if err != nil {
		t.Fatalf("failed to create segment: %v", err)
	}
	if _, err := Make(m, []byte("content")); err == nil {
		t.Errorf("make on an unregistered segment succeeded")
	}
}
