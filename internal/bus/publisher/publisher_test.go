// Copyright © 2024 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaleido-io/pap/pkg/papapi"
)

type recordingSink struct {
	mu  sync.Mutex
	got []papapi.OutboundMessage
	ch  chan papapi.OutboundMessage
}

func newRecordingSink() *recordingSink {
	return &recordingSink{ch: make(chan papapi.OutboundMessage, 16)}
}

func (s *recordingSink) Send(ctx context.Context, topic string, msg papapi.OutboundMessage) error {
	s.mu.Lock()
	s.got = append(s.got, msg)
	s.mu.Unlock()
	s.ch <- msg
	return nil
}

func (s *recordingSink) next(t *testing.T) papapi.OutboundMessage {
	t.Helper()
	select {
	case m := <-s.ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for publisher to send")
		return nil
	}
}

func TestPublisherFIFO(t *testing.T) {
	sink := newRecordingSink()
	p := New(context.Background(), "policy-pdp-pap", sink, 10)
	defer p.Stop()

	t1 := NewToken(&papapi.PdpMessage{RequestID: "r1"})
	t2 := NewToken(&papapi.PdpMessage{RequestID: "r2"})
	p.Enqueue(t1)
	p.Enqueue(t2)

	first := sink.next(t)
	second := sink.next(t)
	assert.Equal(t, "r1", first.Envelope().RequestID)
	assert.Equal(t, "r2", second.Envelope().RequestID)
}

func TestPublisherSkipsCancelledToken(t *testing.T) {
	sink := newRecordingSink()
	p := New(context.Background(), "policy-pdp-pap", sink, 10)
	defer p.Stop()

	cancelled := NewToken(&papapi.PdpMessage{RequestID: "cancelled"})
	cancelled.empty()
	live := NewToken(&papapi.PdpMessage{RequestID: "live"})
	p.Enqueue(cancelled)
	p.Enqueue(live)

	got := sink.next(t)
	assert.Equal(t, "live", got.Envelope().RequestID)
}

func TestTokenReplaceItemSupersedes(t *testing.T) {
	tok := NewToken(&papapi.PdpMessage{RequestID: "v1"})
	old, ok := tok.ReplaceItem(&papapi.PdpMessage{RequestID: "v2"})
	require.True(t, ok)
	require.Equal(t, "v1", old.Envelope().RequestID)
	assert.Equal(t, "v2", tok.Get().Envelope().RequestID)
}

func TestTokenReplaceItemAfterDrainFails(t *testing.T) {
	tok := NewToken(&papapi.PdpMessage{RequestID: "v1"})
	drained := tok.drain()
	require.Equal(t, "v1", drained.Envelope().RequestID)

	_, ok := tok.ReplaceItem(&papapi.PdpMessage{RequestID: "v2"})
	assert.False(t, ok)
}

func TestPublisherExactlyOneSlotConsumedOnSupersede(t *testing.T) {
	sink := newRecordingSink()
	p := New(context.Background(), "policy-pdp-pap", sink, 10)
	defer p.Stop()

	tok := NewToken(&papapi.PdpMessage{RequestID: "v1"})
	_, ok := tok.ReplaceItem(&papapi.PdpMessage{RequestID: "v2"})
	require.True(t, ok)
	p.Enqueue(tok)

	got := sink.next(t)
	assert.Equal(t, "v2", got.Envelope().RequestID)

	select {
	case extra := <-sink.ch:
		t.Fatalf("unexpected second send: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}
