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

package requests

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaleido-io/pap/internal/bus/publisher"
	"github.com/kaleido-io/pap/internal/dispatch"
	"github.com/kaleido-io/pap/internal/timer"
	"github.com/kaleido-io/pap/pkg/papapi"
)

// recordingSink captures every message handed to the publisher, standing in
// for the out-of-scope bus transport (§1 non-goal).
type recordingSink struct {
	mu   sync.Mutex
	sent []papapi.OutboundMessage
}

func (s *recordingSink) Send(ctx context.Context, topic string, msg papapi.OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *recordingSink) last() papapi.OutboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return nil
	}
	return s.sent[len(s.sent)-1]
}

// recordingListener captures the terminal callback a Request drives.
type recordingListener struct {
	mu        sync.Mutex
	successes []string
	failures  []string
	exhausted int
}

func (l *recordingListener) Success(ctx context.Context, pdpName string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.successes = append(l.successes, pdpName)
}

func (l *recordingListener) Failure(ctx context.Context, pdpName string, reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures = append(l.failures, pdpName)
}

func (l *recordingListener) RetryCountExhausted(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.exhausted++
}

func (l *recordingListener) snapshot() (successes, failures []string, exhausted int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.successes...), append([]string(nil), l.failures...), l.exhausted
}

// testHarness wires the real Publisher/timer.Manager/RequestIDDispatcher a
// Request needs, with a mutex standing in for the process-wide modify-lock
// of §5.
type testHarness struct {
	ctx    context.Context
	cancel context.CancelFunc
	sink   *recordingSink
	pub    *publisher.Publisher
	tmrMgr *timer.Manager
	disp   *dispatch.RequestIDDispatcher

	mu sync.Mutex
}

func newTestHarness(t *testing.T) *testHarness {
	ctx, cancel := context.WithCancel(context.Background())
	h := &testHarness{
		ctx:    ctx,
		cancel: cancel,
		sink:   &recordingSink{},
		disp:   dispatch.NewRequestIDDispatcher(),
	}
	h.pub = publisher.New(ctx, "topic.policy-pdp-pap", h.sink, 8)
	h.tmrMgr = timer.NewManager(ctx, "test")
	t.Cleanup(func() {
		h.pub.Stop()
		h.tmrMgr.Stop()
		cancel()
	})
	return h
}

func (h *testHarness) guard(f func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f()
}

func TestUpdateRequestSucceedsOnMatchingStatus(t *testing.T) {
	h := newTestHarness(t)
	listener := &recordingListener{}

	req := NewUpdateRequest("pdp_1", nil, nil, nil, 50*time.Millisecond, 3,
		h.disp, h.tmrMgr, h.pub, "topic.policy-pdp-pap", h.guard)
	req.SetListener(listener)

	require.NoError(t, req.StartPublishing(h.ctx, nil))
	require.Eventually(t, func() bool { return h.sink.count() == 1 }, time.Second, time.Millisecond)

	sent := h.sink.last()
	h.guard(func() {
		h.disp.Dispatch(h.ctx, papapi.PdpStatus{
			Name: "pdp_1", ResponseTo: sent.Envelope().RequestID, MessageName: papapi.MessageNamePdpStatus,
		})
	})

	successes, failures, exhausted := listener.snapshot()
	assert.Equal(t, []string{"pdp_1"}, successes)
	assert.Empty(t, failures)
	assert.Zero(t, exhausted)
	assert.Equal(t, StateCompletedOK, req.State())
}

func TestUpdateRequestFailsOnPolicyMismatch(t *testing.T) {
	h := newTestHarness(t)
	listener := &recordingListener{}

	req := NewUpdateRequest("pdp_1", nil, nil, []papapi.ToscaPolicy{{Name: "p1", Version: "1.0"}},
		50*time.Millisecond, 3, h.disp, h.tmrMgr, h.pub, "topic.policy-pdp-pap", h.guard)
	req.SetListener(listener)

	require.NoError(t, req.StartPublishing(h.ctx, nil))
	require.Eventually(t, func() bool { return h.sink.count() == 1 }, time.Second, time.Millisecond)
	sent := h.sink.last()

	h.guard(func() {
		h.disp.Dispatch(h.ctx, papapi.PdpStatus{
			Name: "pdp_1", ResponseTo: sent.Envelope().RequestID, MessageName: papapi.MessageNamePdpStatus,
			Policies: []papapi.PolicyIdentifier{{Name: "different", Version: "9.9"}},
		})
	})

	successes, failures, _ := listener.snapshot()
	assert.Empty(t, successes)
	assert.Equal(t, []string{"pdp_1"}, failures)
	assert.Equal(t, StateCompletedFail, req.State())
}

func TestRequestRetriesAfterDrainedTimeoutThenExhausts(t *testing.T) {
	h := newTestHarness(t)
	listener := &recordingListener{}

	req := NewStateChangeRequest("pdp_1", papapi.PdpStateActive, 10*time.Millisecond, 2,
		h.disp, h.tmrMgr, h.pub, "topic.policy-pdp-pap", h.guard)
	req.SetListener(listener)

	require.NoError(t, req.StartPublishing(h.ctx, nil))

	require.Eventually(t, func() bool {
		_, _, exhausted := listener.snapshot()
		return exhausted == 1
	}, 2*time.Second, time.Millisecond)

	assert.Equal(t, StateCompletedFail, req.State())
	assert.GreaterOrEqual(t, h.sink.count(), 3) // initial send + 2 retries
}

func TestReconfigureWhilePublishingResendsNewContent(t *testing.T) {
	h := newTestHarness(t)
	listener := &recordingListener{}

	req := NewStateChangeRequest("pdp_1", papapi.PdpStateSafe, time.Second, 3,
		h.disp, h.tmrMgr, h.pub, "topic.policy-pdp-pap", h.guard)
	req.SetListener(listener)
	require.NoError(t, req.StartPublishing(h.ctx, nil))
	require.Eventually(t, func() bool { return h.sink.count() == 1 }, time.Second, time.Millisecond)

	newV := newStateChangeVariant("pdp_1", papapi.PdpStateActive)
	changed, err := req.Reconfigure(h.ctx, newV, nil)
	require.NoError(t, err)
	assert.True(t, changed)

	require.Eventually(t, func() bool { return h.sink.count() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, papapi.PdpStateActive, req.v.(*stateChangeVariant).msg.State)
}

func TestIsSameContentIgnoresRequestID(t *testing.T) {
	a := newUpdateVariant("pdp_1", nil, nil, []papapi.ToscaPolicy{{Name: "p1", Version: "1.0"}})
	b := newUpdateVariant("pdp_1", nil, nil, []papapi.ToscaPolicy{{Name: "p1", Version: "1.0"}})
	assert.True(t, a.isSameContentWith(b))
	assert.NotEqual(t, a.msg.RequestID, b.msg.RequestID)
}
