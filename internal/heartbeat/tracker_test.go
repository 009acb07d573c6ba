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

package heartbeat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaleido-io/pap/internal/bus/publisher"
	"github.com/kaleido-io/pap/internal/dispatch"
	"github.com/kaleido-io/pap/internal/groupstore"
	"github.com/kaleido-io/pap/internal/pdpmgr"
	"github.com/kaleido-io/pap/internal/timer"
	"github.com/kaleido-io/pap/pkg/papapi"
	"github.com/kaleido-io/pap/pkg/papconf"
)

type noopSink struct{}

func (noopSink) Send(ctx context.Context, topic string, msg papapi.OutboundMessage) error {
	return nil
}

type fakeDAO struct {
	mu      sync.Mutex
	groups  []papapi.GroupData
	updated [][]papapi.GroupData
}

func (f *fakeDAO) GetFilteredPdpGroups(ctx context.Context, filter groupstore.GroupFilter) ([]papapi.GroupData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]papapi.GroupData(nil), f.groups...), nil
}

func (f *fakeDAO) UpdatePdpGroups(ctx context.Context, groups []papapi.GroupData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, groups)
	return nil
}

func (f *fakeDAO) GetPolicyList(ctx context.Context, name, version string) ([]papapi.ToscaPolicy, error) {
	return nil, nil
}

func (f *fakeDAO) GetFilteredPolicyList(ctx context.Context, filter groupstore.PolicyFilter) ([]papapi.ToscaPolicy, error) {
	return nil, nil
}

type fakeStopper struct {
	mu      sync.Mutex
	stopped []string
}

func (f *fakeStopper) StopPublishingLocked(ctx context.Context, pdpName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, pdpName)
}

func (f *fakeStopper) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.stopped...)
}

func TestHeartbeatLossRemovesFromSubGroupAndStopsPublishing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tmrMgr := timer.NewManager(ctx, "heartbeat-test")
	defer tmrMgr.Stop()

	dao := &fakeDAO{groups: []papapi.GroupData{
		{Name: "G", State: "ACTIVE", SubGroups: []papapi.SubGroupData{
			{PdpType: "type1", CurrentInstanceCount: 3, PdpInstances: []string{"pdp_1", "pdp_1x", "pdp_1y"}},
		}},
	}}
	stopper := &fakeStopper{}

	var mu sync.Mutex
	guard := func(f func()) { mu.Lock(); defer mu.Unlock(); f() }

	tracker := NewPdpTracker(tmrMgr, dao, stopper, 10, 1, guard)

	tracker.OnHeartbeat(ctx, papapi.PdpStatus{Name: "pdp_1"})

	require.Eventually(t, func() bool {
		return len(stopper.snapshot()) == 1
	}, time.Second, time.Millisecond)

	assert.Equal(t, []string{"pdp_1"}, stopper.snapshot())
	require.Len(t, dao.updated, 1)
	assert.Equal(t, []string{"pdp_1x", "pdp_1y"}, dao.updated[0][0].SubGroups[0].PdpInstances)
}

func TestHeartbeatResetsTimerOnEachBeat(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tmrMgr := timer.NewManager(ctx, "heartbeat-test")
	defer tmrMgr.Stop()

	dao := &fakeDAO{}
	stopper := &fakeStopper{}
	var mu sync.Mutex
	guard := func(f func()) { mu.Lock(); defer mu.Unlock(); f() }

	tracker := NewPdpTracker(tmrMgr, dao, stopper, 30, 1, guard)

	tracker.OnHeartbeat(ctx, papapi.PdpStatus{Name: "pdp_1"})
	time.Sleep(15 * time.Millisecond)
	tracker.OnHeartbeat(ctx, papapi.PdpStatus{Name: "pdp_1"})

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, stopper.snapshot(), "heartbeat reset should have pushed the deadline out")

	require.Eventually(t, func() bool { return len(stopper.snapshot()) == 1 }, time.Second, time.Millisecond)
}

// TestHeartbeatExpiryThroughRealMapDoesNotDeadlock wires a real
// *pdpmgr.PdpModifyRequestMap as the stopper, the way pkg/pap.NewService
// does, instead of fakeStopper. onExpiry runs inside tracker.guard (m.Guard)
// and must call StopPublishingLocked rather than StopPublishing - otherwise
// the timer worker goroutine deadlocks re-acquiring m's non-reentrant
// modify-lock, which fakeStopper's separate mutex would never catch.
func TestHeartbeatExpiryThroughRealMapDoesNotDeadlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	disp := dispatch.NewRequestIDDispatcher()
	tmrMgr := timer.NewManager(ctx, "heartbeat-map-test")
	defer tmrMgr.Stop()
	pub := publisher.New(ctx, "topic.policy-pdp-pap", noopSink{}, 8)
	defer pub.Stop()

	dao := &fakeDAO{groups: []papapi.GroupData{
		{Name: "G", State: "ACTIVE", SubGroups: []papapi.SubGroupData{
			{PdpType: "type1", CurrentInstanceCount: 1, PdpInstances: []string{"pdp_1"}},
		}},
	}}

	maxWait := 20
	maxRetry := 2
	conf := &papconf.Parameters{
		UpdateParameters:      papconf.RequestParameters{MaxWaitMs: &maxWait, MaxRetryCount: &maxRetry},
		StateChangeParameters: papconf.RequestParameters{MaxWaitMs: &maxWait, MaxRetryCount: &maxRetry},
	}
	m := pdpmgr.New(disp, tmrMgr, pub, "topic.policy-pdp-pap", dao, conf)

	tracker := NewPdpTracker(tmrMgr, dao, m, 10, 1, m.Guard)
	tracker.OnHeartbeat(ctx, papapi.PdpStatus{Name: "pdp_1"})

	// Let the 10ms heartbeat deadline expire and onExpiry run.
	time.Sleep(50 * time.Millisecond)

	acquired := make(chan struct{})
	go m.Guard(func() { close(acquired) })

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("modify-lock still held after heartbeat expiry - onExpiry likely deadlocked re-entering the lock")
	}

	require.Len(t, dao.updated, 1)
}
