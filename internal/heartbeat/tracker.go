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

// Package heartbeat implements component H (§4.H): an anonymous-status
// listener that registers a per-PDP timeout on first sight and resets it on
// every subsequent heartbeat. Expiry removes the PDP from its sub-group and
// stops publishing to it. Grounded on the same named-timer-per-peer idiom
// as internal/requests, generalized here to a registry keyed by PDP name
// instead of by requestId.
package heartbeat

import (
	"context"
	"sync"
	"time"

	"github.com/kaleido-io/pap/internal/groupstore"
	"github.com/kaleido-io/pap/internal/log"
	"github.com/kaleido-io/pap/internal/timer"
	"github.com/kaleido-io/pap/pkg/papapi"
)

// StopPublisher is the minimal slice of PdpModifyRequestMap this tracker
// needs (§9 "no back-pointers" - depend on the small interface, not the
// concrete Map). StopPublishingLocked, not StopPublishing, because
// onExpiry always runs inside the tracker's own guard(...) call - calling
// back into a method that re-acquires the same non-reentrant modify-lock
// would deadlock the timer worker goroutine.
type StopPublisher interface {
	StopPublishingLocked(ctx context.Context, pdpName string)
}

// PdpTracker is the heartbeat listener of §4.H. Missing-heartbeat threshold
// is MAX_MISSED_HEARTBEATS * heartBeatMs, an absolute wall-clock timer reset
// on every heartbeat (§9 Open Question c resolution - not a missed-count
// counter).
type PdpTracker struct {
	tmrMgr    *timer.Manager
	dao       groupstore.DAO
	stopper   StopPublisher
	threshold time.Duration
	guard     func(func())

	mu     sync.Mutex
	timers map[string]timer.Timer
}

// NewPdpTracker builds the tracker. heartBeatMs and maxMissedHeartbeats
// compose into the absolute timeout (§6 configuration).
func NewPdpTracker(tmrMgr *timer.Manager, dao groupstore.DAO, stopper StopPublisher,
	heartBeatMs, maxMissedHeartbeats int, guard func(func())) *PdpTracker {
	return &PdpTracker{
		tmrMgr:    tmrMgr,
		dao:       dao,
		stopper:   stopper,
		threshold: time.Duration(maxMissedHeartbeats) * time.Duration(heartBeatMs) * time.Millisecond,
		guard:     guard,
		timers:    make(map[string]timer.Timer),
	}
}

// OnHeartbeat is the anonymous StatusListener registered with the
// Dispatcher's RequestIDDispatcher (§4.D fan-out, §4.H "unknown-PDP
// heartbeats are registered; subsequent heartbeats reset the timer").
func (t *PdpTracker) OnHeartbeat(ctx context.Context, status papapi.PdpStatus) {
	name := status.Name
	if name == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.timers[name]; ok {
		existing.Cancel()
	}
	t.timers[name] = t.tmrMgr.Register(name, t.threshold, func(key string) {
		t.guard(func() { t.onExpiry(ctx, key) })
	})
}

// onExpiry fires when a PDP has missed its heartbeat deadline (§4.H):
// remove it from whatever sub-group it belongs to, persist that, and stop
// publishing to it. Runs under the process-wide modify-lock via guard.
func (t *PdpTracker) onExpiry(ctx context.Context, pdpName string) {
	t.mu.Lock()
	delete(t.timers, pdpName)
	t.mu.Unlock()

	log.L(ctx).Warnf("pdp '%s' missed its heartbeat deadline", pdpName)

	groups, err := t.dao.GetFilteredPdpGroups(ctx, groupstore.GroupFilter{PdpInstanceID: pdpName})
	if err != nil {
		log.L(ctx).Errorf("failed to load groups for pdp '%s' during heartbeat cleanup: %s", pdpName, err)
	} else if changed := groupstore.RemoveInstanceFromGroups(groups, pdpName); len(changed) > 0 {
		if err := t.dao.UpdatePdpGroups(ctx, changed); err != nil {
			log.L(ctx).Errorf("failed to persist group cleanup for pdp '%s': %s", pdpName, err)
		}
	}

	t.stopper.StopPublishingLocked(ctx, pdpName)
}

// Stop cancels every outstanding heartbeat timer, for process shutdown (§5).
func (t *PdpTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tmr := range t.timers {
		tmr.Cancel()
	}
	t.timers = make(map[string]timer.Timer)
}
