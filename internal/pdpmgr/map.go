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

// Package pdpmgr implements component G, PdpModifyRequestMap, the core
// orchestrator of §4.G: it owns one requests.PdpRequests serializer per
// target PDP, installs a Map-owned listener on every Request it creates,
// and drives disable-PDP recovery when a Request ultimately fails. Grounded
// on the teacher's domainmgr registry (components/domainmgr.go): a
// name-keyed map of per-peer state, guarded by one process-wide lock rather
// than per-entry locks, with a single installed callback per entry rather
// than one per operation.
package pdpmgr

import (
	"context"
	"sync"
	"time"

	"github.com/hyperledger/firefly-common/pkg/i18n"

	"github.com/kaleido-io/pap/internal/bus/publisher"
	"github.com/kaleido-io/pap/internal/confutil"
	"github.com/kaleido-io/pap/internal/dispatch"
	"github.com/kaleido-io/pap/internal/groupstore"
	"github.com/kaleido-io/pap/internal/log"
	"github.com/kaleido-io/pap/internal/msgs"
	"github.com/kaleido-io/pap/internal/requests"
	"github.com/kaleido-io/pap/internal/timer"
	"github.com/kaleido-io/pap/pkg/papapi"
	"github.com/kaleido-io/pap/pkg/papconf"
)

// PdpModifyRequestMap is the core orchestrator of §3/§4.G. Every public
// method except StopPublishingLocked (whose caller already holds it)
// acquires the process-wide modify-lock (§5) before touching any entry;
// the Map-owned listener it installs on each Request runs inside
// that same lock, since it is always invoked from within a guard(...) call
// originating on the dispatcher or timer goroutine (§4.E, §4.G invariant F1).
type PdpModifyRequestMap struct {
	mu      sync.Mutex
	entries map[string]*requests.PdpRequests

	dispatcher   *dispatch.RequestIDDispatcher
	timerManager *timer.Manager
	pub          *publisher.Publisher
	topic        string
	dao          groupstore.DAO

	updateMaxWait       time.Duration
	updateMaxRetry      int
	stateChangeMaxWait  time.Duration
	stateChangeMaxRetry int
}

// New builds the Map from its wired collaborators and resolved
// configuration (§6's RequestParameters pair).
func New(dispatcher *dispatch.RequestIDDispatcher, timerManager *timer.Manager, pub *publisher.Publisher, topic string,
	dao groupstore.DAO, conf *papconf.Parameters) *PdpModifyRequestMap {
	return &PdpModifyRequestMap{
		entries:      make(map[string]*requests.PdpRequests),
		dispatcher:   dispatcher,
		timerManager: timerManager,
		pub:          pub,
		topic:        topic,
		dao:          dao,

		updateMaxWait:       confutil.DurationMS(conf.UpdateParameters.MaxWaitMs, time.Duration(papconf.DefaultMaxWaitMs)*time.Millisecond),
		updateMaxRetry:      confutil.Int(conf.UpdateParameters.MaxRetryCount, papconf.DefaultMaxRetryCount),
		stateChangeMaxWait:  confutil.DurationMS(conf.StateChangeParameters.MaxWaitMs, time.Duration(papconf.DefaultMaxWaitMs)*time.Millisecond),
		stateChangeMaxRetry: confutil.Int(conf.StateChangeParameters.MaxRetryCount, papconf.DefaultMaxRetryCount),
	}
}

func (m *PdpModifyRequestMap) guard(f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f()
}

// Guard runs f while holding the process-wide modify-lock (§5). Exported so
// other components sharing the same lock - the heartbeat tracker's expiry
// handler - can run their own state transitions under it without this
// package exposing the mutex itself.
func (m *PdpModifyRequestMap) Guard(f func()) {
	m.guard(f)
}

// AddRequest is the convenience form of §4.G: forwards whichever of
// update/stateChange is non-nil. Both nil is a no-op.
func (m *PdpModifyRequestMap) AddRequest(ctx context.Context, update *papapi.PdpUpdate, stateChange *papapi.PdpStateChange) error {
	if update != nil {
		if err := m.AddUpdateRequest(ctx, update); err != nil {
			return err
		}
	}
	if stateChange != nil {
		if err := m.AddStateChangeRequest(ctx, stateChange); err != nil {
			return err
		}
	}
	return nil
}

// AddUpdateRequest wraps msg into an UpdateReq, installs the Map-owned
// listener, and delegates to the target PDP's PdpRequests.addSingleton
// (§4.G). Broadcast (empty name) is rejected - this path only issues
// targeted messages.
func (m *PdpModifyRequestMap) AddUpdateRequest(ctx context.Context, msg *papapi.PdpUpdate) error {
	if msg == nil {
		return i18n.NewError(ctx, msgs.MsgNilRequiredArgument, "update")
	}
	if msg.Name == "" {
		return i18n.NewError(ctx, msgs.MsgBroadcastNotAllowed)
	}
	var err error
	m.guard(func() { err = m.addUpdateLocked(ctx, msg) })
	return err
}

// addUpdateLocked is AddUpdateRequest's body, assuming the caller already
// holds m.mu - used both by the public entry point and by disable-PDP
// recovery, which runs from inside a listener callback already under lock.
func (m *PdpModifyRequestMap) addUpdateLocked(ctx context.Context, msg *papapi.PdpUpdate) error {
	req := requests.NewUpdateRequest(msg.Name, msg.PdpGroup, msg.PdpSubgroup, msg.Policies,
		m.updateMaxWait, m.updateMaxRetry, m.dispatcher, m.timerManager, m.pub, m.topic, m.guard)
	return m.addSingleton(ctx, req)
}

// AddStateChangeRequest wraps msg into a StateChangeReq and delegates the
// same way as AddUpdateRequest.
func (m *PdpModifyRequestMap) AddStateChangeRequest(ctx context.Context, msg *papapi.PdpStateChange) error {
	if msg == nil {
		return i18n.NewError(ctx, msgs.MsgNilRequiredArgument, "stateChange")
	}
	if msg.Name == "" {
		return i18n.NewError(ctx, msgs.MsgBroadcastNotAllowed)
	}
	var err error
	m.guard(func() { err = m.addStateChangeLocked(ctx, msg) })
	return err
}

// addStateChangeLocked is AddStateChangeRequest's body under an
// already-held lock (see addUpdateLocked).
func (m *PdpModifyRequestMap) addStateChangeLocked(ctx context.Context, msg *papapi.PdpStateChange) error {
	req := requests.NewStateChangeRequest(msg.Name, msg.State,
		m.stateChangeMaxWait, m.stateChangeMaxRetry, m.dispatcher, m.timerManager, m.pub, m.topic, m.guard)
	return m.addSingleton(ctx, req)
}

// addSingleton runs under the modify-lock: look up or create the target
// PDP's serializer, install the shared listener for it, fold req into its
// singleton slot, and start it immediately if nothing else is publishing.
func (m *PdpModifyRequestMap) addSingleton(ctx context.Context, req *requests.Request) error {
	pdpName := req.Name()
	pr, ok := m.entries[pdpName]
	if !ok {
		pr = requests.NewPdpRequests(pdpName)
		m.entries[pdpName] = pr
	}
	req.SetListener(&mapListener{m: m, pr: pr})

	if err := pr.AddSingleton(ctx, req); err != nil {
		return err
	}
	if pr.Active() == nil {
		if _, err := pr.StartNextRequest(ctx, nil); err != nil {
			return err
		}
	}
	return nil
}

// StopPublishing stops whichever Request is active for pdpName, if any,
// without notifying listeners and without touching pending slots (§4.F
// stopPublishing, §4.G). Idempotent for an unknown PDP.
func (m *PdpModifyRequestMap) StopPublishing(ctx context.Context, pdpName string) {
	m.guard(func() { m.stopPublishingLocked(ctx, pdpName) })
}

// StopPublishingLocked is StopPublishing's body, assuming the caller
// already holds the modify-lock - used by the heartbeat tracker's expiry
// handler, which always runs inside its own guard(...) call and would
// deadlock on the non-reentrant m.mu if it called StopPublishing instead.
func (m *PdpModifyRequestMap) StopPublishingLocked(ctx context.Context, pdpName string) {
	m.stopPublishingLocked(ctx, pdpName)
}

func (m *PdpModifyRequestMap) stopPublishingLocked(ctx context.Context, pdpName string) {
	if pr, ok := m.entries[pdpName]; ok {
		pr.StopPublishing(ctx)
	}
}

// mapListener is the Map-owned RequestListener of §4.G, one instance per
// PdpRequests entry (shared by both its UPDATE and STATE-CHANGE slots).
// Its callbacks always run already holding m.mu - they are invoked
// synchronously from inside a guard(...) call on the dispatcher or timer
// goroutine - so they must never call m.guard or m.mu.Lock themselves.
type mapListener struct {
	m  *PdpModifyRequestMap
	pr *requests.PdpRequests
}

// Success implements §4.G: ignore a response from a PDP other than this
// entry's target (can only occur if a future broadcast path is added),
// otherwise try to start the next queued Request and drop the entry once
// the serializer has nothing left to do.
func (l *mapListener) Success(ctx context.Context, pdpName string) {
	if pdpName != l.pr.PdpName() {
		return
	}
	completed := l.pr.Active()
	started, err := l.pr.StartNextRequest(ctx, completed)
	if err != nil {
		log.L(ctx).Errorf("failed to start next request for pdp '%s': %s", pdpName, err)
		return
	}
	if !started {
		delete(l.m.entries, l.pr.PdpName())
	}
}

// Failure implements §4.G: a response mismatch triggers disable-PDP
// recovery and always removes the entry.
func (l *mapListener) Failure(ctx context.Context, pdpName string, reason string) {
	if pdpName != l.pr.PdpName() {
		return
	}
	log.L(ctx).Warnf("pdp '%s' rejected its requested configuration: %s", pdpName, reason)
	l.m.disablePdp(ctx, l.pr.PdpName())
}

// RetryCountExhausted implements §4.G: treated the same as a failure, with
// a fixed reason. It carries no pdpName - the listener already knows its
// target via l.pr.
func (l *mapListener) RetryCountExhausted(ctx context.Context) {
	log.L(ctx).Warnf("pdp '%s' exhausted its retry count", l.pr.PdpName())
	l.m.disablePdp(ctx, l.pr.PdpName())
}
