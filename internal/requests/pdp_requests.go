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

	"github.com/kaleido-io/pap/internal/bus/publisher"
)

// PdpRequests is the per-PDP serializer of §4.F: at most one Request per
// Kind is held (a pending STATE-CHANGE and a pending UPDATE), and at most
// one is ever actively PUBLISHING at a time. Priority favors STATE-CHANGE
// (Kind 0) over UPDATE (Kind 1) whenever both are waiting. All methods are
// called by PdpModifyRequestMap while already holding the process-wide
// modify-lock (§5) - PdpRequests itself does no locking, and does not drive
// its own Requests' listeners: the Map installs those and decides, from
// their callbacks, when to call StartNextRequest (§4.G).
type PdpRequests struct {
	pdpName string
	slots   map[Kind]*Request
	active  *Request
}

// NewPdpRequests creates the serializer for one PDP.
func NewPdpRequests(pdpName string) *PdpRequests {
	return &PdpRequests{
		pdpName: pdpName,
		slots:   make(map[Kind]*Request),
	}
}

// PdpName returns the target PDP this serializer belongs to.
func (p *PdpRequests) PdpName() string { return p.pdpName }

// Active returns the Request currently PUBLISHING, or nil.
func (p *PdpRequests) Active() *Request { return p.active }

// Pending returns the Request queued (but not yet started) for kind, or nil.
func (p *PdpRequests) Pending(kind Kind) *Request {
	if r := p.slots[kind]; r != nil && r != p.active {
		return r
	}
	return nil
}

// Empty reports whether no Request, active or pending, remains (§3: entries
// are removed from the Map once their PdpRequests becomes empty).
func (p *PdpRequests) Empty() bool {
	return len(p.slots) == 0
}

// AddSingleton installs req into its Kind's slot (§4.F singleton rule):
//   - an empty slot takes req as-is (its listener must already be set by
//     the caller, per §4.G - PdpRequests never assigns one itself);
//   - an occupied slot with equivalent content is left alone, with its
//     retry count reset (invariant P2 - a redundant request never restarts
//     the round-trip clock);
//   - an occupied slot with different content is reconfigured in place,
//     re-using the live registrations/token if it is the active request.
func (p *PdpRequests) AddSingleton(ctx context.Context, req *Request) error {
	kind := req.Kind()
	existing := p.slots[kind]
	if existing == nil {
		p.slots[kind] = req
		return nil
	}
	if existing.IsSameContent(req) {
		existing.ResetRetryCount()
		return nil
	}
	_, err := existing.Reconfigure(ctx, req.v, nil)
	return err
}

// StartNextRequest picks the highest-priority queued request (STATE-CHANGE
// before UPDATE, §3) and starts it, handing it completed's token directly
// if completed is non-nil so the Publisher sees a supersede rather than a
// fresh enqueue (§4.F). completed (if not nil) is cleared from its slot
// first. Returns true if another request was started.
func (p *PdpRequests) StartNextRequest(ctx context.Context, completed *Request) (bool, error) {
	if completed != nil {
		if p.active == completed {
			p.active = nil
		}
		delete(p.slots, completed.Kind())
	}

	next := p.pickNext()
	if next == nil {
		return false, nil
	}

	var preferredToken *publisher.Token
	if completed != nil {
		preferredToken = completed.StopPublishing(ctx, false)
	}
	if err := next.StartPublishing(ctx, preferredToken); err != nil {
		return false, err
	}
	p.active = next
	return true, nil
}

// pickNext returns the queued (not already active) slot with the lowest
// Kind value - STATE-CHANGE before UPDATE, per §3's priority rule.
func (p *PdpRequests) pickNext() *Request {
	for _, kind := range []Kind{KindStateChange, KindUpdate} {
		if r := p.slots[kind]; r != nil && r != p.active {
			return r
		}
	}
	return nil
}

// StopPublishing stops the active request, if any, without notifying
// listeners and drops it from its slot; pending (not yet started) requests
// stay queued. Used on heartbeat loss, and during disable-PDP recovery
// before corrective requests are reissued (§4.G).
func (p *PdpRequests) StopPublishing(ctx context.Context) {
	if p.active != nil {
		p.active.StopPublishing(ctx, true)
		delete(p.slots, p.active.Kind())
		p.active = nil
	}
}
