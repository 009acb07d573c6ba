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

package pdpmgr

import (
	"context"

	"github.com/kaleido-io/pap/internal/groupstore"
	"github.com/kaleido-io/pap/internal/log"
	"github.com/kaleido-io/pap/pkg/papapi"
)

// disablePdp runs disable-PDP recovery (§4.G "Disable-PDP recovery"),
// always under the modify-lock - it is only ever called from a
// mapListener callback, which is itself invoked from inside a guard(...)
// call. A persistence failure at any step is logged; recovery proceeds
// regardless and the PDP's map entry is removed either way.
func (m *PdpModifyRequestMap) disablePdp(ctx context.Context, pdpName string) {
	m.stopPublishingLocked(ctx, pdpName)
	delete(m.entries, pdpName)

	groups, err := m.dao.GetFilteredPdpGroups(ctx, groupstore.GroupFilter{PdpInstanceID: pdpName})
	if err != nil {
		log.L(ctx).Errorf("failed to load groups containing pdp '%s' during disable recovery: %s", pdpName, err)
		groups = nil
	}

	changed := groupstore.RemoveInstanceFromGroups(groups, pdpName)
	wasMember := len(changed) > 0
	if wasMember {
		if err := m.dao.UpdatePdpGroups(ctx, changed); err != nil {
			log.L(ctx).Errorf("failed to persist group cleanup for pdp '%s': %s", pdpName, err)
		}
	}

	// Only a PDP that was actually assigned somewhere needs detaching; a
	// PDP with no group membership just gets quiesced.
	if wasMember {
		detach := &papapi.PdpUpdate{
			PdpMessage: papapi.PdpMessage{Name: pdpName},
			Policies:   []papapi.ToscaPolicy{},
		}
		if err := m.addUpdateLocked(ctx, detach); err != nil {
			log.L(ctx).Errorf("failed to issue detach update for pdp '%s': %s", pdpName, err)
		}
	}

	passivate := &papapi.PdpStateChange{
		PdpMessage: papapi.PdpMessage{Name: pdpName},
		State:      papapi.PdpStatePassive,
	}
	if err := m.addStateChangeLocked(ctx, passivate); err != nil {
		log.L(ctx).Errorf("failed to issue passivate state-change for pdp '%s': %s", pdpName, err)
	}
}
