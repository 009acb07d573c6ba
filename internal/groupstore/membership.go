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

package groupstore

import "github.com/kaleido-io/pap/pkg/papapi"

// RemoveInstanceFromGroups strips pdpName out of every sub-group that lists
// it, returning only the groups that were actually touched - the set
// disable-PDP recovery (§4.G step 3) and heartbeat-loss cleanup (§4.H) both
// need to pass to UpdatePdpGroups. Groups with no matching sub-group are
// left untouched, per §4.G.
func RemoveInstanceFromGroups(groups []papapi.GroupData, pdpName string) []papapi.GroupData {
	changed := make([]papapi.GroupData, 0, len(groups))
	for _, g := range groups {
		touched := false
		for i := range g.SubGroups {
			if g.SubGroups[i].RemoveInstance(pdpName) {
				touched = true
			}
		}
		if touched {
			changed = append(changed, g)
		}
	}
	return changed
}
