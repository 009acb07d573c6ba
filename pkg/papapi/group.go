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

package papapi

// GroupData is the wire/API shape of a persisted policy group (§3). The
// core only ever mutates this during disable-PDP recovery, to strip a
// failed PDP out of one of its sub-groups.
type GroupData struct {
	Name       string         `json:"name"`
	State      string         `json:"state"`
	SubGroups  []SubGroupData `json:"subGroups"`
}

// SubGroupData is one sub-group within a GroupData: a PDP type and the
// instance ids of the PDPs currently assigned to it.
type SubGroupData struct {
	PdpType              string   `json:"pdpType"`
	CurrentInstanceCount int      `json:"currentInstanceCount"`
	PdpInstances         []string `json:"pdpInstances"`
}

// RemoveInstance removes pdpName from this sub-group's instance list and
// decrements CurrentInstanceCount, reporting whether the PDP was present
// (§4.G step 3).
func (sg *SubGroupData) RemoveInstance(pdpName string) bool {
	for i, inst := range sg.PdpInstances {
		if inst == pdpName {
			sg.PdpInstances = append(sg.PdpInstances[:i], sg.PdpInstances[i+1:]...)
			if sg.CurrentInstanceCount > 0 {
				sg.CurrentInstanceCount--
			}
			return true
		}
	}
	return false
}

// HasInstance reports whether pdpName appears in this sub-group.
func (sg *SubGroupData) HasInstance(pdpName string) bool {
	for _, inst := range sg.PdpInstances {
		if inst == pdpName {
			return true
		}
	}
	return false
}
