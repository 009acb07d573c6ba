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

import (
	"context"

	"github.com/kaleido-io/pap/pkg/papapi"
)

// GroupFilter selects the groups disable-PDP recovery (§4.G step 2) and the
// heartbeat tracker (§4.H) need to load: every group with a sub-group that
// lists the given PDP instance.
type GroupFilter struct {
	PdpInstanceID string
}

// PolicyFilter selects registered policies by name/version prefix, the
// collaborator behind the REST operator surface's group-deploy validation
// (out of scope here, but the DAO method is part of §6's enumerated
// interface).
type PolicyFilter struct {
	NamePrefix string
}

// DAO is the policy store collaborator of §6: `getFilteredPdpGroups`,
// `updatePdpGroups`, `getPolicyList`, `getFilteredPolicyList`. The core
// never retries DAO operations itself (§7) - a failure is logged by the
// caller and recovery proceeds regardless.
type DAO interface {
	GetFilteredPdpGroups(ctx context.Context, filter GroupFilter) ([]papapi.GroupData, error)
	UpdatePdpGroups(ctx context.Context, groups []papapi.GroupData) error
	GetPolicyList(ctx context.Context, name, version string) ([]papapi.ToscaPolicy, error)
	GetFilteredPolicyList(ctx context.Context, filter PolicyFilter) ([]papapi.ToscaPolicy, error)
}
