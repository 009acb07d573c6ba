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

import "context"

// Listener is the callback surface a Request drives as it leaves the
// PUBLISHING state (§4.E). PdpModifyRequestMap installs one shared,
// per-PdpRequests implementation (§4.G) rather than each Request carrying
// its own - breaking the Request -> PdpRequests -> Map cycle into a single
// named handle, per the "no back-pointers" design note in §9.
type Listener interface {
	Success(ctx context.Context, pdpName string)
	Failure(ctx context.Context, pdpName string, reason string)
	RetryCountExhausted(ctx context.Context)
}
