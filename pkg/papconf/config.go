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

// Package papconf holds the plain-struct configuration shapes the core is
// parameterized by (§6). Loading these structs from a file or environment
// is the outer parameter-loading collaborator's job (out of scope, §1);
// this package only defines what gets populated, the way the teacher's
// pldconf package separates shape from loading mechanism.
package papconf

// RequestParameters configures one of the two timeout/retry policies used
// by the core: one for UPDATE requests, one for STATE-CHANGE requests
// (§3 PdpModifyRequestMap, §6).
type RequestParameters struct {
	MaxWaitMs      *int `json:"maxWaitMs"`
	MaxRetryCount  *int `json:"maxRetryCount"`
}

// TopicParameters configures the bus endpoint the core's Publisher and
// Dispatcher are wired to (§6 topic.policy-pdp-pap).
type TopicParameters struct {
	Topic   string   `json:"topic"`
	Brokers []string `json:"servers"`
}

// Parameters is the full configuration surface for the PDP modification
// core (§6's enumerated configuration list).
type Parameters struct {
	HeartBeatMs         *int              `json:"heartBeatMs"`
	MaxMissedHeartbeats *int              `json:"maxMissedHeartbeats"`
	UpdateParameters      RequestParameters `json:"updateParameters"`
	StateChangeParameters RequestParameters `json:"stateChangeParameters"`
	Topic               TopicParameters   `json:"topic"`
}

const (
	DefaultHeartBeatMs         = 60000
	DefaultMaxMissedHeartbeats = 3
	DefaultMaxWaitMs           = 30000
	DefaultMaxRetryCount       = 1
)
