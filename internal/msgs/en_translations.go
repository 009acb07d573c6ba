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

// Package msgs registers every error and log message raised by the PDP
// modification core, following the same flat PAPnnnnn numbering the teacher
// uses for its PD0nnnn codes.
package msgs

import (
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"golang.org/x/text/language"
)

var registered = map[string]bool{}

func ffe(key, translation string, statusHint ...int) i18n.ErrorMessageKey {
	registered[key] = true
	return i18n.FFE(language.AmericanEnglish, key, translation, statusHint...)
}

var (
	// Argument validation (fail-fast, §7 invalid-argument)
	MsgNilRequiredArgument      = ffe("PAP10001", "Required argument '%s' is nil")
	MsgBroadcastNotAllowed      = ffe("PAP10002", "Message targets no PDP (broadcast); addRequest requires a named PDP")
	MsgListenerNotSet           = ffe("PAP10003", "startPublishing called before a listener was assigned to the request")
	MsgWrongRequestSubtype      = ffe("PAP10004", "reconfigure called with a %s message on a request built for %s")
	MsgRetryLimitAlreadyReached = ffe("PAP10005", "retry count is already at the configured maximum (%d)")

	// Response validation (§4.E, expected at runtime)
	MsgResponseNilPdpName     = ffe("PAP10101", "response from PDP has a nil name")
	MsgResponseNameMismatch   = ffe("PAP10102", "PDP name does not match: expected '%s', got '%s'")
	MsgResponseGroupMismatch  = ffe("PAP10103", "group does not match: expected '%s', got '%s'")
	MsgResponseSubgroupMismatch = ffe("PAP10104", "subgroup does not match: expected '%s', got '%s'")
	MsgResponsePoliciesMismatch = ffe("PAP10105", "policies do not match")
	MsgResponseStateMismatch  = ffe("PAP10106", "state is %s, but expected %s")

	// Timer / dispatcher plumbing
	MsgTimerKeyAlreadyCancelled = ffe("PAP10201", "timer for key '%s' was already cancelled")
	MsgDispatcherNoTypeField    = ffe("PAP10202", "inbound message has no recognizable type discriminator field")
	MsgDispatcherUnknownType    = ffe("PAP10203", "inbound message type '%s' has no registered inner dispatcher")

	// Recovery / persistence (§4.G disable-PDP recovery; failures are logged, not fatal)
	MsgRecoveryGroupLoadFailed   = ffe("PAP10301", "failed to load groups containing pdp '%s': %s")
	MsgRecoveryGroupUpdateFailed = ffe("PAP10302", "failed to persist updated groups after removing pdp '%s': %s")

	// Heartbeat tracker
	MsgHeartbeatMissing = ffe("PAP10401", "pdp '%s' missed its heartbeat deadline")

	// Bus transport (internal/bus/kafka)
	MsgBusMarshalFailed = ffe("PAP10501", "failed to marshal outbound message for topic '%s': %s")
	MsgBusProduceFailed = ffe("PAP10502", "failed to produce message to topic '%s': %s")
	MsgBusClientFailed  = ffe("PAP10503", "failed to construct kafka client for brokers %v: %s")
)
