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
	"time"

	"github.com/hyperledger/firefly-common/pkg/i18n"

	"github.com/kaleido-io/pap/internal/bus/publisher"
	"github.com/kaleido-io/pap/internal/dispatch"
	"github.com/kaleido-io/pap/internal/msgs"
	"github.com/kaleido-io/pap/internal/timer"
	"github.com/kaleido-io/pap/pkg/papapi"
)

// stateChangeVariant is the StateChangeReq behavior of §4.E: priority 0
// (serviced before any pending UPDATE), and a response/isSameContent rule
// that only looks at the target lifecycle state.
type stateChangeVariant struct {
	msg *papapi.PdpStateChange
}

func newStateChangeVariant(pdpName string, state papapi.PdpState) *stateChangeVariant {
	return &stateChangeVariant{msg: &papapi.PdpStateChange{
		PdpMessage: papapi.PdpMessage{
			Name:        pdpName,
			RequestID:   newRequestID(),
			MessageName: papapi.MessageNamePdpStateChange,
		},
		State: state,
	}}
}

func (s *stateChangeVariant) kind() Kind                      { return KindStateChange }
func (s *stateChangeVariant) payload() papapi.OutboundMessage { return s.msg }

func (s *stateChangeVariant) validate(status papapi.PdpStatus) error {
	if status.State != s.msg.State {
		return i18n.NewError(context.Background(), msgs.MsgResponseStateMismatch, status.State, s.msg.State)
	}
	return nil
}

func (s *stateChangeVariant) isSameContentWith(other variant) bool {
	o, ok := other.(*stateChangeVariant)
	if !ok {
		return false
	}
	return s.msg.State == o.msg.State
}

// NewStateChangeRequest builds a STATE-CHANGE Request targeting pdpName
// (§3, §4.E).
func NewStateChangeRequest(pdpName string, state papapi.PdpState,
	maxWait time.Duration, maxRetryCount int,
	dispatcher *dispatch.RequestIDDispatcher, timerManager *timer.Manager, pub *publisher.Publisher, topic string,
	guard func(func())) *Request {
	v := newStateChangeVariant(pdpName, state)
	return newRequest(pdpName, v, maxWait, maxRetryCount, dispatcher, timerManager, pub, topic, guard)
}
