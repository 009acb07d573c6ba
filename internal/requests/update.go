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
	"encoding/json"
	"time"

	"github.com/hyperledger/firefly-common/pkg/i18n"

	"github.com/kaleido-io/pap/internal/bus/publisher"
	"github.com/kaleido-io/pap/internal/dispatch"
	"github.com/kaleido-io/pap/internal/msgs"
	"github.com/kaleido-io/pap/internal/timer"
	"github.com/kaleido-io/pap/pkg/papapi"
)

// updateVariant is the UpdateReq behavior of §4.E: priority 1, and
// response/isSameContent rules that compare group, subgroup and the *set*
// of policies (identifiers on the wire, full ToscaPolicy values for
// isSameContent).
type updateVariant struct {
	msg *papapi.PdpUpdate
}

func newUpdateVariant(pdpName string, pdpGroup, pdpSubgroup *string, policies []papapi.ToscaPolicy) *updateVariant {
	return &updateVariant{msg: &papapi.PdpUpdate{
		PdpMessage: papapi.PdpMessage{
			Name:        pdpName,
			RequestID:   newRequestID(),
			MessageName: papapi.MessageNamePdpUpdate,
		},
		PdpGroup:    pdpGroup,
		PdpSubgroup: pdpSubgroup,
		Policies:    policies,
	}}
}

func (u *updateVariant) kind() Kind                      { return KindUpdate }
func (u *updateVariant) payload() papapi.OutboundMessage { return u.msg }

func (u *updateVariant) validate(status papapi.PdpStatus) error {
	ctx := context.Background()
	if !papapi.StringsEqual(u.msg.PdpGroup, status.PdpGroup) {
		return i18n.NewError(ctx, msgs.MsgResponseGroupMismatch, deref(u.msg.PdpGroup), deref(status.PdpGroup))
	}
	if !papapi.StringsEqual(u.msg.PdpSubgroup, status.PdpSubgroup) {
		return i18n.NewError(ctx, msgs.MsgResponseSubgroupMismatch, deref(u.msg.PdpSubgroup), deref(status.PdpSubgroup))
	}
	want := papapi.PolicyIdentifierSet(u.msg.Policies)
	got := papapi.StatusPolicySet(status.Policies)
	if !policySetsEqual(want, got) {
		return i18n.NewError(ctx, msgs.MsgResponsePoliciesMismatch)
	}
	return nil
}

func (u *updateVariant) isSameContentWith(other variant) bool {
	o, ok := other.(*updateVariant)
	if !ok {
		return false
	}
	if !papapi.StringsEqual(u.msg.PdpGroup, o.msg.PdpGroup) {
		return false
	}
	if !papapi.StringsEqual(u.msg.PdpSubgroup, o.msg.PdpSubgroup) {
		return false
	}
	return toscaPolicySetsEqual(u.msg.Policies, o.msg.Policies)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func policySetsEqual(a, b map[papapi.PolicyIdentifier]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// toscaPolicySetsEqual compares the *full* ToscaPolicy values as a set
// (not list order), per §4.E isSameContent - stricter than the identifier-
// only comparison validate() uses against an inbound response. ToscaPolicy
// carries an arbitrary Properties map, which isn't a comparable Go value,
// so the set is keyed on each policy's canonical JSON encoding instead.
func toscaPolicySetsEqual(a, b []papapi.ToscaPolicy) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, p := range a {
		counts[fingerprint(p)]++
	}
	for _, p := range b {
		f := fingerprint(p)
		if counts[f] == 0 {
			return false
		}
		counts[f]--
	}
	return true
}

func fingerprint(p papapi.ToscaPolicy) string {
	b, err := json.Marshal(p)
	if err != nil {
		// Properties containing a non-serializable value: fall back to
		// identifier-only comparison rather than panicking.
		return p.Name + "@" + p.Version
	}
	return string(b)
}

// NewUpdateRequest builds an UPDATE Request targeting pdpName (§3, §4.E).
func NewUpdateRequest(pdpName string, pdpGroup, pdpSubgroup *string, policies []papapi.ToscaPolicy,
	maxWait time.Duration, maxRetryCount int,
	dispatcher *dispatch.RequestIDDispatcher, timerManager *timer.Manager, pub *publisher.Publisher, topic string,
	guard func(func())) *Request {
	v := newUpdateVariant(pdpName, pdpGroup, pdpSubgroup, policies)
	return newRequest(pdpName, v, maxWait, maxRetryCount, dispatcher, timerManager, pub, topic, guard)
}
