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

// Package papapi is the wire-format boundary of the PDP modification core:
// the JSON shapes exchanged over the policy-pdp-pap bus topic (§6), mirroring
// how the teacher's toolkit/pkg/pldapi separates wire types from internal
// persistence/model types.
package papapi

// PdpState is the lifecycle state a PDP can be instructed into, or can
// report back (§3).
type PdpState string

const (
	PdpStatePassive    PdpState = "PASSIVE"
	PdpStateSafe       PdpState = "SAFE"
	PdpStateActive     PdpState = "ACTIVE"
	PdpStateTerminated PdpState = "TERMINATED"
)

// MessageName is the outer type discriminator the Dispatcher's first stage
// reads off an inbound/outbound envelope (§4.D, §6).
type MessageName string

const (
	MessageNamePdpUpdate      MessageName = "PDP_UPDATE"
	MessageNamePdpStateChange MessageName = "PDP_STATE_CHANGE"
	MessageNamePdpStatus      MessageName = "PDP_STATUS"
)

// ToscaPolicy identifies and (for UPDATE) carries a policy pushed to a PDP.
// Equality of the ToscaPolicy value (not just its identifier) is used by
// PdpRequests.isSameContent for UPDATE coalescing (§4.E).
type ToscaPolicy struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	// TypeName/TypeVersion and Properties are opaque to this core: it never
	// renders or evaluates policies (§1 non-goals), it only compares and
	// forwards them.
	TypeName    string         `json:"type,omitempty"`
	TypeVersion string         `json:"type_version,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
}

// Identifier returns the PolicyIdentifier this ToscaPolicy corresponds to,
// used to compare the outgoing policy set against an inbound PdpStatus's
// policy list (§4.E UpdateReq validation).
func (p ToscaPolicy) Identifier() PolicyIdentifier {
	return PolicyIdentifier{Name: p.Name, Version: p.Version}
}

// PolicyIdentifier is the {name, version} pair a PdpStatus reports back,
// per §6's inbound wire shape `policies: [ {name, version} ]`.
type PolicyIdentifier struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// PdpMessage is the common envelope shared by every outbound message kind
// (§3). name is the target PDP; an empty name means broadcast.
type PdpMessage struct {
	Name        string      `json:"name,omitempty"`
	RequestID   string      `json:"requestId"`
	MessageName MessageName `json:"messageName"`
}

// IsBroadcast reports whether this message targets no specific PDP.
func (m PdpMessage) IsBroadcast() bool {
	return m.Name == ""
}

// OutboundMessage is implemented by every concrete outbound wire message
// (PdpUpdate, PdpStateChange, and PdpMessage itself). Holding Tokens and
// Sink payloads as this interface rather than as *PdpMessage means a
// Sink's json.Marshal sees the full concrete struct - policies, group,
// subgroup, state - not just the three fields the envelope shares.
type OutboundMessage interface {
	Envelope() *PdpMessage
}

// Envelope lets a bare PdpMessage stand in for OutboundMessage on its own,
// the shape used by tests that only care about correlation plumbing.
func (m *PdpMessage) Envelope() *PdpMessage { return m }

// PdpUpdate instructs a PDP which group/subgroup/policy set to host (§3, §6).
// A nil PdpGroup/PdpSubgroup together with an empty Policies list is the
// "detach" message disable-PDP recovery sends (§4.G step 5).
type PdpUpdate struct {
	PdpMessage
	PdpGroup    *string       `json:"pdpGroup,omitempty"`
	PdpSubgroup *string       `json:"pdpSubgroup,omitempty"`
	Policies    []ToscaPolicy `json:"policies"`
}

// Envelope exposes the shared fields of the outer PdpMessage, so code that
// only needs the requestId/name/messageName doesn't need to type-switch on
// the concrete wire message (§4.E, §4.D).
func (u *PdpUpdate) Envelope() *PdpMessage { return &u.PdpMessage }

// PdpStateChange instructs a PDP to move to a lifecycle state (§3, §6).
type PdpStateChange struct {
	PdpMessage
	State PdpState `json:"state"`
}

// Envelope exposes the shared fields, mirroring PdpUpdate.Envelope.
func (s *PdpStateChange) Envelope() *PdpMessage { return &s.PdpMessage }

// PdpStatus is the inbound correlated response / heartbeat (§3, §6).
// ResponseTo is the requestId this is a response to when present; absent
// (heartbeat) status reports are routed to anonymous listeners instead.
type PdpStatus struct {
	Name        string             `json:"name"`
	RequestID   string             `json:"requestId,omitempty"`
	Response    string             `json:"response,omitempty"`
	ResponseTo  string             `json:"responseTo,omitempty"`
	MessageName MessageName        `json:"messageName"`
	PdpGroup    *string            `json:"pdpGroup,omitempty"`
	PdpSubgroup *string            `json:"pdpSubgroup,omitempty"`
	State       PdpState           `json:"state"`
	Policies    []PolicyIdentifier `json:"policies"`
}

// CorrelationID returns the requestId this status correlates to, preferring
// `response` and falling back to `responseTo` as §6 specifies. An empty
// result means this is an anonymous (heartbeat) status.
func (s PdpStatus) CorrelationID() string {
	if s.Response != "" {
		return s.Response
	}
	return s.ResponseTo
}

// PolicyIdentifierSet builds the set (not list) of policy identifiers
// carried by an UPDATE's policy list, used for the UpdateReq response
// validation rule (§4.E). A nil list is treated as empty.
func PolicyIdentifierSet(policies []ToscaPolicy) map[PolicyIdentifier]struct{} {
	set := make(map[PolicyIdentifier]struct{}, len(policies))
	for _, p := range policies {
		set[p.Identifier()] = struct{}{}
	}
	return set
}

// StatusPolicySet builds the set of policy identifiers an inbound PdpStatus
// reports, for comparison against PolicyIdentifierSet.
func StatusPolicySet(policies []PolicyIdentifier) map[PolicyIdentifier]struct{} {
	set := make(map[PolicyIdentifier]struct{}, len(policies))
	for _, p := range policies {
		set[p] = struct{}{}
	}
	return set
}

// StringsEqual is the null-equivalent string comparison §4.E requires for
// group/subgroup matching: nil and "" are treated as equivalent.
func StringsEqual(a, b *string) bool {
	av, bv := "", ""
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return av == bv
}
