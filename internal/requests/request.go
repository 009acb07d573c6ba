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

// Package requests implements component E (Request, and its UpdateReq /
// StateChangeReq variants) and component F (PdpRequests) of the PDP
// modification core. Rather than modelling UpdateReq/StateChangeReq as a
// class hierarchy with template methods, a single Request struct carries
// the common state machine and delegates the handful of subtype-specific
// behaviors - priority, response validation and isSameContent - to a small
// tagged-variant interface (§9 "model as a tagged variant, not class
// inheritance").
//
// Grounded on the teacher's inFlightTransactionState (publictxmgr): one
// struct owning a lifecycle plus a pluggable set of stage behaviors, driven
// entirely by callers holding an external lock rather than its own.
package requests

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/firefly-common/pkg/i18n"

	"github.com/kaleido-io/pap/internal/bus/publisher"
	"github.com/kaleido-io/pap/internal/dispatch"
	"github.com/kaleido-io/pap/internal/log"
	"github.com/kaleido-io/pap/internal/msgs"
	"github.com/kaleido-io/pap/internal/timer"
	"github.com/kaleido-io/pap/pkg/papapi"
)

// Kind distinguishes the two Request variants the spec names. Priority
// values match §3 exactly: STATE-CHANGE (0) is performed before UPDATE (1)
// when both are pending.
type Kind int

const (
	KindStateChange Kind = 0
	KindUpdate      Kind = 1
)

func (k Kind) String() string {
	if k == KindStateChange {
		return "STATE_CHANGE"
	}
	return "UPDATE"
}

// State is the Request lifecycle of §4.E: IDLE -> PUBLISHING ->
// {COMPLETED_OK, COMPLETED_FAIL}, self-looping on retry while PUBLISHING.
type State int

const (
	StateIdle State = iota
	StatePublishing
	StateCompletedOK
	StateCompletedFail
)

// variant captures what differs between UpdateReq and StateChangeReq: the
// priority, the response-validation rule, and the isSameContent rule
// (§4.E). Everything else lives on Request itself.
type variant interface {
	kind() Kind
	payload() papapi.OutboundMessage
	validate(status papapi.PdpStatus) error
	isSameContentWith(other variant) bool
}

// Request is one outbound message's full lifecycle (§3 Request, §4.E).
// Exactly one PdpRequests slot owns a Request at a time (no back-pointer
// to it - callbacks run through Listener instead, §9).
type Request struct {
	name          string // stable log tag: the target PDP name, fixed for the life of the slot (§9 Open Question b)
	v             variant
	maxRetryCount int
	retryCount    int
	maxWait       time.Duration

	listener Listener

	dispatcher   *dispatch.RequestIDDispatcher
	timerManager *timer.Manager
	pub          *publisher.Publisher
	topic        string
	guard        func(func()) // wraps dispatcher/timer callbacks in the process-wide modify-lock (§5)

	state State
	token *publisher.Token
	tmr   timer.Timer
}

func newRequest(name string, v variant, maxWait time.Duration, maxRetryCount int,
	dispatcher *dispatch.RequestIDDispatcher, timerManager *timer.Manager, pub *publisher.Publisher, topic string,
	guard func(func())) *Request {
	return &Request{
		name:          name,
		v:             v,
		maxRetryCount: maxRetryCount,
		maxWait:       maxWait,
		dispatcher:    dispatcher,
		timerManager:  timerManager,
		pub:           pub,
		topic:         topic,
		guard:         guard,
		state:         StateIdle,
	}
}

// Name returns the stable log tag for this request (the target PDP name).
func (r *Request) Name() string { return r.name }

// Kind returns which variant this Request is.
func (r *Request) Kind() Kind { return r.v.kind() }

// State returns the current lifecycle state.
func (r *Request) State() State { return r.state }

// Message returns the current full outbound payload.
func (r *Request) Message() papapi.OutboundMessage { return r.v.payload() }

// RetryCount and MaxRetryCount expose the bounds asserted by invariant R2.
func (r *Request) RetryCount() int    { return r.retryCount }
func (r *Request) MaxRetryCount() int { return r.maxRetryCount }

// SetListener installs the Map-owned listener. Must be called before
// StartPublishing (§4.E fail-fast rule).
func (r *Request) SetListener(l Listener) { r.listener = l }

// IsSameContent reports whether other carries content equivalent to this
// Request's current message, per the subtype-specific rule in §4.E.
func (r *Request) IsSameContent(other *Request) bool {
	if other == nil || other.v.kind() != r.v.kind() {
		return false
	}
	return r.v.isSameContentWith(other.v)
}

// ResetRetryCount implements invariant P2: when a redundant singleton
// arrives, the active Request is kept and its retry counter reset rather
// than duplicated.
func (r *Request) ResetRetryCount() {
	r.retryCount = 0
}

// BumpRetryCount implements invariant R2: returns false, leaving the count
// unchanged, once the configured maximum has been reached.
func (r *Request) BumpRetryCount() bool {
	if r.retryCount >= r.maxRetryCount {
		return false
	}
	r.retryCount++
	return true
}

// StartPublishing registers a response listener, a timeout, and either
// reuses preferredToken (superseding whatever it held) or enqueues a fresh
// Token (§4.E). Fails fast if no listener has been assigned. Idempotent
// while already PUBLISHING.
func (r *Request) StartPublishing(ctx context.Context, preferredToken *publisher.Token) error {
	if r.listener == nil {
		return i18n.NewError(ctx, msgs.MsgListenerNotSet)
	}
	if r.state == StatePublishing {
		return nil
	}

	r.registerListener(ctx)
	r.registerTimer(ctx)

	msg := r.v.payload()
	if preferredToken != nil {
		if _, ok := preferredToken.ReplaceItem(msg); ok {
			r.token = preferredToken
		} else {
			r.token = publisher.NewToken(msg)
			r.pub.Enqueue(r.token)
		}
	} else {
		r.token = publisher.NewToken(msg)
		r.pub.Enqueue(r.token)
	}

	r.state = StatePublishing
	return nil
}

func (r *Request) registerListener(ctx context.Context) {
	reqID := r.v.payload().Envelope().RequestID
	r.dispatcher.Register(reqID, func(cctx context.Context, status papapi.PdpStatus) {
		r.guard(func() { r.ProcessResponse(cctx, status) })
	})
}

func (r *Request) registerTimer(ctx context.Context) {
	key := r.v.payload().Envelope().RequestID
	r.tmr = r.timerManager.Register(key, r.maxWait, func(string) {
		r.guard(func() { r.HandleTimeout(context.Background()) })
	})
}

// Reconfigure swaps the message this Request sends, reusing its live
// registrations while PUBLISHING (§4.E): cancel+re-register the timer,
// unregister+re-register the dispatcher listener under the new requestId,
// and place the new message into the existing token (or optionalReplacementToken,
// nulling the old one). Returns true if the new content differs from the
// old (isSameContent is false) - signalling the caller that identity may
// need re-evaluating. Rejects a message of the wrong subtype.
func (r *Request) Reconfigure(ctx context.Context, newEnvelope variant, optionalReplacementToken *publisher.Token) (bool, error) {
	if newEnvelope.kind() != r.v.kind() {
		return false, i18n.NewError(ctx, msgs.MsgWrongRequestSubtype, newEnvelope.kind(), r.v.kind())
	}
	changed := !r.v.isSameContentWith(newEnvelope)
	oldV := r.v
	r.v = newEnvelope

	if r.state != StatePublishing {
		return changed, nil
	}

	if r.tmr != nil {
		r.tmr.Cancel()
	}
	r.dispatcher.Unregister(oldV.payload().Envelope().RequestID)
	r.registerListener(ctx)
	r.registerTimer(ctx)

	target := r.token
	if optionalReplacementToken != nil {
		if r.token != nil {
			r.token.ReplaceItem(nil)
		}
		target = optionalReplacementToken
		r.token = optionalReplacementToken
	}
	if target != nil {
		if _, ok := target.ReplaceItem(r.v.payload()); !ok {
			r.token = publisher.NewToken(r.v.payload())
			r.pub.Enqueue(r.token)
		}
	} else {
		r.token = publisher.NewToken(r.v.payload())
		r.pub.Enqueue(r.token)
	}
	return changed, nil
}

// StopPublishing unregisters the listener and cancels the timer. With
// retainToken=true the token's slot is emptied (the Publisher will skip
// it). With retainToken=false the (possibly still-live) token is returned
// so PdpRequests can hand it directly to the next Request (§4.E, §4.F
// startNextRequest).
func (r *Request) StopPublishing(ctx context.Context, retainToken bool) *publisher.Token {
	if r.tmr != nil {
		r.tmr.Cancel()
		r.tmr = nil
	}
	r.dispatcher.Unregister(r.v.payload().Envelope().RequestID)

	tok := r.token
	r.token = nil
	if retainToken {
		if tok != nil {
			tok.ReplaceItem(nil)
		}
		return nil
	}
	return tok
}

// ProcessResponse validates an inbound status against this Request's
// current message and drives the matching listener callback (§4.E).
func (r *Request) ProcessResponse(ctx context.Context, status papapi.PdpStatus) {
	if r.state != StatePublishing {
		// A response arriving after stopPublishing is dropped silently.
		return
	}
	effectiveName, err := r.validateCommon(ctx, status)
	if err == nil {
		err = r.v.validate(status)
	}
	r.finishPublishing(ctx)

	if err != nil {
		log.L(ctx).Warnf("request for pdp '%s' failed: %s", r.name, err)
		r.state = StateCompletedFail
		r.listener.Failure(ctx, effectiveName, err.Error())
		return
	}
	r.state = StateCompletedOK
	r.listener.Success(ctx, effectiveName)
}

func (r *Request) finishPublishing(ctx context.Context) {
	if r.tmr != nil {
		r.tmr.Cancel()
		r.tmr = nil
	}
	r.dispatcher.Unregister(r.v.payload().Envelope().RequestID)
}

// validateCommon implements the base-class validation shared by every
// subtype (§4.E). It returns the effective PDP name to report to the
// listener: the response's name, accepted unconditionally when the
// outgoing message was a broadcast.
func (r *Request) validateCommon(ctx context.Context, status papapi.PdpStatus) (string, error) {
	out := r.v.payload().Envelope()
	if status.Name == "" {
		return "", i18n.NewError(ctx, msgs.MsgResponseNilPdpName)
	}
	if !out.IsBroadcast() && status.Name != out.Name {
		return status.Name, i18n.NewError(ctx, msgs.MsgResponseNameMismatch, out.Name, status.Name)
	}
	return status.Name, nil
}

// HandleTimeout implements §4.E: if the token was never drained by the
// Publisher, the timeout was premature (the message is still queued
// behind other work) - reset the retry count and restart cleanly rather
// than counting it as a failed round trip. Otherwise bump the retry count:
// on success, republish; on exhaustion, report to the listener.
func (r *Request) HandleTimeout(ctx context.Context) {
	if r.state != StatePublishing {
		return
	}
	if r.token != nil && !r.token.Drained() {
		r.retryCount = 0
		r.restartPublishing(ctx)
		return
	}
	if !r.BumpRetryCount() {
		r.finishPublishing(ctx)
		r.state = StateCompletedFail
		r.listener.RetryCountExhausted(ctx)
		return
	}
	r.restartPublishing(ctx)
}

// restartPublishing re-registers the timer and dispatcher listener and
// re-sends the current message, without requiring a fresh call into
// StartPublishing's idempotency guard (the Request never actually left
// PUBLISHING).
func (r *Request) restartPublishing(ctx context.Context) {
	if r.tmr != nil {
		r.tmr.Cancel()
	}
	r.dispatcher.Unregister(r.v.payload().Envelope().RequestID)
	r.registerListener(ctx)
	r.registerTimer(ctx)

	if r.token != nil {
		if _, ok := r.token.ReplaceItem(r.v.payload()); ok {
			return
		}
	}
	r.token = publisher.NewToken(r.v.payload())
	r.pub.Enqueue(r.token)
}

// newRequestID generates a fresh correlation id for an outbound message,
// the way the teacher mints a uuid per transaction (components/transaction.go).
func newRequestID() string {
	return uuid.New().String()
}
