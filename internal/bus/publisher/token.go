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

package publisher

import (
	"sync/atomic"

	"github.com/kaleido-io/pap/pkg/papapi"
)

// slot is the value a Token's atomic.Pointer holds. A nil message
// with drained=false is an empty-but-live slot (the Publisher will silently
// skip it when it dequeues). drained=true means the Publisher has already
// read this slot and it can never be replaced again (§4.B).
type slot struct {
	message papapi.OutboundMessage
	drained bool
}

// Token is the swappable one-slot cell described in §3/§4.B: it is enqueued
// once on a Publisher's queue, and its content can be replaced in place
// any number of times before the Publisher drains it. Mutation is a
// lock-free CAS loop rather than a mutex, per §5's shared-resource policy.
type Token struct {
	cell atomic.Pointer[slot]
}

// NewToken creates a live token holding msg.
func NewToken(msg papapi.OutboundMessage) *Token {
	t := &Token{}
	t.cell.Store(&slot{message: msg})
	return t
}

// Get returns the token's current message without consuming it. The
// Publisher worker does not use it; it takes the message with drain.
func (t *Token) Get() papapi.OutboundMessage {
	return t.cell.Load().message
}

// ReplaceItem atomically swaps the slot's message for newMsg and returns
// the prior message plus whether the swap succeeded. It fails (ok=false)
// once the Publisher has drained the slot - the caller must then enqueue a
// fresh Token for its next message (§4.B).
func (t *Token) ReplaceItem(newMsg papapi.OutboundMessage) (old papapi.OutboundMessage, ok bool) {
	for {
		cur := t.cell.Load()
		if cur.drained {
			return nil, false
		}
		next := &slot{message: newMsg}
		if t.cell.CompareAndSwap(cur, next) {
			return cur.message, true
		}
	}
}

// Drained reports whether the Publisher has already taken this slot's
// message. A Request's timeout handler uses this to distinguish "the
// message is still sitting in the queue" from "it was sent and we got no
// reply" (§4.E).
func (t *Token) Drained() bool {
	return t.cell.Load().drained
}

// drain is called exactly once by the Publisher worker when it dequeues
// this token: it atomically takes whatever message is present and marks
// the slot drained so no further replacement is possible.
func (t *Token) drain() papapi.OutboundMessage {
	for {
		cur := t.cell.Load()
		if cur.drained {
			// Already drained - nothing to send. Should not happen in
			// practice since a Token is only ever enqueued once.
			return nil
		}
		next := &slot{drained: true}
		if t.cell.CompareAndSwap(cur, next) {
			return cur.message
		}
	}
}

// empty clears the slot's message without draining it, so the Publisher
// skips an enqueued-but-not-yet-sent message. It is ReplaceItem(nil), the
// same call Request.StopPublishing(retainToken=true) makes directly
// (§4.E, §5: "token.replaceItem(nil) is the sole cancellation path").
func (t *Token) empty() {
	t.ReplaceItem(nil)
}
