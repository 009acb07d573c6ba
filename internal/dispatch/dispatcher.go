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

// Package dispatch implements the two-level inbound routing of §4.D: an
// outer stage keyed on the message-type discriminator, and a RequestId
// dispatcher that correlates a PdpStatus to the listener registered for
// its requestId, falling back to anonymous (heartbeat) listeners. Grounded
// on how transportmgr routes an inbound prototk.PaladinMsg by its
// Component/MessageType fields to the right handler before any
// correlation-id lookup happens inside that handler.
package dispatch

import (
	"context"
	"sync"

	"github.com/kaleido-io/pap/internal/log"
	"github.com/kaleido-io/pap/pkg/papapi"
)

// StatusListener receives a correlated or anonymous PdpStatus. Delivery is
// synchronous on the dispatcher's inbound goroutine (§4.D) - listeners must
// return promptly.
type StatusListener func(ctx context.Context, status papapi.PdpStatus)

// RequestIDDispatcher routes by requestId, with a fallback fan-out to
// anonymous listeners for messages with no correlation id (heartbeats) or
// with a correlation id that has no registered listener.
type RequestIDDispatcher struct {
	mu        sync.RWMutex
	listeners map[string]StatusListener
	anonymous map[int]StatusListener
	nextAnon  int
}

func NewRequestIDDispatcher() *RequestIDDispatcher {
	return &RequestIDDispatcher{
		listeners: make(map[string]StatusListener),
		anonymous: make(map[int]StatusListener),
	}
}

// Register installs (or idempotently replaces) the listener for requestId
// (§4.D).
func (d *RequestIDDispatcher) Register(requestID string, listener StatusListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[requestID] = listener
}

// Unregister removes the listener for requestId, if any. Idempotent.
func (d *RequestIDDispatcher) Unregister(requestID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.listeners, requestID)
}

// RegisterAnonymous adds a heartbeat-style fan-out listener and returns a
// token to unregister it later.
func (d *RequestIDDispatcher) RegisterAnonymous(listener StatusListener) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextAnon
	d.nextAnon++
	d.anonymous[id] = listener
	return id
}

func (d *RequestIDDispatcher) UnregisterAnonymous(id int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.anonymous, id)
}

// Dispatch routes status to the listener registered for its correlation
// id, or to every anonymous listener if there is no such registration
// (§4.D). A response arriving after its listener has been unregistered
// (e.g. by stopPublishing) never reaches its Request; only the anonymous
// listeners see it.
func (d *RequestIDDispatcher) Dispatch(ctx context.Context, status papapi.PdpStatus) {
	id := status.CorrelationID()
	d.mu.RLock()
	listener, ok := d.listeners[id]
	var anon []StatusListener
	if !ok {
		anon = make([]StatusListener, 0, len(d.anonymous))
		for _, l := range d.anonymous {
			anon = append(anon, l)
		}
	}
	d.mu.RUnlock()

	if ok {
		listener(ctx, status)
		return
	}
	if id != "" {
		log.L(ctx).Debugf("no listener registered for requestId '%s', passing to anonymous listeners", id)
	}
	for _, l := range anon {
		l(ctx, status)
	}
}

// MessageDispatcher is the outer stage of §4.D: it reads the type
// discriminator off an inbound envelope and routes to the inner dispatcher
// registered for that type. This core only has one inner dispatcher (the
// RequestIDDispatcher for PDP_STATUS), but the outer stage is kept general
// so additional inbound message kinds can be added without touching
// correlation logic.
type MessageDispatcher struct {
	mu    sync.RWMutex
	inner map[papapi.MessageName]*RequestIDDispatcher
}

func NewMessageDispatcher() *MessageDispatcher {
	return &MessageDispatcher{inner: make(map[papapi.MessageName]*RequestIDDispatcher)}
}

// RegisterType wires up the inner dispatcher responsible for one message
// type.
func (d *MessageDispatcher) RegisterType(messageName papapi.MessageName, inner *RequestIDDispatcher) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inner[messageName] = inner
}

// OnMessage is the Dispatcher's bus-receive callback (§4.D, §5 suspension
// point c).
func (d *MessageDispatcher) OnMessage(ctx context.Context, status papapi.PdpStatus) {
	d.mu.RLock()
	inner, ok := d.inner[status.MessageName]
	d.mu.RUnlock()
	if !ok {
		log.L(ctx).Debugf("no inner dispatcher registered for message type '%s'", status.MessageName)
		return
	}
	inner.Dispatch(ctx, status)
}
