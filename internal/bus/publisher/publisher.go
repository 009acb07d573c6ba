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

// Package publisher implements the single-writer pump described in §4.A:
// one background worker per bus topic, draining an ordered queue of Tokens
// to a Sink. Grounded on the teacher's transportmgr/peer.go sender loop,
// which plays the same role (single goroutine per peer draining a send
// queue to a transport), generalized here from one queue per peer to one
// queue per topic shared across every PDP.
package publisher

import (
	"context"
	"sync"

	"github.com/kaleido-io/pap/internal/log"
	"github.com/kaleido-io/pap/pkg/papapi"
)

// Sink is the bus transport collaborator (§1 non-goal: this core does not
// own the bus transport). The concrete implementation lives outside this
// package - see internal/bus/kafka for the one wired for completeness.
type Sink interface {
	Send(ctx context.Context, topic string, msg papapi.OutboundMessage) error
}

// Publisher is the component A single-writer pump for one outbound topic.
type Publisher struct {
	ctx    context.Context
	cancel context.CancelFunc
	topic  string
	sink   Sink

	queueCh chan *Token
	done    chan struct{}

	mu      sync.Mutex
	stopped bool
}

// New builds a Publisher for one topic. queueDepth bounds the channel used
// to hand Tokens to the worker; enqueue still never blocks the caller in
// practice because the core only ever has one in-flight Token per pending
// Request, so the depth just needs to be generous, not exact.
func New(ctx context.Context, topic string, sink Sink, queueDepth int) *Publisher {
	pctx, cancel := context.WithCancel(ctx)
	p := &Publisher{
		ctx:     pctx,
		cancel:  cancel,
		topic:   topic,
		sink:    sink,
		queueCh: make(chan *Token, queueDepth),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Enqueue appends token to the FIFO queue. Non-blocking to the caller in
// the steady state (§4.A); if the queue is ever saturated this applies
// natural backpressure rather than silently dropping work.
func (p *Publisher) Enqueue(token *Token) {
	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()
	if stopped {
		log.L(p.ctx).Warnf("publisher for topic '%s' is stopped, dropping enqueue", p.topic)
		return
	}
	p.queueCh <- token
}

func (p *Publisher) run() {
	defer close(p.done)
	for {
		select {
		case <-p.ctx.Done():
			return
		case token := <-p.queueCh:
			p.send(token)
		}
	}
}

func (p *Publisher) send(token *Token) {
	msg := token.drain()
	if msg == nil {
		// The token was cancelled (emptied) after enqueue - discard silently (§4.A).
		return
	}
	if err := p.sink.Send(p.ctx, p.topic, msg); err != nil {
		// Bus/transport errors are logged; the message itself is gone once
		// drained, so recovery from here is the Request's retry/timeout
		// path re-publishing with a fresh Token (§7).
		log.L(p.ctx).Errorf("failed to send message '%s' to topic '%s': %s", msg.Envelope().RequestID, p.topic, err)
	}
}

// Stop drains/terminates the worker and rejects further enqueues (§4.A).
// Any Tokens still sitting in the channel are abandoned - this is only
// called during the shutdown sequence of §5, after the Map has already
// stopped issuing new requests.
func (p *Publisher) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()
	p.cancel()
	<-p.done
}
