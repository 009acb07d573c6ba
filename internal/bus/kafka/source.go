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

package kafka

import (
	"context"
	"encoding/json"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/kaleido-io/pap/internal/dispatch"
	"github.com/kaleido-io/pap/internal/log"
	"github.com/kaleido-io/pap/pkg/papapi"
)

// Consumer is the narrow slice of *kgo.Client a Source needs, mirroring
// Producer.
type Consumer interface {
	PollFetches(ctx context.Context) kgo.Fetches
}

// Source runs the inbound poll loop of §4.D's suspension point c: it reads
// PdpStatus records off the bus topic and hands each to a
// dispatch.MessageDispatcher, which routes it by messageName to the
// correlated or anonymous listener.
type Source struct {
	client     Consumer
	dispatcher *dispatch.MessageDispatcher

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSource starts the poll loop immediately, following the same
// construct-and-go pattern as publisher.New.
func NewSource(ctx context.Context, client Consumer, dispatcher *dispatch.MessageDispatcher) *Source {
	sctx, cancel := context.WithCancel(ctx)
	s := &Source{
		client:     client,
		dispatcher: dispatcher,
		ctx:        sctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Source) run() {
	defer close(s.done)
	for {
		fetches := s.client.PollFetches(s.ctx)
		if s.ctx.Err() != nil {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			log.L(s.ctx).Errorf("fetch error on topic '%s' partition %d: %s", topic, partition, err)
		})
		fetches.EachRecord(s.handle)
	}
}

func (s *Source) handle(record *kgo.Record) {
	var status papapi.PdpStatus
	if err := json.Unmarshal(record.Value, &status); err != nil {
		log.L(s.ctx).Errorf("failed to unmarshal inbound status from topic '%s': %s", record.Topic, err)
		return
	}
	s.dispatcher.OnMessage(s.ctx, status)
}

// Stop cancels the poll loop and waits for it to exit.
func (s *Source) Stop() {
	s.cancel()
	<-s.done
}
