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

// Package kafka is the one concrete bus transport wired for completeness
// (§1 non-goal: the core itself never owns the bus). It implements
// publisher.Sink on top of a franz-go client and feeds inbound PdpStatus
// records into a dispatch.MessageDispatcher, the same split the teacher
// draws between its transportmgr sender loop and its inbound message
// pump, just with Kafka standing in for the teacher's grpc/paladin wire.
package kafka

import (
	"context"
	"encoding/json"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/kaleido-io/pap/internal/msgs"
	"github.com/kaleido-io/pap/pkg/papapi"
)

// Producer is the narrow slice of *kgo.Client a Sink needs, so tests can
// substitute a fake without standing up a broker.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Sink publishes outbound PdpUpdate/PdpStateChange messages to the bus
// topic configured in papconf.TopicParameters. Marshalling the
// papapi.OutboundMessage interface value (rather than its shared envelope)
// is what lets json.Marshal see the concrete type's own fields - policies,
// group, subgroup, state - alongside the common name/requestId/messageName.
type Sink struct {
	client Producer
}

// NewSink wraps client for use as a publisher.Sink. client is typically a
// real *kgo.Client; any Producer works.
func NewSink(client Producer) *Sink {
	return &Sink{client: client}
}

// Send marshals msg to JSON and produces it to topic, keyed on the target
// PDP name so Kafka partitions keep one PDP's messages in order.
func (s *Sink) Send(ctx context.Context, topic string, msg papapi.OutboundMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return i18n.NewError(ctx, msgs.MsgBusMarshalFailed, topic, err)
	}
	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(msg.Envelope().Name),
		Value: body,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return i18n.NewError(ctx, msgs.MsgBusProduceFailed, topic, err)
	}
	return nil
}
