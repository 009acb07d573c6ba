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

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/kaleido-io/pap/internal/msgs"
	"github.com/kaleido-io/pap/pkg/papconf"
)

// NewClient builds the single *kgo.Client the process-lifecycle wiring
// shares between a Sink (producing) and a Source (consuming as part of
// consumerGroup). A single client handles both roles fine since this core
// never needs transactional semantics across them (§1 non-goal).
func NewClient(ctx context.Context, topic papconf.TopicParameters, consumerGroup string) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(topic.Brokers...),
		kgo.ConsumeTopics(topic.Topic),
		kgo.ConsumerGroup(consumerGroup),
	)
	if err != nil {
		return nil, i18n.NewError(ctx, msgs.MsgBusClientFailed, topic.Brokers, err)
	}
	return client, nil
}
