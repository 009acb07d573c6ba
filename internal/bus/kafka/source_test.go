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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/kaleido-io/pap/internal/dispatch"
	"github.com/kaleido-io/pap/pkg/papapi"
)

// TestHandleRoutesValidStatusToDispatcher exercises the per-record decode
// path directly, sidestepping the need to fabricate a kgo.Fetches value -
// the poll loop around it (run) is a thin, un-branching wrapper over
// PollFetches/EachRecord/EachError.
func TestHandleRoutesValidStatusToDispatcher(t *testing.T) {
	dispatcher := dispatch.NewMessageDispatcher()
	inner := dispatch.NewRequestIDDispatcher()
	dispatcher.RegisterType(papapi.MessageNamePdpStatus, inner)

	var got papapi.PdpStatus
	inner.Register("r1", func(ctx context.Context, status papapi.PdpStatus) {
		got = status
	})

	s := &Source{dispatcher: dispatcher, ctx: context.Background()}
	s.handle(&kgo.Record{
		Topic: "topic.policy-pdp-pap",
		Value: []byte(`{"name":"pdp_1","responseTo":"r1","messageName":"PDP_STATUS","state":"ACTIVE"}`),
	})

	assert.Equal(t, "pdp_1", got.Name)
	assert.Equal(t, papapi.PdpStateActive, got.State)
}

func TestHandleDropsUnparseableRecordWithoutPanicking(t *testing.T) {
	dispatcher := dispatch.NewMessageDispatcher()
	s := &Source{dispatcher: dispatcher, ctx: context.Background()}

	assert.NotPanics(t, func() {
		s.handle(&kgo.Record{Topic: "topic.policy-pdp-pap", Value: []byte("not json")})
	})
}
