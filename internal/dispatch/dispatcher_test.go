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

package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kaleido-io/pap/pkg/papapi"
)

func TestRequestIDDispatchRoutesByCorrelationID(t *testing.T) {
	d := NewRequestIDDispatcher()
	var got papapi.PdpStatus
	d.Register("req-1", func(ctx context.Context, status papapi.PdpStatus) { got = status })

	d.Dispatch(context.Background(), papapi.PdpStatus{Name: "pdp_1", ResponseTo: "req-1"})
	assert.Equal(t, "pdp_1", got.Name)
}

func TestRequestIDDispatchPrefersResponseOverResponseTo(t *testing.T) {
	d := NewRequestIDDispatcher()
	hit := ""
	d.Register("req-1", func(ctx context.Context, status papapi.PdpStatus) { hit = "req-1" })
	d.Register("req-2", func(ctx context.Context, status papapi.PdpStatus) { hit = "req-2" })

	d.Dispatch(context.Background(), papapi.PdpStatus{Response: "req-2", ResponseTo: "req-1"})
	assert.Equal(t, "req-2", hit)
}

func TestRequestIDDispatchDropsAfterUnregister(t *testing.T) {
	d := NewRequestIDDispatcher()
	called := false
	d.Register("req-1", func(ctx context.Context, status papapi.PdpStatus) { called = true })
	d.Unregister("req-1")

	d.Dispatch(context.Background(), papapi.PdpStatus{ResponseTo: "req-1"})
	assert.False(t, called)
}

func TestRequestIDDispatchFansOutAnonymous(t *testing.T) {
	d := NewRequestIDDispatcher()
	var hits []string
	d.RegisterAnonymous(func(ctx context.Context, status papapi.PdpStatus) { hits = append(hits, "a") })
	d.RegisterAnonymous(func(ctx context.Context, status papapi.PdpStatus) { hits = append(hits, "b") })

	d.Dispatch(context.Background(), papapi.PdpStatus{Name: "pdp_1"})
	assert.ElementsMatch(t, []string{"a", "b"}, hits)
}

func TestMessageDispatcherRoutesByOuterType(t *testing.T) {
	md := NewMessageDispatcher()
	inner := NewRequestIDDispatcher()
	var got string
	inner.Register("req-1", func(ctx context.Context, status papapi.PdpStatus) { got = status.Name })
	md.RegisterType(papapi.MessageNamePdpStatus, inner)

	md.OnMessage(context.Background(), papapi.PdpStatus{
		Name: "pdp_1", ResponseTo: "req-1", MessageName: papapi.MessageNamePdpStatus,
	})
	assert.Equal(t, "pdp_1", got)
}

func TestMessageDispatcherUnknownTypeIsSafeNoop(t *testing.T) {
	md := NewMessageDispatcher()
	assert.NotPanics(t, func() {
		md.OnMessage(context.Background(), papapi.PdpStatus{MessageName: "UNKNOWN"})
	})
}
