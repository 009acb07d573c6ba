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

// Package pap is the composition root: it wires the bus transport,
// dispatcher, publisher, timer manager, group store and heartbeat tracker
// into one PdpModifyRequestMap, the way the teacher's component manager
// (components/manager.go) assembles its sub-managers into a single
// lifecycle. Callers outside this core (the REST operator surface, the
// process main()) depend only on Service.
package pap

import (
	"context"

	"gorm.io/gorm"

	"github.com/kaleido-io/pap/internal/bus/kafka"
	"github.com/kaleido-io/pap/internal/bus/publisher"
	"github.com/kaleido-io/pap/internal/cache"
	"github.com/kaleido-io/pap/internal/confutil"
	"github.com/kaleido-io/pap/internal/dispatch"
	"github.com/kaleido-io/pap/internal/groupstore"
	"github.com/kaleido-io/pap/internal/heartbeat"
	"github.com/kaleido-io/pap/internal/pdpmgr"
	"github.com/kaleido-io/pap/internal/timer"
	"github.com/kaleido-io/pap/pkg/papapi"
	"github.com/kaleido-io/pap/pkg/papconf"
)

// Service owns every long-lived goroutine the PDP modification core
// starts: the publisher's send loop, the kafka Source's poll loop, and the
// timer manager's expiry loop. Stop tears them down in the order source,
// publisher, timer manager, then stops the heartbeat tracker and closes
// the bus client.
type Service struct {
	Map      *pdpmgr.PdpModifyRequestMap
	Tracker  *heartbeat.PdpTracker
	Messages *dispatch.MessageDispatcher

	source *kafka.Source
	pub    *publisher.Publisher
	tmrMgr *timer.Manager
	client kgoClient
}

// kgoClient is the minimal surface Service needs to close the bus client
// it constructed - kept as an interface so a test harness can inject a fake
// without dragging in a real broker.
type kgoClient interface {
	Close()
}

// NewService wires one PdpModifyRequestMap against db (already open, dialect
// chosen by the caller - §6 non-goal) and conf. consumerGroup is the Kafka
// consumer group this process joins to read topic.policy-pdp-pap responses.
func NewService(ctx context.Context, db *gorm.DB, conf *papconf.Parameters, consumerGroup string, cacheConf *cache.Config) (*Service, error) {
	client, err := kafka.NewClient(ctx, conf.Topic, consumerGroup)
	if err != nil {
		return nil, err
	}

	dao := groupstore.NewGormDAO(db, cacheConf)

	statusDispatcher := dispatch.NewRequestIDDispatcher()
	messages := dispatch.NewMessageDispatcher()
	messages.RegisterType(papapi.MessageNamePdpStatus, statusDispatcher)

	sink := kafka.NewSink(client)
	pub := publisher.New(ctx, conf.Topic.Topic, sink, 64)
	tmrMgr := timer.NewManager(ctx, "pdp-modify")

	m := pdpmgr.New(statusDispatcher, tmrMgr, pub, conf.Topic.Topic, dao, conf)

	tracker := heartbeat.NewPdpTracker(tmrMgr, dao, m,
		confutil.Int(conf.HeartBeatMs, papconf.DefaultHeartBeatMs),
		confutil.Int(conf.MaxMissedHeartbeats, papconf.DefaultMaxMissedHeartbeats),
		m.Guard)
	statusDispatcher.RegisterAnonymous(tracker.OnHeartbeat)

	source := kafka.NewSource(ctx, client, messages)

	return &Service{
		Map:      m,
		Tracker:  tracker,
		Messages: messages,
		source:   source,
		pub:      pub,
		tmrMgr:   tmrMgr,
		client:   client,
	}, nil
}

// Stop tears down the service's goroutines and closes the bus client.
func (s *Service) Stop() {
	s.source.Stop()
	s.pub.Stop()
	s.tmrMgr.Stop()
	s.Tracker.Stop()
	s.client.Close()
}
