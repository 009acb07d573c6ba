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

package groupstore

import (
	"context"
	"strings"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"gorm.io/gorm"

	"github.com/kaleido-io/pap/internal/cache"
	"github.com/kaleido-io/pap/internal/msgs"
	"github.com/kaleido-io/pap/pkg/papapi"
)

// GormDAO is the concrete DAO backed by gorm.io/gorm, wired to either
// gorm.io/driver/postgres or gorm.io/driver/sqlite by the caller (§6
// configuration is an external concern - this type just takes an already-
// opened *gorm.DB). groupCache avoids re-reading the same group document
// twice in a row across the load/mutate/persist steps of disable-PDP
// recovery (§4.G), the same role cache.Cache plays for domain state reads
// in the teacher's statemgr.
type GormDAO struct {
	db         *gorm.DB
	groupCache cache.Cache[string, papapi.GroupData]
}

// NewGormDAO wraps db. cacheConf follows the same confutil-defaulted shape
// every cache in this codebase takes.
func NewGormDAO(db *gorm.DB, cacheConf *cache.Config) *GormDAO {
	defaultCapacity := 256
	return &GormDAO{
		db:         db,
		groupCache: cache.NewCache[string, papapi.GroupData](cacheConf, &cache.Config{Capacity: &defaultCapacity}),
	}
}

// GetFilteredPdpGroups loads every group with a sub-group listing
// filter.PdpInstanceID. The sub-group document is stored as a single JSON
// column (models.go), so "contains this instance" is a LIKE match on its
// serialized form rather than a join.
func (d *GormDAO) GetFilteredPdpGroups(ctx context.Context, filter GroupFilter) ([]papapi.GroupData, error) {
	if cached, ok := d.groupCache.Get(filter.PdpInstanceID); ok {
		return []papapi.GroupData{cached}, nil
	}

	var rows []*pdpGroupModel
	q := d.db.WithContext(ctx)
	if filter.PdpInstanceID != "" {
		q = q.Where("sub_groups LIKE ?", "%\""+filter.PdpInstanceID+"\"%")
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgRecoveryGroupLoadFailed, filter.PdpInstanceID, err)
	}

	groups := make([]papapi.GroupData, 0, len(rows))
	for _, row := range rows {
		g, err := groupDataFromModel(row)
		if err != nil {
			return nil, i18n.WrapError(ctx, err, msgs.MsgRecoveryGroupLoadFailed, filter.PdpInstanceID, err)
		}
		groups = append(groups, g)
	}
	if filter.PdpInstanceID != "" && len(groups) == 1 {
		d.groupCache.Set(filter.PdpInstanceID, groups[0])
	}
	return groups, nil
}

// UpdatePdpGroups persists the mutated group documents (§4.G step 4),
// upserting each by primary key, and invalidates the cache entry of every
// instance still listed in the saved sub-groups. An entry cached under an
// instance that the caller removed from these groups is not invalidated.
func (d *GormDAO) UpdatePdpGroups(ctx context.Context, groups []papapi.GroupData) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, g := range groups {
			m, err := modelFromGroupData(g)
			if err != nil {
				return err
			}
			if err := tx.Save(m).Error; err != nil {
				return err
			}
			for _, sg := range g.SubGroups {
				for _, inst := range sg.PdpInstances {
					d.groupCache.Delete(inst)
				}
			}
		}
		return nil
	})
}

// GetPolicyList returns the single registered policy matching name/version
// exactly, or an empty list if not found.
func (d *GormDAO) GetPolicyList(ctx context.Context, name, version string) ([]papapi.ToscaPolicy, error) {
	var rows []*policyModel
	if err := d.db.WithContext(ctx).
		Where("name = ? AND version = ?", name, version).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return policiesFromModels(rows)
}

// GetFilteredPolicyList returns every registered policy whose name has the
// given prefix.
func (d *GormDAO) GetFilteredPolicyList(ctx context.Context, filter PolicyFilter) ([]papapi.ToscaPolicy, error) {
	var rows []*policyModel
	q := d.db.WithContext(ctx)
	if filter.NamePrefix != "" {
		q = q.Where("name LIKE ?", strings.ReplaceAll(filter.NamePrefix, "%", "\\%")+"%")
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return policiesFromModels(rows)
}

func policiesFromModels(rows []*policyModel) ([]papapi.ToscaPolicy, error) {
	policies := make([]papapi.ToscaPolicy, 0, len(rows))
	for _, row := range rows {
		p, err := policyFromModel(row)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, nil
}
