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

// Package groupstore is the GORM-backed policy store collaborator (§3
// GroupData/SessionData, §6 DAO). The core treats it purely as a
// persistence boundary: it reads groups containing a failed PDP, mutates
// sub-group membership in memory via papapi.GroupData, and writes the
// result back. Grounded on the teacher's pkg/persistence QueryWrapper
// pattern for the read side and on gorm's upsert/save path for the write
// side.
package groupstore

import (
	"github.com/kaleido-io/pap/pkg/papapi"
)

// pdpGroupModel is the GORM row shape for a persisted policy group. Group
// membership (the sub-group/instance lists) is stored as a single JSON
// column rather than normalized child tables: the core only ever reads a
// handful of groups at a time during recovery, and always rewrites the
// whole document, so there is no query that benefits from normalization.
type pdpGroupModel struct {
	Name      string `gorm:"column:name;primaryKey"`
	State     string `gorm:"column:state"`
	SubGroups []byte `gorm:"column:sub_groups"` // JSON-encoded []papapi.SubGroupData
}

func (pdpGroupModel) TableName() string { return "pdp_groups" }

func modelFromGroupData(g papapi.GroupData) (*pdpGroupModel, error) {
	sg, err := marshalSubGroups(g.SubGroups)
	if err != nil {
		return nil, err
	}
	return &pdpGroupModel{Name: g.Name, State: g.State, SubGroups: sg}, nil
}

func groupDataFromModel(m *pdpGroupModel) (papapi.GroupData, error) {
	sg, err := unmarshalSubGroups(m.SubGroups)
	if err != nil {
		return papapi.GroupData{}, err
	}
	return papapi.GroupData{Name: m.Name, State: m.State, SubGroups: sg}, nil
}

// policyModel is the GORM row shape for one registered ToscaPolicy version.
type policyModel struct {
	Name        string `gorm:"column:name;primaryKey"`
	Version     string `gorm:"column:version;primaryKey"`
	TypeName    string `gorm:"column:type_name"`
	TypeVersion string `gorm:"column:type_version"`
	Properties  []byte `gorm:"column:properties"`
}

func (policyModel) TableName() string { return "tosca_policies" }

func policyFromModel(m *policyModel) (papapi.ToscaPolicy, error) {
	props, err := unmarshalProperties(m.Properties)
	if err != nil {
		return papapi.ToscaPolicy{}, err
	}
	return papapi.ToscaPolicy{
		Name:        m.Name,
		Version:     m.Version,
		TypeName:    m.TypeName,
		TypeVersion: m.TypeVersion,
		Properties:  props,
	}, nil
}
