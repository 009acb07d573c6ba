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
	"encoding/json"

	"github.com/kaleido-io/pap/pkg/papapi"
)

func marshalSubGroups(sg []papapi.SubGroupData) ([]byte, error) {
	if len(sg) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(sg)
}

func unmarshalSubGroups(b []byte) ([]papapi.SubGroupData, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var sg []papapi.SubGroupData
	if err := json.Unmarshal(b, &sg); err != nil {
		return nil, err
	}
	return sg, nil
}

func unmarshalProperties(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var props map[string]any
	if err := json.Unmarshal(b, &props); err != nil {
		return nil, err
	}
	return props, nil
}
