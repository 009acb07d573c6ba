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

// Package paptypes carries the handful of wire-friendly scalar types the
// teacher's pldapi/tktypes layer exposes to every manager: a raw JSON blob
// that round-trips through GORM columns untouched, and a millisecond-
// precision timestamp with a deterministic JSON encoding.
package paptypes

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// RawJSON is a JSON value stored and compared as bytes, matching the
// teacher's tktypes.RawJSON.
type RawJSON []byte

func (j RawJSON) IsNil() bool {
	return len(j) == 0 || bytes.Equal(j, []byte("null"))
}

func (j RawJSON) String() string {
	return string(j)
}

func (j RawJSON) Value() (driver.Value, error) {
	if j.IsNil() {
		return nil, nil
	}
	return []byte(j), nil
}

func (j *RawJSON) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		*j = append(RawJSON{}, v...)
		return nil
	case string:
		*j = RawJSON(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into RawJSON", src)
	}
}

// Timestamp is a UTC, millisecond-precision point in time with a stable
// JSON/SQL representation, matching the teacher's tktypes.Timestamp.
type Timestamp int64

func TimestampNow() Timestamp {
	return TimestampFromTime(time.Now())
}

func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}

func (t Timestamp) Time() time.Time {
	return time.UnixMilli(int64(t)).UTC()
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	*t = TimestampFromTime(parsed)
	return nil
}

func (t Timestamp) Value() (driver.Value, error) {
	return t.Time(), nil
}

func (t *Timestamp) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*t = TimestampFromTime(v)
		return nil
	case nil:
		*t = 0
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Timestamp", src)
	}
}
