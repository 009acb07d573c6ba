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

// Package confutil resolves optional config pointers against a default,
// the same small helper the teacher's cache package leans on rather than
// hand-rolling nil checks at every call site.
package confutil

import "time"

// Int returns *conf if set, otherwise def. def is a plain value - defaults
// are always fully populated by the owning component before config is
// applied.
func Int(conf *int, def int) int {
	if conf != nil {
		return *conf
	}
	return def
}

// DurationMS returns *conf milliseconds if set, otherwise def.
func DurationMS(conf *int, def time.Duration) time.Duration {
	if conf != nil {
		return time.Duration(*conf) * time.Millisecond
	}
	return def
}
