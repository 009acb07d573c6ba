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

// Package log mirrors the teacher's toolkit/pkg/log: a context-carried
// *logrus.Entry, so every component logs with whatever fields the caller
// has already attached (pdp name, request id, ...) without having to pass
// a logger down every call chain.
package log

import (
	"context"

	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

var root = logrus.StandardLogger()

// SetOutput lets the process wiring (pkg/pap) point the root logger at
// whatever the outer service-lifecycle container configures.
func SetOutput(l *logrus.Logger) {
	root = l
}

// WithLogField returns a child context carrying an *logrus.Entry with the
// given field added, building on whatever entry (if any) ctx already has.
func WithLogField(ctx context.Context, key string, value interface{}) context.Context {
	return context.WithValue(ctx, ctxKey{}, L(ctx).WithField(key, value))
}

// L returns the logging entry attached to ctx, or a fresh entry on the
// root logger if none has been attached yet.
func L(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		if entry, ok := ctx.Value(ctxKey{}).(*logrus.Entry); ok {
			return entry
		}
	}
	return logrus.NewEntry(root)
}
