// Copyright 2026 The Zaparoo Project Contributors.
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

package iec

import (
	"os"

	"go.uber.org/zap/zapcore"
)

// debugEnabled controls whether debug output goes to the console
var debugEnabled = false

func init() {
	// Enable debug logging if either environment variable is set
	if os.Getenv("IEC_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		SetDebugEnabled(true)
	}
}

// Debugf logs a formatted debug message through the package logger.
// It reaches the console only in debug mode, and the session log whenever
// one is open.
func Debugf(format string, args ...any) {
	Logger().Sugar().Debugf(format, args...)
}

// SetDebugEnabled allows programmatic control of console debug logging
// Useful for testing or application-controlled debug modes
func SetDebugEnabled(enabled bool) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	debugEnabled = enabled
	if enabled {
		consoleCore = newConsoleCore()
	} else {
		consoleCore = zapcore.NewNopCore()
	}
	rebuildLocked()
}

// DebugEnabled reports whether console debug logging is on.
func DebugEnabled() bool {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return debugEnabled
}
