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
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	loggerMu sync.RWMutex
	logger   = zap.NewNop()
	custom   bool

	// Cores teed into the package logger when no custom logger is set.
	consoleCore = zapcore.NewNopCore()
	sessionCore = zapcore.NewNopCore()
)

// Logger returns the package logger. It is a no-op logger unless debug
// mode, a session log or SetLogger configured one.
func Logger() *zap.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// SetLogger replaces the package logger. Passing nil restores the built-in
// console/session logger.
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if l == nil {
		custom = false
		rebuildLocked()
		return
	}
	custom = true
	logger = l
}

// rebuildLocked recomputes the package logger from the active cores.
// Callers must hold loggerMu.
func rebuildLocked() {
	if custom {
		return
	}
	logger = zap.New(zapcore.NewTee(consoleCore, sessionCore)).Named("iec")
}

func newConsoleCore() zapcore.Core {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000")
	return zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(os.Stderr), zapcore.DebugLevel)
}
