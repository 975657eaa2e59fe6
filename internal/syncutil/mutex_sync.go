//go:build !deadlock

// Package syncutil provides the mutex used to serialize bus sessions.
// Plain sync.Mutex by default; build with -tags=deadlock to route it through
// github.com/sasha-s/go-deadlock and catch a caller holding a session
// across a blocking call it never returns from.
package syncutil

import "sync"

// Mutex is a sync.Mutex unless built with -tags=deadlock.
//
//nolint:gocritic // Embedding exposes Lock/Unlock directly
type Mutex struct {
	sync.Mutex
}
