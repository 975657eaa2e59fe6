//go:build deadlock

// Package syncutil provides the mutex used to serialize bus sessions.
// This file is compiled when building with -tags=deadlock.
package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex is a deadlock.Mutex, reporting a lock held longer than the
// detector's timeout.
type Mutex struct {
	deadlock.Mutex
}
