// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrNoWallet indicates no wallet keypair exists at the configured path.
// Startup treats this as a fatal configuration error.
var ErrNoWallet = errors.New("wallet: no keypair found")

// ErrCapabilityDenied indicates a tool was dispatched that the current
// survival tier does not allow.
var ErrCapabilityDenied = errors.New("capability denied for current survival tier")
