package models

import "errors"

// Domain errors shared by the store and service layers.
var (
	ErrAlreadyMember = errors.New("user is already in a swarm")
	ErrInvalidName   = errors.New("name must be 1 to 50 characters")
	ErrCodeExhausted = errors.New("could not generate a unique invite code")
	ErrInvalidCode   = errors.New("invalid invite code")
	ErrGroupFull     = errors.New("swarm is full")
	ErrNotAMember    = errors.New("user is not in a swarm")
	ErrNotFounder    = errors.New("only the founder can manage the swarm")
	ErrSwarmNotFound = errors.New("swarm not found")
	ErrUserNotFound  = errors.New("user not found")
	ErrInvalidItem   = errors.New("item id is required")

	// ErrConflict is returned when an optimistic update keeps losing to
	// concurrent writers.
	ErrConflict = errors.New("concurrent update conflict")

	// ErrCodeTaken is returned by the store when an insert hits the invite code
	// unique index.
	ErrCodeTaken = errors.New("invite code already taken")
)
