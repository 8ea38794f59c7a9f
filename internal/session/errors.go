package session

import "errors"

var (
	// ErrNoSession means the caller has no active session to act on.
	ErrNoSession = errors.New("session: no active session")

	// ErrMemberNotFound means an identity referenced by the caller does
	// not resolve to a member.
	ErrMemberNotFound = errors.New("session: member not found")
)
