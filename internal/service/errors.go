// Package service provides the business logic for the RoW event bot:
// roster signups, the event lifecycle, match results, player statistics,
// identity and notification handling. Services return sentinel errors for
// business-rule rejections; handlers translate them into user messages.
package service

import "errors"

// Business-rule rejections. These are expected outcomes reported to the
// invoking user, never logged as system errors.
var (
	// ErrUserBlocked rejects signups and IGN updates from blocked users.
	ErrUserBlocked = errors.New("user is blocked from signups")

	// ErrNotEligible rejects main-team joins from users without the
	// competitive marker role.
	ErrNotEligible = errors.New("user is not eligible for the main team")

	// ErrTeamFull rejects joins beyond roster capacity.
	ErrTeamFull = errors.New("team roster is full")

	// ErrCycleLocked rejects roster mutations outside the OPEN state.
	ErrCycleLocked = errors.New("signups are locked for this cycle")

	// ErrIncompleteResults rejects the RESULTED transition while a team
	// with signups still has no recorded result.
	ErrIncompleteResults = errors.New("some teams with signups have no recorded result")

	// ErrWrongState rejects an operation not valid in the cycle's
	// current lifecycle state.
	ErrWrongState = errors.New("operation not valid in current cycle state")

	// ErrInvalidIGN rejects malformed in-game names.
	ErrInvalidIGN = errors.New("invalid in-game name")

	// ErrResultNotFound is returned when retracting an unknown result id.
	ErrResultNotFound = errors.New("result not found")

	// ErrAlreadyRetracted is returned when the result is already tombstoned.
	ErrAlreadyRetracted = errors.New("result already retracted")

	// ErrInvalidTime rejects event-time strings that are not "HH:MM UTC
	// Weekday" and malformed quiet-hours clocks.
	ErrInvalidTime = errors.New("invalid event time")
)
