package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found in the catalog
	ErrJobNotFound = errors.New("job not found")

	// ErrUserNotFound is returned when the referenced user does not exist
	ErrUserNotFound = errors.New("user not found")

	// ErrCurrentNotFound is returned when a claim referenced by a token no longer exists
	ErrCurrentNotFound = errors.New("current not found")

	// ErrInvalidProof is returned when the submitted value page does not match the job's
	ErrInvalidProof = errors.New("value page is not correct")

	// ErrStartTimeout is returned when the elapsed time since start falls outside the
	// job's expected completion window (or no start was ever recorded)
	ErrStartTimeout = errors.New("time out")

	// ErrEmptyBatch is returned when a bulk completion carries no items
	ErrEmptyBatch = errors.New("empty batch")

	// ErrClaimConflict is returned when a concurrent request already claimed a job
	// for the same user
	ErrClaimConflict = errors.New("claim already exists for user")

	// ErrInvalidToken is returned when a claim token fails decoding or signature checks
	ErrInvalidToken = errors.New("invalid claim token")
)
