package media

import "errors"

// Failure taxonomy shared across the store, blob and auth layers. The web
// layer maps these onto HTTP statuses; pipeline operations convert them to
// logged false/nil outcomes at their own boundary.
var (
	ErrNotFound         = errors.New("not found")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrAuthFailure      = errors.New("authentication failed")
	ErrNotOwner         = errors.New("caller does not own the video")
	ErrValidation       = errors.New("validation failed")
	ErrTransfer         = errors.New("transfer failed")
)
