package service

import (
	"github.com/utellme/utellme/internal/apperr"
)

// requireCaller rejects anonymous calls to owner-only operations.
func requireCaller(callerID string) error {
	if callerID == "" {
		return apperr.Unauthenticated("You must be signed in")
	}
	return nil
}

// requireOwnerOrNoop reports whether the caller owns the resource. Callers
// that get false return an empty result instead of an error.
func requireOwnerOrNoop(ownerID, callerID string) bool {
	return ownerID != "" && ownerID == callerID
}

// requireOwnerOrForbid is the strict variant: non-owners get FORBIDDEN.
func requireOwnerOrForbid(ownerID, callerID string) error {
	if !requireOwnerOrNoop(ownerID, callerID) {
		return apperr.Forbidden("You are not allowed to do this")
	}
	return nil
}
