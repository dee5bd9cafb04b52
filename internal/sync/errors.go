package sync

import (
	"context"
	"errors"
	"net"

	"github.com/pilehq/pilebox/internal/pilesdk"
)

var (
	// ErrNotLinked means the pile has no remote collection bound to it.
	ErrNotLinked = errors.New("pile not linked to a collection")

	// ErrUnauthenticated means no usable identity is available for remote calls.
	ErrUnauthenticated = errors.New("not signed in")

	// ErrSyncAlreadyRunning means a sync pass for this pile is in flight.
	ErrSyncAlreadyRunning = errors.New("sync already running")

	// ErrRemoteUnavailable means the remote API could not be reached.
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrSchemaMismatch means the remote schema diverged from the probed
	// capabilities mid-session.
	ErrSchemaMismatch = errors.New("remote schema mismatch")

	// ErrConflictExists means the document has an unresolved conflict.
	ErrConflictExists = errors.New("conflict exists for document")

	// ErrNotFound means the referenced document, conflict or pile is unknown.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyLinked means the pile is linked and must be unlinked first.
	ErrAlreadyLinked = errors.New("pile already linked")

	// ErrDestinationNotEmpty means a migration destination already holds
	// user files.
	ErrDestinationNotEmpty = errors.New("destination not empty")
)

// classifyRemoteError folds SDK failures into the engine taxonomy. Network
// and transport failures become ErrRemoteUnavailable; auth rejections
// become ErrUnauthenticated; schema errors become ErrSchemaMismatch.
// Anything else passes through untouched.
func classifyRemoteError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, pilesdk.ErrNoAccessToken),
		errors.Is(err, pilesdk.ErrTokenExpired),
		pilesdk.IsAPIErrorCode(err, pilesdk.CodeAuthInvalidCredentials):
		return errors.Join(ErrUnauthenticated, err)

	case pilesdk.IsAPIErrorCode(err, pilesdk.CodeSchemaUnknownColumn):
		return errors.Join(ErrSchemaMismatch, err)

	case pilesdk.IsAPIErrorCode(err, pilesdk.CodeCollectionNotFound):
		return errors.Join(ErrNotFound, err)

	case isNetworkError(err):
		return errors.Join(ErrRemoteUnavailable, err)
	}

	return err
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
