// Package handlers implements the control plane endpoints the desktop
// app calls on the local daemon.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pilehq/pilebox/internal/client/pilemgr"
	"github.com/pilehq/pilebox/internal/pilesdk"
	"github.com/pilehq/pilebox/internal/sync"
)

const (
	CodeOk                string = "OK"
	ErrCodeBadRequest     string = "E_BAD_REQUEST"
	ErrCodeUnknown        string = "E_UNKNOWN"
	ErrCodeNotLinked      string = "E_NOT_LINKED"
	ErrCodeUnauthorized   string = "E_UNAUTHENTICATED"
	ErrCodeSyncInProgress string = "E_SYNC_IN_PROGRESS"
	ErrCodeRemoteDown     string = "E_REMOTE_UNAVAILABLE"
	ErrCodeSchemaMismatch string = "E_SCHEMA_MISMATCH"
	ErrCodeConflictExists string = "E_CONFLICT_EXISTS"
	ErrCodeNotFound       string = "E_NOT_FOUND"
)

type ControlPlaneResponse struct {
	Code string `json:"code"`
}

type ControlPlaneError struct {
	ErrorCode string `json:"code"`
	Error     string `json:"error"`
}

func AbortWithError(c *gin.Context, status int, code string, err error) {
	c.Abort()
	c.Error(err)
	c.PureJSON(status, ControlPlaneError{
		ErrorCode: code,
		Error:     err.Error(),
	})
}

// AbortWithEngineError maps an engine failure onto the control plane
// error taxonomy.
func AbortWithEngineError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, ErrCodeUnknown

	switch {
	case errors.Is(err, sync.ErrSyncAlreadyRunning),
		errors.Is(err, sync.ErrPileLocked):
		status, code = http.StatusConflict, ErrCodeSyncInProgress

	case errors.Is(err, sync.ErrNotLinked):
		status, code = http.StatusConflict, ErrCodeNotLinked

	case errors.Is(err, sync.ErrAlreadyLinked),
		errors.Is(err, sync.ErrConflictExists):
		status, code = http.StatusConflict, ErrCodeConflictExists

	case errors.Is(err, sync.ErrUnauthenticated),
		errors.Is(err, pilesdk.ErrNoAccessToken),
		errors.Is(err, pilesdk.ErrTokenExpired):
		status, code = http.StatusUnauthorized, ErrCodeUnauthorized

	case errors.Is(err, sync.ErrNotFound),
		errors.Is(err, pilemgr.ErrPileNotManaged):
		status, code = http.StatusNotFound, ErrCodeNotFound

	case errors.Is(err, sync.ErrRemoteUnavailable):
		status, code = http.StatusBadGateway, ErrCodeRemoteDown

	case errors.Is(err, sync.ErrSchemaMismatch):
		status, code = http.StatusBadGateway, ErrCodeSchemaMismatch

	case errors.Is(err, sync.ErrDestinationNotEmpty),
		errors.Is(err, pilesdk.ErrNoCollectionID):
		status, code = http.StatusBadRequest, ErrCodeBadRequest
	}

	AbortWithError(c, status, code, err)
}
