package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pilehq/pilebox/internal/client/pilemgr"
	"github.com/pilehq/pilebox/internal/version"
)

// StatusHandler reports daemon-wide state.
type StatusHandler struct {
	mgr *pilemgr.PileManager
}

func NewStatusHandler(mgr *pilemgr.PileManager) *StatusHandler {
	return &StatusHandler{
		mgr: mgr,
	}
}

// Status godoc
//
//	@Summary		Get daemon status
//	@Description	Returns daemon info and the status of every managed pile
//	@Tags			status
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Router			/v1/status [get]
//	@Security		APIToken
func (h *StatusHandler) Status(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, &StatusResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   version.Version,
		Revision:  version.Revision,
		BuildDate: version.BuildDate,
		Piles:     h.mgr.Statuses(),
	})
}
