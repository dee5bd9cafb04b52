package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pilehq/pilebox/internal/client/pilemgr"
)

// MigrateHandler materializes remote collections into local piles.
type MigrateHandler struct {
	mgr *pilemgr.PileManager
}

func NewMigrateHandler(mgr *pilemgr.PileManager) *MigrateHandler {
	return &MigrateHandler{
		mgr: mgr,
	}
}

// Migrate godoc
//
//	@Summary		Migrate a cloud collection
//	@Description	Downloads a remote collection into a local directory and links it; interrupted runs resume
//	@Tags			migrate
//	@Accept			json
//	@Produce		json
//	@Param			request	body		MigrateRequest	true	"Migrate request"
//	@Success		200		{object}	MigrateResponse
//	@Failure		400		{object}	ControlPlaneError
//	@Failure		404		{object}	ControlPlaneError
//	@Router			/v1/migrate [post]
//	@Security		APIToken
func (h *MigrateHandler) Migrate(ctx *gin.Context) {
	var req MigrateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		AbortWithError(ctx, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}

	result, err := h.mgr.Migrate(ctx.Request.Context(), req.RemoteCollectionID, req.DestinationDirectory)
	if err != nil {
		AbortWithEngineError(ctx, err)
		return
	}
	ctx.PureJSON(http.StatusOK, &MigrateResponse{Result: result})
}
