package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pilehq/pilebox/internal/client/pilemgr"
)

// PileHandler manages pile membership: linking, unlinking and per-pile
// status.
type PileHandler struct {
	mgr *pilemgr.PileManager
}

func NewPileHandler(mgr *pilemgr.PileManager) *PileHandler {
	return &PileHandler{
		mgr: mgr,
	}
}

// Status godoc
//
//	@Summary		Get pile status
//	@Description	Returns the sync status of one managed pile
//	@Tags			piles
//	@Produce		json
//	@Param			path	query		string	true	"Pile directory"
//	@Success		200		{object}	sync.CollectionStatus
//	@Failure		404		{object}	ControlPlaneError
//	@Router			/v1/piles/status [get]
//	@Security		APIToken
func (h *PileHandler) Status(ctx *gin.Context) {
	path := ctx.Query("path")
	if path == "" {
		AbortWithError(ctx, http.StatusBadRequest, ErrCodeBadRequest, errors.New("path is required"))
		return
	}

	engine, err := h.mgr.Get(path)
	if err != nil {
		AbortWithEngineError(ctx, err)
		return
	}
	ctx.PureJSON(http.StatusOK, engine.Status())
}

// Link godoc
//
//	@Summary		Link a pile
//	@Description	Binds a local directory to a remote collection; omit remoteCollectionId to create a fresh one
//	@Tags			piles
//	@Accept			json
//	@Produce		json
//	@Param			request	body		LinkRequest	true	"Link request"
//	@Success		200		{object}	LinkResponse
//	@Failure		400		{object}	ControlPlaneError
//	@Failure		409		{object}	ControlPlaneError
//	@Router			/v1/piles/link [post]
//	@Security		APIToken
func (h *PileHandler) Link(ctx *gin.Context) {
	var req LinkRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		AbortWithError(ctx, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}

	collection, err := h.mgr.Link(ctx.Request.Context(), req.Path, req.RemoteCollectionID)
	if err != nil {
		AbortWithEngineError(ctx, err)
		return
	}

	engine, err := h.mgr.Get(req.Path)
	if err != nil {
		AbortWithEngineError(ctx, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &LinkResponse{
		Collection: collection,
		Status:     engine.Status(),
	})
}

// Unlink godoc
//
//	@Summary		Unlink a pile
//	@Description	Detaches a pile from its collection; local files and sync history stay on disk
//	@Tags			piles
//	@Accept			json
//	@Produce		json
//	@Param			request	body		UnlinkRequest	true	"Unlink request"
//	@Success		200		{object}	ControlPlaneResponse
//	@Failure		404		{object}	ControlPlaneError
//	@Router			/v1/piles/unlink [post]
//	@Security		APIToken
func (h *PileHandler) Unlink(ctx *gin.Context) {
	var req UnlinkRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		AbortWithError(ctx, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}

	if err := h.mgr.Unlink(req.Path); err != nil {
		AbortWithEngineError(ctx, err)
		return
	}
	ctx.PureJSON(http.StatusOK, &ControlPlaneResponse{Code: CodeOk})
}
