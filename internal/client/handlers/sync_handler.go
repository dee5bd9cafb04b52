package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pilehq/pilebox/internal/client/pilemgr"
	"github.com/pilehq/pilebox/internal/sync"
)

// SyncHandler triggers sync passes and rescans.
type SyncHandler struct {
	mgr *pilemgr.PileManager
}

func NewSyncHandler(mgr *pilemgr.PileManager) *SyncHandler {
	return &SyncHandler{
		mgr: mgr,
	}
}

// Now godoc
//
//	@Summary		Run a sync pass
//	@Description	Starts a sync pass for one pile; the result lands in the pile's status
//	@Tags			sync
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SyncNowRequest	true	"Sync request"
//	@Success		202		{object}	SyncNowResponse
//	@Failure		409		{object}	ControlPlaneError
//	@Router			/v1/sync/now [post]
//	@Security		APIToken
func (h *SyncHandler) Now(ctx *gin.Context) {
	var req SyncNowRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		AbortWithError(ctx, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}

	mode := sync.SyncMode(req.Mode)
	if req.Mode == "" {
		mode = sync.SyncModeBoth
	}
	if !mode.Valid() {
		AbortWithError(ctx, http.StatusBadRequest, ErrCodeBadRequest, fmt.Errorf("invalid sync mode %q", req.Mode))
		return
	}

	engine, err := h.mgr.Get(req.Path)
	if err != nil {
		AbortWithEngineError(ctx, err)
		return
	}

	st := engine.Status()
	if !st.Linked {
		AbortWithEngineError(ctx, sync.ErrNotLinked)
		return
	}
	if st.Syncing {
		AbortWithError(ctx, http.StatusConflict, ErrCodeSyncInProgress, sync.ErrSyncAlreadyRunning)
		return
	}

	// the pass outlives the request; failures surface through lastError
	go func() {
		if _, err := engine.RunSync(context.Background(), mode); err != nil && !errors.Is(err, sync.ErrSyncAlreadyRunning) {
			slog.Error("manual sync", "pile", engine.Pile().Root, "error", err)
		}
	}()

	ctx.PureJSON(http.StatusAccepted, &SyncNowResponse{Started: true})
}

// Rescan godoc
//
//	@Summary		Rescan a pile
//	@Description	Re-enumerates every document in the pile and queues them for push
//	@Tags			sync
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RescanRequest	true	"Rescan request"
//	@Success		200		{object}	RescanResponse
//	@Failure		404		{object}	ControlPlaneError
//	@Router			/v1/sync/rescan [post]
//	@Security		APIToken
func (h *SyncHandler) Rescan(ctx *gin.Context) {
	var req RescanRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		AbortWithError(ctx, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}

	queued, err := h.mgr.Rescan(req.Path)
	if err != nil {
		AbortWithEngineError(ctx, err)
		return
	}
	ctx.PureJSON(http.StatusOK, &RescanResponse{Queued: queued})
}
