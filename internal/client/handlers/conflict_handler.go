package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pilehq/pilebox/internal/client/pilemgr"
	"github.com/pilehq/pilebox/internal/sync"
)

// ConflictHandler exposes open conflicts, their artifacts and resolution.
type ConflictHandler struct {
	mgr *pilemgr.PileManager
}

func NewConflictHandler(mgr *pilemgr.PileManager) *ConflictHandler {
	return &ConflictHandler{
		mgr: mgr,
	}
}

// List godoc
//
//	@Summary		List conflicts
//	@Description	Returns the open conflicts of one pile
//	@Tags			conflicts
//	@Produce		json
//	@Param			path	query		string	true	"Pile directory"
//	@Success		200		{object}	ConflictListResponse
//	@Failure		404		{object}	ControlPlaneError
//	@Router			/v1/conflicts [get]
//	@Security		APIToken
func (h *ConflictHandler) List(ctx *gin.Context) {
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
	ctx.PureJSON(http.StatusOK, &ConflictListResponse{Conflicts: engine.Conflicts()})
}

// Artifact godoc
//
//	@Summary		Get a conflict artifact
//	@Description	Returns the local document, the remote snapshot, or a patch between them
//	@Tags			conflicts
//	@Produce		json
//	@Param			path	query		string	true	"Pile directory"
//	@Param			id		query		string	true	"Conflict id"
//	@Param			side	query		string	true	"local, remote or diff"
//	@Success		200		{string}	string
//	@Failure		404		{object}	ControlPlaneError
//	@Router			/v1/conflicts/artifact [get]
//	@Security		APIToken
func (h *ConflictHandler) Artifact(ctx *gin.Context) {
	path := ctx.Query("path")
	id := ctx.Query("id")
	side := sync.ArtifactSide(ctx.Query("side"))

	if path == "" || id == "" {
		AbortWithError(ctx, http.StatusBadRequest, ErrCodeBadRequest, errors.New("path and id are required"))
		return
	}
	if !side.Valid() {
		AbortWithError(ctx, http.StatusBadRequest, ErrCodeBadRequest, fmt.Errorf("invalid artifact side %q", side))
		return
	}

	engine, err := h.mgr.Get(path)
	if err != nil {
		AbortWithEngineError(ctx, err)
		return
	}

	data, err := engine.Artifact(id, side)
	if err != nil {
		AbortWithEngineError(ctx, err)
		return
	}

	contentType := "application/json; charset=utf-8"
	if side == sync.SideDiff {
		contentType = "text/plain; charset=utf-8"
	}
	ctx.Data(http.StatusOK, contentType, data)
}

// Resolve godoc
//
//	@Summary		Resolve a conflict
//	@Description	Settles a document conflict with the local, remote or a merged version
//	@Tags			conflicts
//	@Accept			json
//	@Produce		json
//	@Param			request	body		ResolveRequest	true	"Resolution request"
//	@Success		200		{object}	ControlPlaneResponse
//	@Failure		404		{object}	ControlPlaneError
//	@Router			/v1/conflicts/resolve [post]
//	@Security		APIToken
func (h *ConflictHandler) Resolve(ctx *gin.Context) {
	var req ResolveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		AbortWithError(ctx, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}

	resolution := sync.Resolution(req.Choice)
	if !resolution.Valid() {
		AbortWithError(ctx, http.StatusBadRequest, ErrCodeBadRequest, fmt.Errorf("invalid resolution %q", req.Choice))
		return
	}
	if resolution == sync.ResolutionMerged && req.MergedContent == "" {
		AbortWithError(ctx, http.StatusBadRequest, ErrCodeBadRequest, errors.New("merged resolution requires content"))
		return
	}

	engine, err := h.mgr.Get(req.Path)
	if err != nil {
		AbortWithEngineError(ctx, err)
		return
	}

	if err := engine.Resolve(ctx.Request.Context(), req.DocumentID, resolution, req.MergedContent); err != nil {
		AbortWithEngineError(ctx, err)
		return
	}
	ctx.PureJSON(http.StatusOK, &ControlPlaneResponse{Code: CodeOk})
}
