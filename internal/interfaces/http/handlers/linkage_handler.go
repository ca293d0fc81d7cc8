package handlers

import (
	stderrors "errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinlink/clinlink/internal/application/linkage"
	"github.com/clinlink/clinlink/pkg/errors"
)

// LinkageHandler exposes the record-linkage pipeline over HTTP.
type LinkageHandler struct {
	svc linkage.Service
}

// NewLinkageHandler constructs a LinkageHandler.
func NewLinkageHandler(svc linkage.Service) *LinkageHandler {
	return &LinkageHandler{svc: svc}
}

// IngestRecords handles POST /records.
func (h *LinkageHandler) IngestRecords(c *gin.Context) {
	var input linkage.IngestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "cannot decode request body"))
		return
	}

	res, err := h.svc.IngestRecords(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// RunAnnotation handles POST /annotations/runs.  An empty body runs with
// the default options.
func (h *LinkageHandler) RunAnnotation(c *gin.Context) {
	var input linkage.AnnotationInput
	if err := c.ShouldBindJSON(&input); err != nil && !stderrors.Is(err, io.EOF) {
		respondError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "cannot decode request body"))
		return
	}

	res, err := h.svc.RunAnnotation(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// BuildGrouping handles POST /groupings.
func (h *LinkageHandler) BuildGrouping(c *gin.Context) {
	var input linkage.GroupingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "cannot decode request body"))
		return
	}

	res, err := h.svc.BuildGrouping(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// ListGroupings handles GET /groupings.
func (h *LinkageHandler) ListGroupings(c *gin.Context) {
	keys, err := h.svc.ListGroupings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groupings": keys})
}

// GetGrouping handles GET /groupings/:key.
func (h *LinkageHandler) GetGrouping(c *gin.Context) {
	summary, err := h.svc.GetGrouping(c.Request.Context(), c.Param("key"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetGroups handles GET /groupings/:key/groups.
func (h *LinkageHandler) GetGroups(c *gin.Context) {
	groups, err := h.svc.GetGroups(c.Request.Context(), c.Param("key"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// GetSupergroups handles GET /groupings/:key/supergroups.
func (h *LinkageHandler) GetSupergroups(c *gin.Context) {
	supergroups, err := h.svc.GetSupergroups(c.Request.Context(), c.Param("key"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"supergroups": supergroups})
}

// RecordMembership handles GET /groupings/:key/records/:id.
func (h *LinkageHandler) RecordMembership(c *gin.Context) {
	res, err := h.svc.RecordMembership(c.Request.Context(), c.Param("key"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
