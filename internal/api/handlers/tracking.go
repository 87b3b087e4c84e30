package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-multierror"

	"github.com/frostdev-ops/ha-trend-monitor/internal/adapters/homeassistant"
	"github.com/frostdev-ops/ha-trend-monitor/internal/core/poller"
	"github.com/frostdev-ops/ha-trend-monitor/internal/core/tracking"
	apperrors "github.com/frostdev-ops/ha-trend-monitor/pkg/errors"
	"github.com/frostdev-ops/ha-trend-monitor/pkg/utils"
)

// EntityView is the directory entry returned by the entity endpoints.
type EntityView struct {
	EntityID     string    `json:"entity_id"`
	Domain       string    `json:"domain"`
	FriendlyName string    `json:"friendly_name"`
	State        string    `json:"state"`
	Unit         string    `json:"unit,omitempty"`
	Tracked      bool      `json:"tracked"`
	LastUpdated  time.Time `json:"last_updated"`
}

// SelectionRequest replaces the tracked set. An empty list clears it.
type SelectionRequest struct {
	EntityIDs []string `json:"entity_ids" binding:"required"`
}

// GetDomains lists the domains in the entity directory.
func (h *Handlers) GetDomains(c *gin.Context) {
	domains := h.directory.Domains()
	if domains == nil {
		domains = []string{}
	}
	utils.SendSuccessWithMeta(c, domains, gin.H{"count": len(domains)})
}

// GetEntities lists directory entries, optionally filtered by one or more
// domain query parameters.
func (h *Handlers) GetEntities(c *gin.Context) {
	domains := c.QueryArray("domain")

	tracked := make(map[string]bool)
	for _, id := range h.poller.Selection() {
		tracked[id] = true
	}

	states := h.directory.EntitiesInDomains(domains...)
	views := make([]EntityView, 0, len(states))
	for _, s := range states {
		views = append(views, toView(s, tracked[s.EntityID]))
	}

	meta := gin.H{
		"count":        len(views),
		"refreshed_at": h.directory.RefreshedAt(),
	}
	if len(domains) > 0 {
		meta["domains"] = domains
	}

	utils.SendSuccessWithMeta(c, views, meta)
}

// GetEntity returns one directory entry.
func (h *Handlers) GetEntity(c *gin.Context) {
	entityID := c.Param("id")

	state, ok := h.directory.State(entityID)
	if !ok {
		utils.SendAppError(c, apperrors.WithDetails(apperrors.ErrNotFound, entityID))
		return
	}

	tracked := false
	for _, id := range h.poller.Selection() {
		if id == entityID {
			tracked = true
			break
		}
	}
	utils.SendSuccess(c, toView(state, tracked))
}

// GetSnapshot returns the latest published snapshot.
func (h *Handlers) GetSnapshot(c *gin.Context) {
	utils.SendSuccess(c, h.poller.Snapshot())
}

// GetSelection returns the tracked entity ids.
func (h *Handlers) GetSelection(c *gin.Context) {
	utils.SendSuccess(c, gin.H{"entity_ids": h.poller.Selection()})
}

// SetSelection replaces the tracked set. Entities that could not be added
// are reported in meta.errors; the rest of the selection still applies.
func (h *Handlers) SetSelection(c *gin.Context) {
	var req SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendAppError(c, apperrors.WithDetails(apperrors.ErrBadRequest, err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	err := h.poller.SetSelection(ctx, req.EntityIDs)

	var merr *multierror.Error
	switch {
	case err == nil:
	case errors.As(err, &merr):
		failures := make([]gin.H, 0, len(merr.Errors))
		for _, e := range merr.Errors {
			failures = append(failures, describe(e))
		}
		h.log.WithError(err).Warn("Selection applied with errors")
		utils.SendSuccessWithMeta(c, h.poller.Snapshot(), gin.H{"errors": failures})
		return
	default:
		h.sendLoopError(c, err)
		return
	}

	utils.SendSuccess(c, h.poller.Snapshot())
}

// RefreshDirectory re-reads the entity list from Home Assistant.
func (h *Handlers) RefreshDirectory(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := h.poller.RefreshDirectory(ctx); err != nil {
		if _, ok := tracking.AsConnectivityFailure(err); ok {
			h.log.WithError(err).Warn("Directory refresh failed")
			utils.SendAppError(c, apperrors.WithDetails(apperrors.ErrBadGateway, err.Error()))
			return
		}
		h.sendLoopError(c, err)
		return
	}

	utils.SendSuccess(c, gin.H{
		"entities":     h.directory.Len(),
		"domains":      len(h.directory.Domains()),
		"refreshed_at": h.directory.RefreshedAt(),
	})
}

func (h *Handlers) sendLoopError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, poller.ErrNotRunning):
		utils.SendAppError(c, apperrors.WithDetails(apperrors.ErrServiceUnavailable, err.Error()))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		utils.SendError(c, http.StatusGatewayTimeout, "Request timed out")
	default:
		h.log.WithError(err).Error("Poll loop request failed")
		utils.SendAppError(c, apperrors.WithDetails(apperrors.ErrInternalServer, err.Error()))
	}
}

func describe(err error) gin.H {
	var unknown *tracking.UnknownEntityError
	if errors.As(err, &unknown) {
		return gin.H{"entity_id": unknown.EntityID, "kind": poller.KindUnknownEntity, "error": err.Error()}
	}
	if failure, ok := tracking.AsConnectivityFailure(err); ok {
		out := gin.H{"entity_id": failure.EntityID, "kind": poller.KindConnectivityFailure, "error": err.Error()}
		if failure.StatusCode != 0 {
			out["status_code"] = failure.StatusCode
		}
		return out
	}
	return gin.H{"error": err.Error()}
}

func toView(s homeassistant.EntityState, tracked bool) EntityView {
	return EntityView{
		EntityID:     s.EntityID,
		Domain:       s.Domain(),
		FriendlyName: s.FriendlyName(),
		State:        s.State,
		Unit:         s.Unit(),
		Tracked:      tracked,
		LastUpdated:  s.LastUpdated,
	}
}
