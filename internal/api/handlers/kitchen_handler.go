package handlers

import (
	"net/http"
	"strings"
	"time"

	"example.com/resto/services/kitchen/internal/kitchen"
	"example.com/resto/services/kitchen/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// KitchenHandler serves the kitchen display board
type KitchenHandler struct {
	store  *kitchen.Store
	tracer tracing.Tracer
}

// NewKitchenHandler creates a new kitchen handler
func NewKitchenHandler(store *kitchen.Store, tracer tracing.Tracer) *KitchenHandler {
	return &KitchenHandler{
		store:  store,
		tracer: tracer,
	}
}

// BoardResponse is the kitchen display snapshot
type BoardResponse struct {
	Orders    []kitchen.UnifiedOrder `json:"orders"`
	IsLoading bool                   `json:"is_loading"`
	Error     string                 `json:"error,omitempty"`
	LastSync  *time.Time             `json:"last_sync,omitempty"`
}

// StatusUpdateRequest carries a status change for one order
type StatusUpdateRequest struct {
	Status string `json:"status" binding:"required"`
}

// HandleGetBoard returns the merged, enriched order list with the
// store's sync state.
func (h *KitchenHandler) HandleGetBoard(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-kitchen-board")
	defer h.tracer.EndTransaction(txn)

	resp := BoardResponse{
		Orders:    h.store.Orders(),
		IsLoading: h.store.IsLoading(),
		Error:     h.store.Err(),
	}
	if sync := h.store.LastSync(); !sync.IsZero() {
		resp.LastSync = &sync
	}

	c.JSON(http.StatusOK, resp)
}

// HandleUpdateStatus applies a status change to one order. The store
// treats an unknown id as a no-op; illegal transitions are rejected.
func (h *KitchenHandler) HandleUpdateStatus(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-kitchen-status-update")
	defer h.tracer.EndTransaction(txn)

	var req StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid status update request")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	status, ok := parseStatus(req.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + req.Status})
		return
	}

	orderID := c.Param("id")
	h.tracer.AddAttribute(txn, "order_id", orderID)
	h.tracer.AddAttribute(txn, "status", string(status))

	if err := h.store.UpdateOrderStatus(c.Request.Context(), orderID, status); err != nil {
		log.Warn().Err(err).Str("order_id", orderID).Msg("Status update rejected")
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// HandleRefresh forces a re-pull of both sources.
func (h *KitchenHandler) HandleRefresh(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-kitchen-refresh")
	defer h.tracer.EndTransaction(txn)

	if err := h.store.RefreshOrders(c.Request.Context()); err != nil {
		// Previous board state is retained; the caller gets it with the
		// error recorded.
		h.tracer.RecordError(txn, err)
	}

	resp := BoardResponse{
		Orders:    h.store.Orders(),
		IsLoading: h.store.IsLoading(),
		Error:     h.store.Err(),
	}
	if sync := h.store.LastSync(); !sync.IsZero() {
		resp.LastSync = &sync
	}

	c.JSON(http.StatusOK, resp)
}

// RegisterRoutes registers the handler's routes
func (h *KitchenHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/kitchen")
	api.GET("/orders", h.HandleGetBoard)
	api.POST("/orders/:id/status", h.HandleUpdateStatus)
	api.POST("/refresh", h.HandleRefresh)
}

func parseStatus(raw string) (kitchen.Status, bool) {
	switch kitchen.Status(strings.ToUpper(raw)) {
	case kitchen.StatusPending:
		return kitchen.StatusPending, true
	case kitchen.StatusPreparing:
		return kitchen.StatusPreparing, true
	case kitchen.StatusReady:
		return kitchen.StatusReady, true
	case kitchen.StatusDelayed:
		return kitchen.StatusDelayed, true
	case kitchen.StatusCompleted:
		return kitchen.StatusCompleted, true
	}
	return "", false
}
