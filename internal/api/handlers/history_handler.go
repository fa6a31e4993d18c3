package handlers

import (
	"net/http"
	"strconv"

	"example.com/resto/services/kitchen/internal/search"
	"example.com/resto/services/kitchen/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// HistoryHandler searches completed orders in the history index
type HistoryHandler struct {
	elastic *search.ElasticClient
	tracer  tracing.Tracer
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(elastic *search.ElasticClient, tracer tracing.Tracer) *HistoryHandler {
	return &HistoryHandler{
		elastic: elastic,
		tracer:  tracer,
	}
}

// HandleSearchHistory searches completed orders by customer name and
// order type.
func (h *HistoryHandler) HandleSearchHistory(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-kitchen-history")
	defer h.tracer.EndTransaction(txn)

	if h.elastic == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "order history search is not available"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	var must []map[string]interface{}
	if customer := c.Query("customer"); customer != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{"customer_name": customer},
		})
	}
	if orderType := c.Query("type"); orderType != "" {
		must = append(must, map[string]interface{}{
			"term": map[string]interface{}{"order_type": orderType},
		})
	}
	if len(must) == 0 {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	query := map[string]interface{}{
		"size": limit,
		"sort": []map[string]interface{}{
			{"created_at": map[string]interface{}{"order": "desc"}},
		},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must},
		},
	}

	docs, err := h.elastic.SearchOrders(c.Request.Context(), query)
	if err != nil {
		log.Error().Err(err).Msg("Order history search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": docs, "count": len(docs)})
}

// RegisterRoutes registers the handler's routes
func (h *HistoryHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/api/v1/kitchen/history", h.HandleSearchHistory)
}
