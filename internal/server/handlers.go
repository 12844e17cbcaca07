package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/matthieukhl/loom/internal/audit"
	"github.com/matthieukhl/loom/internal/cart"
	"github.com/matthieukhl/loom/internal/chat"
	"github.com/matthieukhl/loom/internal/models"
	"github.com/matthieukhl/loom/internal/orders"
	"github.com/matthieukhl/loom/internal/sessions"
	"go.uber.org/zap"
)

type sessionRequest struct {
	SessionID string `json:"sessionId"`
	Channel   string `json:"channel"`
	Stage     string `json:"stage"`
}

type logRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	AgentName string `json:"agentName" binding:"required"`
	Action    string `json:"action" binding:"required"`
	Message   string `json:"message"`
}

type removeRequest struct {
	SessionID string `json:"sessionId"`
	VariantID int64  `json:"variantId"`
}

type orderRequest struct {
	SessionID string `json:"sessionId"`
	OrderID   string `json:"orderId"`
	Status    string `json:"status"`
}

type commandRequest struct {
	Message string `json:"message" binding:"required"`
}

// writeError maps domain errors to status codes. Unknown errors are logged
// and reported as 500 without detail.
func (s *Server) writeError(c *gin.Context, err error) {
	var limit *cart.StockLimitError
	switch {
	case errors.As(err, &limit):
		c.JSON(http.StatusConflict, gin.H{
			"success":   false,
			"error":     limit.Code(),
			"message":   limit.Error(),
			"available": limit.Available,
			"in_cart":   limit.InCart,
		})
	case errors.Is(err, cart.ErrInvalidRequest),
		errors.Is(err, sessions.ErrInvalidChannel),
		errors.Is(err, orders.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, orders.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Empty cart"})
	case errors.Is(err, sessions.ErrNotFound), errors.Is(err, orders.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, orders.ErrIllegalTransition):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
	default:
		_ = c.Error(err)
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
}

func (s *Server) createSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}
	session, err := s.deps.Sessions.Create(c.Request.Context(), req.Channel)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) setStage(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.deps.Sessions.SetStage(c.Request.Context(), req.SessionID, req.Stage); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) switchChannel(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.deps.Sessions.SwitchChannel(c.Request.Context(), req.SessionID, req.Channel); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// chatMessage always answers 200 with a reply once the request is valid.
func (s *Server) chatMessage(c *gin.Context) {
	var req chat.Request
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, s.deps.Chat.Handle(c.Request.Context(), req))
}

func (s *Server) chatHistory(c *gin.Context) {
	history, err := s.deps.Events.History(c.Request.Context(), c.Query("sessionId"))
	if err != nil {
		s.logger.Warn("failed to read chat history", zap.Error(err))
		history = []audit.ChatMessage{}
	}
	c.JSON(http.StatusOK, orEmpty(history))
}

func (s *Server) timeline(c *gin.Context) {
	events, err := s.deps.Events.Timeline(c.Request.Context())
	if err != nil {
		s.logger.Warn("failed to read timeline", zap.Error(err))
		events = []models.AgentEvent{}
	}
	c.JSON(http.StatusOK, orEmpty(events))
}

func (s *Server) logEvent(c *gin.Context) {
	var req logRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	event, err := audit.NewEvent(req.SessionID, req.AgentName, req.Action, map[string]any{"message": req.Message})
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.deps.Events.Append(c.Request.Context(), event); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) agentFeed(c *gin.Context) {
	events, err := s.deps.Events.AgentFeed(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		s.logger.Error("failed to read agent feed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, []models.AgentEvent{})
		return
	}
	c.JSON(http.StatusOK, orEmpty(events))
}

func (s *Server) listProducts(c *gin.Context) {
	products, err := s.deps.Catalog.List(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orEmpty(products))
}

func (s *Server) getCart(c *gin.Context) {
	result, err := s.deps.Cart.Get(c.Request.Context(), c.Query("sessionId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) addToCart(c *gin.Context) {
	var req cart.AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := s.deps.Cart.Add(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "item": result})
}

func (s *Server) removeFromCart(c *gin.Context) {
	var req removeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.deps.Cart.Remove(c.Request.Context(), req.SessionID, req.VariantID); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) clearCart(c *gin.Context) {
	if err := s.deps.Cart.Clear(c.Request.Context(), c.Query("sessionId")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// placeOrder ignores any client supplied total; it is computed from the cart.
func (s *Server) placeOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := s.deps.Orders.Place(c.Request.Context(), req.SessionID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"orderId": p.Order.ID,
		"total":   p.Order.TotalAmount,
		"marker":  p.Marker,
		"message": p.Message,
		"loyalty": p.Reward,
	})
}

func (s *Server) cancelOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.deps.Orders.Cancel(c.Request.Context(), req.OrderID); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) updateOrderStatus(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.deps.Orders.UpdateStatus(c.Request.Context(), req.OrderID, req.Status); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "action": orders.ActionRefreshOrders})
}

func (s *Server) listOrders(c *gin.Context) {
	list, err := s.deps.Orders.List(c.Request.Context(), c.Query("sessionId"))
	if err != nil {
		s.logger.Warn("failed to list orders", zap.Error(err))
		list = []models.Order{}
	}
	c.JSON(http.StatusOK, orEmpty(list))
}

func (s *Server) adminCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, s.deps.Operator.Handle(c.Request.Context(), req.Message))
}

// orEmpty keeps list endpoints from encoding a nil slice as null.
func orEmpty[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
