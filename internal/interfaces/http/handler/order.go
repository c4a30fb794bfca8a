package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apporder "github.com/rouna/storefront/internal/application/order"
	"github.com/rouna/storefront/internal/domain/order"
	"github.com/rouna/storefront/internal/domain/shared"
	"github.com/rouna/storefront/internal/interfaces/http/dto"
)

// IdempotencyKeyHeader lets clients retry a checkout safely
const IdempotencyKeyHeader = "Idempotency-Key"

// OrderService is the order use case surface the handlers need
type OrderService interface {
	Checkout(ctx context.Context, userID uuid.UUID, in apporder.CheckoutInput) (*apporder.OrderResponse, error)
	Get(ctx context.Context, actor apporder.Actor, orderID uuid.UUID) (*apporder.OrderDetailResponse, error)
	ListMine(ctx context.Context, userID uuid.UUID, q apporder.ListOrdersQuery) (*shared.Paginated[apporder.OrderResponse], error)
	ListAll(ctx context.Context, actor apporder.Actor, q apporder.ListOrdersQuery) (*shared.Paginated[apporder.OrderResponse], error)
	Stats(ctx context.Context, actor apporder.Actor) (*order.Stats, error)
	Receipt(ctx context.Context, actor apporder.Actor, orderID uuid.UUID) (*order.Receipt, error)
	Cancel(ctx context.Context, actor apporder.Actor, orderID uuid.UUID) (*apporder.OrderResponse, error)
	UpdateStatus(ctx context.Context, actor apporder.Actor, orderID uuid.UUID, in apporder.UpdateStatusInput) (*apporder.OrderResponse, error)
	RequestReturn(ctx context.Context, actor apporder.Actor, lineID uuid.UUID, req apporder.ReturnRequest) (*apporder.LineResponse, error)
	ApproveReturn(ctx context.Context, actor apporder.Actor, lineID uuid.UUID) (*apporder.LineResponse, error)
	RejectReturn(ctx context.Context, actor apporder.Actor, lineID uuid.UUID) (*apporder.LineResponse, error)
	CompleteReturn(ctx context.Context, actor apporder.Actor, lineID uuid.UUID) (*apporder.LineResponse, error)
}

// OrderHandler serves checkout and order management
type OrderHandler struct {
	BaseHandler
	orders OrderService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders OrderService, base BaseHandler) *OrderHandler {
	return &OrderHandler{BaseHandler: base, orders: orders}
}

// Checkout godoc
// @Summary      Place an order
// @Description  Reserve stock for every line and create a pending order in one transaction
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key header string false "Replays return the order placed by the first request"
// @Param        request body apporder.CheckoutInput true "Checkout request"
// @Success      201 {object} dto.Response{data=apporder.OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      429 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders [post]
func (h *OrderHandler) Checkout(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var in apporder.CheckoutInput
	if !h.bindJSON(c, &in) {
		return
	}
	in.IdempotencyKey = c.GetHeader(IdempotencyKeyHeader)

	resp, err := h.orders.Checkout(c.Request.Context(), userID, in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// ListMine godoc
// @Summary      List my orders
// @Description  Retrieve the caller's orders, newest first
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Param        status query string false "Order status" Enums(pending, processing, shipped, delivered, cancelled)
// @Param        payment_status query string false "Payment status" Enums(pending, paid, failed, refunded)
// @Param        start_date query string false "Created on or after (YYYY-MM-DD or RFC 3339)"
// @Param        end_date query string false "Created on or before (YYYY-MM-DD or RFC 3339)"
// @Success      200 {object} dto.Response{data=[]apporder.OrderResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/my-orders [get]
func (h *OrderHandler) ListMine(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var q apporder.ListOrdersQuery
	if !h.bindQuery(c, &q) {
		return
	}
	page, err := h.orders.ListMine(c.Request.Context(), userID, q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// ListAll godoc
// @Summary      List all orders
// @Description  Retrieve every order with optional filtering (admin)
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Param        status query string false "Order status" Enums(pending, processing, shipped, delivered, cancelled)
// @Param        payment_status query string false "Payment status" Enums(pending, paid, failed, refunded)
// @Param        start_date query string false "Created on or after (YYYY-MM-DD or RFC 3339)"
// @Param        end_date query string false "Created on or before (YYYY-MM-DD or RFC 3339)"
// @Param        user_id query string false "Buyer ID" format(uuid)
// @Success      200 {object} dto.Response{data=[]apporder.OrderResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders [get]
func (h *OrderHandler) ListAll(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var q apporder.ListOrdersQuery
	if !h.bindQuery(c, &q) {
		return
	}
	page, err := h.orders.ListAll(c.Request.Context(), actor, q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Get godoc
// @Summary      Get order by ID
// @Description  Retrieve an order with its lines; buyers see only their own orders
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} dto.Response{data=apporder.OrderDetailResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{id} [get]
func (h *OrderHandler) Get(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.orders.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Receipt godoc
// @Summary      Download receipt
// @Description  Stream the PDF receipt of an order, or redirect to its archived copy
// @Tags         orders
// @Produce      application/pdf
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {file} binary
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{id}/receipt [get]
func (h *OrderHandler) Receipt(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	receipt, err := h.orders.Receipt(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	switch {
	case len(receipt.Data) > 0:
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", receipt.Filename))
		c.Data(http.StatusOK, receipt.ContentType, receipt.Data)
	case receipt.URL != "":
		c.Redirect(http.StatusFound, receipt.URL)
	default:
		h.Error(c, dto.ErrCodeNotFound, "Receipt is not available")
	}
}

// Cancel godoc
// @Summary      Cancel order
// @Description  Cancel a pending or processing order and put its reserved units back in stock
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} dto.Response{data=apporder.OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{id}/cancel [post]
func (h *OrderHandler) Cancel(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.orders.Cancel(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// UpdateStatus godoc
// @Summary      Update order status
// @Description  Change status, payment status or tracking number (admin)
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Param        request body apporder.UpdateStatusInput true "Fields to change"
// @Success      200 {object} dto.Response{data=apporder.OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{id}/status [patch]
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var in apporder.UpdateStatusInput
	if !h.bindJSON(c, &in) {
		return
	}
	resp, err := h.orders.UpdateStatus(c.Request.Context(), actor, id, in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Stats godoc
// @Summary      Order statistics
// @Description  Order counts, monthly revenue, status breakdown and best sellers (admin)
// @Tags         orders
// @Produce      json
// @Success      200 {object} dto.Response{data=order.Stats}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/stats [get]
func (h *OrderHandler) Stats(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	stats, err := h.orders.Stats(c.Request.Context(), actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// RequestReturn godoc
// @Summary      Request a return
// @Description  Open a return on one of the caller's order lines
// @Tags         order-lines
// @Accept       json
// @Produce      json
// @Param        id path string true "Order line ID" format(uuid)
// @Param        request body apporder.ReturnRequest false "Return reason"
// @Success      200 {object} dto.Response{data=apporder.LineResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /order-lines/{id}/return [post]
func (h *OrderHandler) RequestReturn(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req apporder.ReturnRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.orders.RequestReturn(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ApproveReturn godoc
// @Summary      Approve a return
// @Description  Accept a requested return; the refund equals the line total (admin)
// @Tags         order-lines
// @Accept       json
// @Produce      json
// @Param        id path string true "Order line ID" format(uuid)
// @Success      200 {object} dto.Response{data=apporder.LineResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /order-lines/{id}/return/approve [post]
func (h *OrderHandler) ApproveReturn(c *gin.Context) {
	h.lineAction(c, h.orders.ApproveReturn)
}

// RejectReturn godoc
// @Summary      Reject a return
// @Description  Decline a requested return (admin)
// @Tags         order-lines
// @Accept       json
// @Produce      json
// @Param        id path string true "Order line ID" format(uuid)
// @Success      200 {object} dto.Response{data=apporder.LineResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /order-lines/{id}/return/reject [post]
func (h *OrderHandler) RejectReturn(c *gin.Context) {
	h.lineAction(c, h.orders.RejectReturn)
}

// CompleteReturn godoc
// @Summary      Complete a return
// @Description  Record the returned goods as received and restock them (admin)
// @Tags         order-lines
// @Accept       json
// @Produce      json
// @Param        id path string true "Order line ID" format(uuid)
// @Success      200 {object} dto.Response{data=apporder.LineResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /order-lines/{id}/return/complete [post]
func (h *OrderHandler) CompleteReturn(c *gin.Context) {
	h.lineAction(c, h.orders.CompleteReturn)
}

func (h *OrderHandler) lineAction(c *gin.Context, action func(context.Context, apporder.Actor, uuid.UUID) (*apporder.LineResponse, error)) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := action(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
