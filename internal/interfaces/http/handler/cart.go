package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appcart "github.com/rouna/storefront/internal/application/cart"
	"github.com/rouna/storefront/internal/interfaces/http/dto"
)

// CartService is the cart use case surface the handler needs
type CartService interface {
	Get(ctx context.Context, userID uuid.UUID) (*appcart.CartResponse, error)
	Sync(ctx context.Context, userID uuid.UUID, lines []appcart.LineInput) (*appcart.CartResponse, error)
	Merge(ctx context.Context, userID uuid.UUID, guestToken string, local []appcart.LineInput) (*appcart.CartResponse, error)
	Clear(ctx context.Context, userID uuid.UUID) error
	UpdateLine(ctx context.Context, userID uuid.UUID, index int, req appcart.UpdateLineRequest) (*appcart.CartResponse, error)
	RemoveLine(ctx context.Context, userID uuid.UUID, index int) (*appcart.CartResponse, error)
	PutGuest(ctx context.Context, token string, lines []appcart.LineInput) (*appcart.CartResponse, error)
	GetGuest(ctx context.Context, token string) (*appcart.CartResponse, error)
}

// CartHandler serves the authenticated cart and anonymous guest carts
type CartHandler struct {
	BaseHandler
	carts CartService
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(carts CartService, base BaseHandler) *CartHandler {
	return &CartHandler{BaseHandler: base, carts: carts}
}

// Get godoc
// @Summary      Get cart
// @Description  Return the caller's server cart with item details; lines of vanished items are omitted
// @Tags         cart
// @Accept       json
// @Produce      json
// @Success      200 {object} dto.Response{data=appcart.CartResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /cart [get]
func (h *CartHandler) Get(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	resp, err := h.carts.Get(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Sync godoc
// @Summary      Sync cart
// @Description  Overwrite the caller's cart with the client's lines, clamped to stock and repriced
// @Tags         cart
// @Accept       json
// @Produce      json
// @Param        request body appcart.SyncCartRequest true "Cart lines"
// @Success      200 {object} dto.Response{data=appcart.CartResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /cart/sync [post]
func (h *CartHandler) Sync(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var req appcart.SyncCartRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.carts.Sync(c.Request.Context(), userID, req.Lines)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Merge godoc
// @Summary      Merge carts at login
// @Description  Merge local lines, the device's guest cart and the server cart; the first line seen for a key wins
// @Tags         cart
// @Accept       json
// @Produce      json
// @Param        request body appcart.MergeCartRequest true "Local lines and guest token"
// @Success      200 {object} dto.Response{data=appcart.CartResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /cart/merge [post]
func (h *CartHandler) Merge(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var req appcart.MergeCartRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.carts.Merge(c.Request.Context(), userID, req.GuestToken, req.Lines)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Clear godoc
// @Summary      Clear cart
// @Description  Remove every line from the caller's cart
// @Tags         cart
// @Accept       json
// @Produce      json
// @Success      200 {object} dto.Response
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /cart [delete]
func (h *CartHandler) Clear(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	if err := h.carts.Clear(c.Request.Context(), userID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Message(c, "Cart cleared")
}

// UpdateLine godoc
// @Summary      Update cart line
// @Description  Change quantity, size or color of one line; the quantity is clamped to stock
// @Tags         cart
// @Accept       json
// @Produce      json
// @Param        index path int true "Line position in the cart" minimum(0)
// @Param        request body appcart.UpdateLineRequest true "Fields to change"
// @Success      200 {object} dto.Response{data=appcart.CartResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /cart/lines/{index} [put]
func (h *CartHandler) UpdateLine(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	index, ok := h.intParam(c, "index")
	if !ok {
		return
	}
	var req appcart.UpdateLineRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.carts.UpdateLine(c.Request.Context(), userID, index, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// RemoveLine godoc
// @Summary      Remove cart line
// @Description  Delete one line from the caller's cart
// @Tags         cart
// @Accept       json
// @Produce      json
// @Param        index path int true "Line position in the cart" minimum(0)
// @Success      200 {object} dto.Response{data=appcart.CartResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /cart/lines/{index} [delete]
func (h *CartHandler) RemoveLine(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	index, ok := h.intParam(c, "index")
	if !ok {
		return
	}
	resp, err := h.carts.RemoveLine(c.Request.Context(), userID, index)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// PutGuest godoc
// @Summary      Store guest cart
// @Description  Store the cart of an anonymous device until it is merged or expires
// @Tags         guest-carts
// @Accept       json
// @Produce      json
// @Param        token path string true "Guest cart token" minlength(8) maxlength(128)
// @Param        request body appcart.SyncCartRequest true "Cart lines"
// @Success      200 {object} dto.Response{data=appcart.CartResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /guest-carts/{token} [put]
func (h *CartHandler) PutGuest(c *gin.Context) {
	token, ok := h.guestToken(c)
	if !ok {
		return
	}
	var req appcart.SyncCartRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.carts.PutGuest(c.Request.Context(), token, req.Lines)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// GetGuest godoc
// @Summary      Get guest cart
// @Description  Return the cart of an anonymous device, empty when unknown
// @Tags         guest-carts
// @Accept       json
// @Produce      json
// @Param        token path string true "Guest cart token" minlength(8) maxlength(128)
// @Success      200 {object} dto.Response{data=appcart.CartResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /guest-carts/{token} [get]
func (h *CartHandler) GetGuest(c *gin.Context) {
	token, ok := h.guestToken(c)
	if !ok {
		return
	}
	resp, err := h.carts.GetGuest(c.Request.Context(), token)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

func (h *CartHandler) guestToken(c *gin.Context) (string, bool) {
	token := c.Param("token")
	if len(token) < 8 || len(token) > 128 {
		h.Error(c, dto.ErrCodeInvalidInput, "Guest token must be between 8 and 128 characters")
		return "", false
	}
	return token, true
}
