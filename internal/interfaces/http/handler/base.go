package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apporder "github.com/rouna/storefront/internal/application/order"
	"github.com/rouna/storefront/internal/domain/shared"
	"github.com/rouna/storefront/internal/infrastructure/logger"
	"github.com/rouna/storefront/internal/interfaces/http/dto"
	"github.com/rouna/storefront/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct {
	// ExposeErrors adds the technical cause to 500 answers. Never set in
	// production.
	ExposeErrors bool
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Message sends a 200 response that only carries a message
func (h *BaseHandler) Message(c *gin.Context, message string) {
	c.JSON(http.StatusOK, dto.NewMessageResponse(message))
}

// Error sends an error response with the status derived from code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(dto.GetHTTPStatus(code), dto.NewErrorResponse(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeBadRequest, message)
}

// Unauthorized sends a 401 unauthorized response
func (h *BaseHandler) Unauthorized(c *gin.Context) {
	h.Error(c, dto.ErrCodeUnauthorized, "Authentication required")
}

// HandleError converts service errors to HTTP responses. Domain errors keep
// their code; anything else is a 500 whose cause is logged.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID := middleware.GetRequestID(c)

	var stockErr *shared.InsufficientStockError
	if errors.As(err, &stockErr) {
		resp := dto.NewErrorResponse(dto.ErrCodeInsufficientStock, stockErr.Message, requestID)
		resp.Error.Stock = dto.NewStockShortage(stockErr)
		c.AbortWithStatusJSON(dto.GetHTTPStatus(dto.ErrCodeInsufficientStock), resp)
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		if status := dto.GetHTTPStatus(domainErr.Code); status != http.StatusInternalServerError {
			c.AbortWithStatusJSON(status, dto.NewErrorResponse(domainErr.Code, domainErr.Message, requestID))
			return
		}
	}

	logger.FromContext(c.Request.Context(), logger.GetGinLogger(c)).Error("Request failed",
		zap.String("route", c.FullPath()),
		zap.Error(err),
	)
	message := "An unexpected error occurred"
	if h.ExposeErrors {
		message += ": " + err.Error()
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError,
		dto.NewErrorResponse(dto.ErrCodeInternal, message, requestID))
}

// bindJSON binds the request body into req, answering 400 on failure
func (h *BaseHandler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// bindQuery binds the query string into req, answering 400 on failure
func (h *BaseHandler) bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// uuidParam parses a path parameter as a UUID, answering 400 on failure
func (h *BaseHandler) uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.Error(c, dto.ErrCodeInvalidInput, "Invalid "+name+": must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// intParam parses a non-negative integer path parameter
func (h *BaseHandler) intParam(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil || n < 0 {
		h.Error(c, dto.ErrCodeInvalidInput, "Invalid "+name+": must be a non-negative integer")
		return 0, false
	}
	return n, true
}

// userID returns the authenticated caller, answering 401 when absent
func (h *BaseHandler) userID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.GetUserID(c)
	if !ok {
		h.Unauthorized(c)
		return uuid.Nil, false
	}
	return id, true
}

// actor returns the authenticated caller with its role
func (h *BaseHandler) actor(c *gin.Context) (apporder.Actor, bool) {
	id, ok := h.userID(c)
	if !ok {
		return apporder.Actor{}, false
	}
	return apporder.Actor{UserID: id, IsAdmin: middleware.IsAdmin(c)}, true
}
