package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkoutForm struct {
	Items []struct {
		ItemID   string `json:"item_id" binding:"required,uuid"`
		Quantity int    `json:"quantity" binding:"required,min=1,max=99"`
	} `json:"items" binding:"required,min=1,dive"`
	PaymentMethod  string `json:"payment_method" binding:"required,payment_method"`
	ShippingMethod string `json:"shipping_method" binding:"omitempty,shipping_method"`
	Status         string `json:"status" binding:"omitempty,order_status"`
	PaymentStatus  string `json:"payment_status" binding:"omitempty,payment_status"`
}

func TestSetupValidator(t *testing.T) {
	require.NoError(t, SetupValidator())
}

func TestRegisterValidations(t *testing.T) {
	v := validator.New()
	require.NoError(t, RegisterValidations(v))

	type payload struct {
		Payment  string `json:"payment" validate:"payment_method"`
		Shipping string `json:"shipping" validate:"shipping_method"`
		Status   string `json:"status" validate:"order_status"`
		Paid     string `json:"paid" validate:"payment_status"`
	}

	assert.NoError(t, v.Struct(payload{
		Payment: "cash_on_delivery", Shipping: "express", Status: "shipped", Paid: "refunded",
	}))

	err := v.Struct(payload{Payment: "bitcoin", Shipping: "drone", Status: "lost", Paid: "maybe"})
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 4)
	assert.Equal(t, "payment", verrs[0].Field())
}

func TestHandleValidationError(t *testing.T) {
	require.NoError(t, SetupValidator())

	router := gin.New()
	router.Use(RequestID())
	router.POST("/checkout", func(c *gin.Context) {
		var form checkoutForm
		if err := c.ShouldBindJSON(&form); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusCreated)
	})

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	tests := []struct {
		name     string
		body     string
		status   int
		contains []string
	}{
		{
			name:   "valid",
			body:   `{"items":[{"item_id":"6f1c1a52-2f5b-4a7e-9d55-0b8c8f0d3c11","quantity":2}],"payment_method":"paypal"}`,
			status: http.StatusCreated,
		},
		{
			name:     "nested line field path",
			body:     `{"items":[{"item_id":"6f1c1a52-2f5b-4a7e-9d55-0b8c8f0d3c11","quantity":2},{"item_id":"6f1c1a52-2f5b-4a7e-9d55-0b8c8f0d3c11","quantity":0}],"payment_method":"paypal"}`,
			status:   http.StatusBadRequest,
			contains: []string{`"field":"items[1].quantity"`, `"This field is required"`},
		},
		{
			name:     "quantity above cap",
			body:     `{"items":[{"item_id":"6f1c1a52-2f5b-4a7e-9d55-0b8c8f0d3c11","quantity":100}],"payment_method":"paypal"}`,
			status:   http.StatusBadRequest,
			contains: []string{`"Must be at most 99"`},
		},
		{
			name:     "unknown enum values",
			body:     `{"items":[{"item_id":"6f1c1a52-2f5b-4a7e-9d55-0b8c8f0d3c11","quantity":1}],"payment_method":"barter","shipping_method":"teleport"}`,
			status:   http.StatusBadRequest,
			contains: []string{`"Unknown payment method"`, `"Unknown shipping method"`},
		},
		{
			name:     "empty items",
			body:     `{"items":[],"payment_method":"paypal"}`,
			status:   http.StatusBadRequest,
			contains: []string{`"field":"items"`, `"Must contain at least 1 entries"`},
		},
		{
			name:     "malformed json",
			body:     `{"items":`,
			status:   http.StatusBadRequest,
			contains: []string{`"Malformed request body"`, `"code":"VALIDATION_ERROR"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(tt.body)
			assert.Equal(t, tt.status, w.Code)
			for _, s := range tt.contains {
				assert.Contains(t, w.Body.String(), s)
			}
		})
	}
}
