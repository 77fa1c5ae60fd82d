package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type submitRequest struct {
	Token  string `json:"token" validate:"required"`
	Rating int    `json:"rating" validate:"gte=1,lte=5"`
	Body   string `json:"body" validate:"notblank,max=20"`
	Action string `json:"action,omitempty" validate:"omitempty,oneof=approve reject"`
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	return valErr.Fields()
}

func TestValidate_Success(t *testing.T) {
	assert.NoError(t, Validate(submitRequest{Token: "a.b", Rating: 5, Body: "great"}))
}

func TestValidate_FieldMessages(t *testing.T) {
	tests := []struct {
		name  string
		input submitRequest
		field string
		msg   string
	}{
		{"missing token", submitRequest{Rating: 3, Body: "ok"}, "token", "is required"},
		{"rating too low", submitRequest{Token: "t", Rating: 0, Body: "ok"}, "rating", "must be greater than or equal to 1"},
		{"rating too high", submitRequest{Token: "t", Rating: 6, Body: "ok"}, "rating", "must be less than or equal to 5"},
		{"blank body", submitRequest{Token: "t", Rating: 3, Body: "   \n\t"}, "body", "must not be blank"},
		{"long body", submitRequest{Token: "t", Rating: 3, Body: strings.Repeat("x", 21)}, "body", "must be at most 20 characters"},
		{"bad action", submitRequest{Token: "t", Rating: 3, Body: "ok", Action: "hide"}, "action", "must be one of: approve reject"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := fieldsOf(t, Validate(tt.input))
			assert.Equal(t, tt.msg, fields[tt.field])
		})
	}
}

func TestValidationError_ErrorString(t *testing.T) {
	err := Validate(submitRequest{Rating: 9, Body: "ok"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'token' is required")
	assert.Contains(t, err.Error(), "; ")
}

func TestDecodeAndValidate(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"token":"a.b","rating":4,"body":"nice"}`))
	var dst submitRequest
	require.NoError(t, DecodeAndValidate(req, &dst))
	assert.Equal(t, 4, dst.Rating)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))
	err := DecodeAndValidate(req, &dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"token":"a.b","rating":0,"body":"x"}`))
	assert.Contains(t, fieldsOf(t, DecodeAndValidate(req, &submitRequest{})), "rating")
}
