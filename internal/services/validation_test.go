package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid request", func(t *testing.T) {
		valid := RegisterRequest{
			Email:       "jane@example.com",
			Password:    "password123",
			DisplayName: "Jane Doe",
		}

		assert.NoError(t, vh.ValidateStruct(&valid))
	})

	t.Run("every failing field is reported", func(t *testing.T) {
		invalid := RegisterRequest{
			Email:       "not-an-email",
			Password:    "short",
			DisplayName: "J",
		}

		err := vh.ValidateStruct(&invalid)
		assert.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Len(t, validationErrors, 3)
	})

	t.Run("question length", func(t *testing.T) {
		err := vh.ValidateStruct(&QuestionRequest{Question: "ab"})
		assert.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Equal(t, "Question", validationErrors[0].Field())
		assert.Equal(t, "min", validationErrors[0].Tag())
	})

	t.Run("purchase method whitelist", func(t *testing.T) {
		assert.NoError(t, vh.ValidateStruct(&PurchaseRequest{Amount: 10, Method: "qr"}))
		assert.Error(t, vh.ValidateStruct(&PurchaseRequest{Amount: 10, Method: "crypto"}))
	})
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("plain error", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Something went wrong", http.StatusInternalServerError, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response ErrorResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Something went wrong", response.Error)
		assert.Nil(t, response.Details)
	})

	t.Run("validation details are included", func(t *testing.T) {
		vh := NewValidationHelper()
		validationErr := vh.ValidateStruct(&RegisterRequest{
			Email:       "not-an-email",
			Password:    "short",
			DisplayName: "J",
		})
		assert.Error(t, validationErr)

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, validationErr)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response ErrorResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Validation failed", response.Error)
		assert.Contains(t, response.Details, "Email")
		assert.Contains(t, response.Details, "Password")
		assert.Contains(t, response.Details, "DisplayName")
	})

	t.Run("non-validation error adds no details", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, assert.AnError)

		var response ErrorResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Invalid request", response.Error)
		assert.Nil(t, response.Details)
	})
}
