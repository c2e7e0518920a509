package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `validate:"required"`
	Price int64  `validate:"gt=0"`
	Every int    `validate:"omitempty,gte=1"`
	Cycle string `validate:"oneof=daily weekly"`
}

func TestValidationError(t *testing.T) {
	err := validator.New().Struct(sample{Every: -1, Cycle: "hourly"})
	require.Error(t, err)

	resp := ValidationError(err.(validator.ValidationErrors))
	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "field Name is a required field")
	assert.Contains(t, resp.Error, "field Price must be greater than 0")
	assert.Contains(t, resp.Error, "field Every must be at least 1")
	assert.Contains(t, resp.Error, "field Cycle must be one of: daily weekly")
}

func TestFail(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	Fail(w, r, http.StatusConflict, "cannot upgrade")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"status":"Error","error":"cannot upgrade"}`, w.Body.String())
}

func TestStatusOKWithData(t *testing.T) {
	resp := StatusOKWithData(map[string]int{"id": 1})
	assert.Equal(t, StatusOK, resp.Status)
	assert.Empty(t, resp.Error)
}
