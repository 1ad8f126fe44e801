package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, Status(Validation("email", "required")))
	assert.Equal(t, http.StatusNotFound, Status(fmt.Errorf("lookup: %w", NotFound("product", "p1"))))
	assert.Equal(t, http.StatusInternalServerError, Status(Upstream("insert order", errors.New("boom"))))
}

func TestUpstreamUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Upstream("select products", cause)

	assert.ErrorIs(t, err, cause)
	assert.Nil(t, Upstream("noop", nil))
}

func TestCompensationError(t *testing.T) {
	cause := errors.New("timeout")
	err := &CompensationError{OrderID: "o1", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "compensation failed for order o1")
}

func TestRespond_HidesUpstreamDetail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/orders", nil)

	Respond(c, Upstream("insert order", errors.New("pq: secret detail")), "Erreur lors de la création de la commande")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Erreur lors de la création de la commande", body["error"])
	assert.NotContains(t, w.Body.String(), "secret")
}

func TestRespond_Validation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/orders", nil)

	Respond(c, Validation("email", "l'email est requis"), "unused")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "l'email est requis")
}
