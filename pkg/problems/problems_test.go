package problems

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase(t *testing.T) {
	t.Setenv("PROBLEM_BASE_URL", "")
	t.Setenv("BASE_PUBLIC_URL", "")
	assert.Equal(t, "https://example.com/problems", Base())

	t.Setenv("BASE_PUBLIC_URL", "https://shop.test/")
	assert.Equal(t, "https://shop.test/problems/no-cart", Type("no-cart"))

	t.Setenv("PROBLEM_BASE_URL", "https://errors.test/p/")
	assert.Equal(t, "https://errors.test/p", Base())
}

func TestWrite(t *testing.T) {
	t.Setenv("PROBLEM_BASE_URL", "https://errors.test")
	rec := httptest.NewRecorder()
	Write(rec, http.StatusConflict, "checkout-in-progress", "Checkout in progress", "try again")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var p Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, Problem{Type: "https://errors.test/checkout-in-progress", Title: "Checkout in progress", Status: 409, Detail: "try again"}, p)
}
