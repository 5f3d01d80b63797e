package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/grumming/grumming-app-sub004/http/handlers"
	"github.com/grumming/grumming-app-sub004/logger"
	"github.com/stretchr/testify/assert"
)

func TestRouterPreflightAndHealth(t *testing.T) {
	log := logger.New(logger.Config{Level: logger.FATAL, Output: io.Discard})
	router := NewRouter(&handlers.Handler{Log: log}, log)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/create-razorpay-order", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "authorization")
	assert.Empty(t, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouterRejectsWrongMethod(t *testing.T) {
	log := logger.New(logger.Config{Level: logger.FATAL, Output: io.Discard})
	router := NewRouter(&handlers.Handler{Log: log}, log)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/send-sms-otp", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
