package interfaces

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ApplicationContext carries a request through the middleware chain into a
// controller, with the payload already decoded into Body.
type ApplicationContext[T any] struct {
	Ctx        *gin.Context
	Body       *T
	Keys       map[string]any
	Header     http.Header
	DeviceID   string
	UserAgent  string
	DeviceName string
}

// GetHeader returns nil when the header is absent so callers can tell
// "missing" apart from "empty".
func (ac *ApplicationContext[T]) GetHeader(key string) *string {
	value := ac.Header.Get(key)
	if value == "" {
		return nil
	}
	return &value
}
