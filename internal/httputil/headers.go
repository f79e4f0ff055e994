package httputil

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// SetRetryAfter writes the Retry-After header in whole seconds, rounding up and
// never below one second.
func SetRetryAfter(c *gin.Context, d time.Duration) {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
}
