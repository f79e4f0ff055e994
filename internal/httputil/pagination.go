package httputil

import (
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/roofline/crmcore/internal/errors"
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

// ErrInvalidPagination is returned for malformed offset or limit parameters.
var ErrInvalidPagination = apperrors.Wrap(
	apperrors.ErrInvalidInput,
	"offset must be a non-negative integer and limit must be between 1 and 100",
)

// ParsePagination parses the offset and limit query parameters.
// Defaults are offset 0 and limit 50; limit is capped at 100.
func ParsePagination(c *gin.Context) (offset, limit int, err error) {
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		return 0, 0, ErrInvalidPagination
	}

	limit, err = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 || limit > maxLimit {
		return 0, 0, ErrInvalidPagination
	}

	return offset, limit, nil
}
