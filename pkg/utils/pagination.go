package utils

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PaginationParams carries the page-based query parameters of the
// offset-paginated history endpoints.
type PaginationParams struct {
	Page     int
	PageSize int
	Offset   int
}

// GetPaginationParams parses `page` and `limit` from the query string.
// Out-of-range values fall back to page 1 and the default page size; limit
// is capped at maxPageSize.
func GetPaginationParams(c echo.Context) PaginationParams {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page <= 0 {
		page = 1
	}

	size, _ := strconv.Atoi(c.QueryParam("limit"))
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}

	return PaginationParams{
		Page:     page,
		PageSize: size,
		Offset:   (page - 1) * size,
	}
}
