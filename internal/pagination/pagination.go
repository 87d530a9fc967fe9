package pagination

import (
	"math"
	"strconv"

	"gorm.io/gorm"
)

// MaxPageSize caps page_size regardless of what the client asks for.
const MaxPageSize = 100

// PageRequest holds pagination parameters parsed from query strings.
// The zero value means "everything", which is what list endpoints return
// when the client does not ask for a page.
type PageRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// Enabled reports whether the client asked for a page.
func (p *PageRequest) Enabled() bool {
	return p.Page > 0 || p.PageSize > 0
}

// Defaults fills in default values once pagination is requested.
func (p *PageRequest) Defaults() {
	if !p.Enabled() {
		return
	}
	if p.Page == 0 {
		p.Page = 1
	}
	if p.PageSize == 0 {
		p.PageSize = 20
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
}

// Offset returns the SQL OFFSET for the current page.
func (p *PageRequest) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// PageResponse wraps a list of items with metadata.
type PageResponse[T any] struct {
	Data       []T   `json:"data"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPageResponse creates a PageResponse from the given data and total count.
// An unpaginated response reports a single page holding every item.
func NewPageResponse[T any](data []T, page, pageSize int, totalItems int64) PageResponse[T] {
	if data == nil {
		data = []T{}
	}
	if pageSize == 0 {
		return PageResponse[T]{Data: data, Page: 1, PageSize: len(data), TotalItems: totalItems, TotalPages: 1}
	}
	totalPages := int(math.Ceil(float64(totalItems) / float64(pageSize)))
	return PageResponse[T]{
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: totalItems,
		TotalPages: totalPages,
	}
}

// TotalHeader is the response header carrying TotalItems for list endpoints
// that return a bare JSON array.
const TotalHeader = "X-Total-Count"

// TotalString formats TotalItems for TotalHeader.
func (r PageResponse[T]) TotalString() string {
	return strconv.FormatInt(r.TotalItems, 10)
}

// Paginate returns a GORM scope that applies OFFSET and LIMIT for the given
// page request, or leaves the query alone when pagination is off.
func Paginate(req PageRequest) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if !req.Enabled() {
			return db
		}
		return db.Offset(req.Offset()).Limit(req.PageSize)
	}
}
