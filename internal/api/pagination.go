package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mescon/beepwatch/internal/db"
)

// pageRequest is a validated ?page=&limit= pair. Page is 1-based.
type pageRequest struct {
	Page  int
	Limit int
}

func (p pageRequest) offset() int {
	return (p.Page - 1) * p.Limit
}

// pageInfo is the "pagination" object of list responses.
type pageInfo struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

func (p pageRequest) info(total int64) pageInfo {
	info := pageInfo{Page: p.Page, Limit: p.Limit, Total: total}
	if p.Limit > 0 {
		info.TotalPages = (total + int64(p.Limit) - 1) / int64(p.Limit)
	}
	return info
}

// parsePage reads paging from the query string. Missing or invalid values
// fall back to page 1 and the journal's default limit; large limits are capped.
func parsePage(c *gin.Context) pageRequest {
	p := pageRequest{
		Page:  queryInt(c, "page", 1),
		Limit: queryInt(c, "limit", db.DefaultEventLimit),
	}
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.Limit < 1:
		p.Limit = db.DefaultEventLimit
	case p.Limit > db.MaxEventLimit:
		p.Limit = db.MaxEventLimit
	}
	return p
}

func queryInt(c *gin.Context, key string, fallback int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	return n
}
