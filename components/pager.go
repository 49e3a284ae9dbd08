package components

import (
	"net/url"
	"strconv"
)

// Pager drives the "pager" template for list pages.
type Pager struct {
	Page    int
	Pages   int
	Total   int64
	PerPage int
	values  url.Values
}

// NewPager reads ?page= from values. Page numbers start at 1.
func NewPager(values url.Values, perPage int) *Pager {
	page, err := strconv.Atoi(values.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	return &Pager{Page: page, PerPage: perPage, Pages: 1, values: values}
}

func (p *Pager) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// SetTotal fixes the page count once the total row count is known.
func (p *Pager) SetTotal(total int64) {
	p.Total = total
	p.Pages = int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	if p.Pages < 1 {
		p.Pages = 1
	}
}

// Query returns the current query string with page replaced.
func (p *Pager) Query(page int) string {
	v := url.Values{}
	for k, vals := range p.values {
		v[k] = vals
	}
	v.Set("page", strconv.Itoa(page))
	return v.Encode()
}
