package client

import (
	"net/url"
	"strconv"
	"strings"
)

type SearchType string

const (
	SearchContains   SearchType = "contains"
	SearchEquals     SearchType = "equals"
	SearchStartsWith SearchType = "starts_with"
)

// ListParams mirror the list query string. Page is 0-based here and sent 1-based.
type ListParams struct {
	Page          int
	PerPage       int
	SearchType    SearchType
	SearchColumn  string
	SearchKeyword string
	Filters       map[string]string
	Include       []string
}

func (p ListParams) Values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(p.Page+1))
	if p.PerPage > 0 {
		v.Set("perPage", strconv.Itoa(p.PerPage))
	}
	if p.SearchKeyword != "" {
		if p.SearchType != "" {
			v.Set("searchType", string(p.SearchType))
		}
		if p.SearchColumn != "" {
			v.Set("searchColumn", p.SearchColumn)
		}
		v.Set("searchKeyword", p.SearchKeyword)
	}
	for key, value := range p.Filters {
		if value != "" {
			v.Set("filters["+key+"]", value)
		}
	}
	if len(p.Include) > 0 {
		v.Set("include", strings.Join(p.Include, ","))
	}
	return v
}
