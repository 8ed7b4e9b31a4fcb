package postgres

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-portal/internal/models"
	"github.com/SAP-F-2025/quiz-portal/internal/repositories"
)

// SearchSpec whitelists what a list endpoint may search, filter and sort on.
// Keys are wire names, values are SQL column expressions.
type SearchSpec struct {
	Columns       map[string]string
	DefaultColumn string
	Filters       map[string]string
	Sorts         map[string]string
	DefaultSort   string
}

// Reserved filter keys for ordering.
const (
	FilterSortBy    = "sortBy"
	FilterSortOrder = "sortOrder"
)

// SharedHelpers contains query building shared by every repository.
type SharedHelpers struct{}

func NewSharedHelpers() *SharedHelpers {
	return &SharedHelpers{}
}

// ApplySearch adds the keyword condition on the whitelisted search column.
// Unknown columns fall back to the default column.
func (h *SharedHelpers) ApplySearch(query *gorm.DB, params models.ListParams, spec SearchSpec) *gorm.DB {
	keyword := strings.TrimSpace(params.SearchKeyword)
	if keyword == "" {
		return query
	}

	column, ok := spec.Columns[params.SearchColumn]
	if !ok {
		column, ok = spec.Columns[spec.DefaultColumn]
		if !ok {
			return query
		}
	}

	expr := fmt.Sprintf("CAST(%s AS TEXT)", column)
	switch params.SearchType {
	case models.SearchEquals:
		return query.Where(expr+" = ?", keyword)
	case models.SearchStartsWith:
		return query.Where(expr+" ILIKE ?", escapeLike(keyword)+"%")
	default:
		return query.Where(expr+" ILIKE ?", "%"+escapeLike(keyword)+"%")
	}
}

// ApplyFilters adds equality conditions for whitelisted filters; others are ignored.
func (h *SharedHelpers) ApplyFilters(query *gorm.DB, params models.ListParams, spec SearchSpec) *gorm.DB {
	for key, value := range params.Filters {
		column, ok := spec.Filters[key]
		if !ok || value == "" {
			continue
		}
		query = query.Where(column+" = ?", value)
	}
	return query
}

// ApplyPaginationAndSort applies ordering from the whitelist plus limit/offset.
func (h *SharedHelpers) ApplyPaginationAndSort(query *gorm.DB, params models.ListParams, spec SearchSpec) *gorm.DB {
	sortBy := spec.DefaultSort
	if col, ok := spec.Sorts[params.Filters[FilterSortBy]]; ok {
		sortBy = col
	}
	if sortBy == "" {
		sortBy = "created_at"
	}

	sortOrder := "DESC"
	if strings.EqualFold(params.Filters[FilterSortOrder], "asc") {
		sortOrder = "ASC"
	}

	query = query.Order(sortBy + " " + sortOrder)
	if params.PerPage > 0 {
		query = query.Limit(params.PerPage)
	}
	if offset := params.Offset(); offset > 0 {
		query = query.Offset(offset)
	}
	return query
}

// Paginate counts the filtered query, then fetches the requested page into dest.
func (h *SharedHelpers) Paginate(query *gorm.DB, params models.ListParams, spec SearchSpec, dest any) (int64, error) {
	query = h.ApplyFilters(h.ApplySearch(query, params, spec), params, spec)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	if total == 0 {
		return 0, nil
	}

	if err := h.ApplyPaginationAndSort(query, params, spec).Find(dest).Error; err != nil {
		return 0, fmt.Errorf("failed to list records: %w", err)
	}
	return total, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// mapError translates gorm errors into repository errors.
func mapError(err error, action string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repositories.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s: %w", action, repositories.ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", action, err)
}
