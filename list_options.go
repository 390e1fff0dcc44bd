package main

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

type SortType string

const (
	SortTypeAscending  SortType = "asc"
	SortTypeDescending SortType = "desc"
)

func (s SortType) ToString() string {
	return strings.ToUpper(string(s))
}

// ParseSortType accepts "asc" or "desc" in any case.
func ParseSortType(raw string) (SortType, error) {
	switch s := SortType(strings.ToLower(raw)); s {
	case SortTypeAscending, SortTypeDescending:
		return s, nil
	default:
		return "", fmt.Errorf("invalid sort type: %s", raw)
	}
}

const (
	DefaultLimit = 20
	MaxLimit     = 1000
)

// ListOptions pages and orders history queries. A zero Limit means DefaultLimit.
type ListOptions struct {
	Offset uint32
	Limit  uint32
	Sort   *SortType
}

func (o *ListOptions) limit() int {
	if o == nil || o.Limit == 0 {
		return DefaultLimit
	}
	if o.Limit > MaxLimit {
		return MaxLimit
	}
	return int(o.Limit)
}

func applyListOptions(db *gorm.DB, sortBy string, defaultSort SortType, options *ListOptions) *gorm.DB {
	sort := defaultSort
	offset := 0
	if options != nil {
		if options.Sort != nil {
			sort = *options.Sort
		}
		offset = int(options.Offset)
	}

	return db.Order(sortBy + " " + sort.ToString()).
		Offset(offset).
		Limit(options.limit())
}
