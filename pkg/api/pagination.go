package api

import (
	"fmt"
	"strconv"
)

// PaginationParams carries a requested page window, generalized from
// the teacher's message-pagination params to any ordered record
// listing (files, events).
type PaginationParams struct {
	Limit  int
	Before string
	After  string
}

const DefaultLimit = 50

const MaxLimit = 200

// PaginationMetadata describes the page actually returned.
type PaginationMetadata struct {
	TotalCount int    `json:"total_count"`
	Limit      int    `json:"limit"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor,omitempty"`
	PrevCursor string `json:"prev_cursor,omitempty"`
}

// paginate slices items by an index window derived from before/after
// cursors, the same index-arithmetic shape as the teacher's
// PaginateMessages, generalized with a type parameter so it serves
// both file and event listings without a per-type copy.
func paginate[T any](items []T, params PaginationParams) ([]T, *PaginationMetadata, error) {
	total := len(items)

	limit := params.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	var beforeIndex, afterIndex int
	var err error
	if params.Before != "" {
		beforeIndex, err = strconv.Atoi(params.Before)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid before cursor: %w", err)
		}
	}
	if params.After != "" {
		afterIndex, err = strconv.Atoi(params.After)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid after cursor: %w", err)
		}
	}

	startIdx := 0
	endIdx := total

	if params.After != "" {
		startIdx = afterIndex + 1
		if startIdx >= total {
			return []T{}, &PaginationMetadata{TotalCount: total}, nil
		}
	}
	if params.Before != "" {
		endIdx = beforeIndex
		if endIdx <= 0 {
			return []T{}, &PaginationMetadata{TotalCount: total}, nil
		}
	}

	if params.Before != "" {
		startIdx = max(endIdx-limit, startIdx)
	} else {
		endIdx = min(startIdx+limit, endIdx)
	}

	page := items[startIdx:endIdx]
	meta := &PaginationMetadata{TotalCount: total, Limit: len(page)}
	if params.Before != "" {
		meta.HasMore = startIdx > 0
	} else {
		meta.HasMore = endIdx < total
	}
	if len(page) > 0 {
		meta.NextCursor = strconv.Itoa(endIdx - 1)
		meta.PrevCursor = strconv.Itoa(startIdx)
	}
	return page, meta, nil
}
