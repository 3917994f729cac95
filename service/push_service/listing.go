package push_service

import (
	"context"
	"fleet-push-service/models"
)

const maxPageSize = 100

// RecordPage 分页的令牌记录结果
type RecordPage struct {
	Records    []*models.UserTokenRecord `json:"records"`
	Total      int                       `json:"total"`
	Page       int                       `json:"page"`
	PageSize   int                       `json:"pageSize"`
	TotalPages int                       `json:"totalPages"`
	HasNext    bool                      `json:"hasNext"`
}

// RecordLister is implemented by stores that can enumerate their records.
type RecordLister interface {
	ListRecords(ctx context.Context, page, pageSize int) (*RecordPage, error)
}

// NormalizePage clamps paging parameters to page >= 1 and 1..100 per page.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// NewRecordPage 构造分页结果
func NewRecordPage(records []*models.UserTokenRecord, total, page, pageSize int) *RecordPage {
	if records == nil {
		records = []*models.UserTokenRecord{}
	}
	totalPages := (total + pageSize - 1) / pageSize
	return &RecordPage{
		Records:    records,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}
