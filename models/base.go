package models

// Page 列表接口的分页元信息
type Page struct {
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// NewPage 创建一个新的分页元信息对象
func NewPage(total int64, limit, offset int) Page {
	return Page{
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
}
