package table

import "fmt"

// PageSizeAll 表示"全部"页大小
const PageSizeAll = -1

// PageSizes 页大小选项（-1 = 全部）
var PageSizes = []int{10, 25, 50, 100, PageSizeAll}

// Pagination 分页控件状态
// 表格顶部和底部各有一份，内容始终一致
type Pagination struct {
	Page        int
	TotalPages  int
	PrevEnabled bool
	NextEnabled bool
	Message     string
}

// TotalPages 计算总页数（T=0 也算 1 页，保证 currentPage 始终有效）
func TotalPages(total, pageSize int) int {
	if pageSize == PageSizeAll || total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

// ClampPage 把页码夹到 [1, totalPages]
func ClampPage(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

// buildPagination 根据总数/页码/页大小生成控件状态
func buildPagination(total, page, pageSize int) Pagination {
	if pageSize == PageSizeAll {
		return Pagination{
			Page:       1,
			TotalPages: 1,
			Message:    fmt.Sprintf("Showing all %d orders", total),
		}
	}

	totalPages := TotalPages(total, pageSize)
	page = ClampPage(page, totalPages)

	start := (page-1)*pageSize + 1
	end := page * pageSize
	if end > total {
		end = total
	}
	if total == 0 {
		start = 0
	}

	return Pagination{
		Page:        page,
		TotalPages:  totalPages,
		PrevEnabled: page > 1,
		NextEnabled: page < totalPages,
		Message: fmt.Sprintf("%d-%d of %d orders (Page %d of %d)",
			start, end, total, page, totalPages),
	}
}

// Paginate 取出第 page 页（pageSize 为 PageSizeAll 时返回全部）
func Paginate[T any](items []T, page, pageSize int) []T {
	if pageSize == PageSizeAll {
		return items
	}
	totalPages := TotalPages(len(items), pageSize)
	page = ClampPage(page, totalPages)

	start := (page - 1) * pageSize
	if start >= len(items) {
		return nil
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
