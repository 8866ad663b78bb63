package table

import "testing"

func TestTotalPages(t *testing.T) {
	cases := []struct {
		total, pageSize, want int
	}{
		{0, 10, 1}, // 空表也算 1 页
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{30, 10, 3},
		{30, 25, 2},
		{30, PageSizeAll, 1},
		{100, -1, 1},
	}
	for _, c := range cases {
		if got := TotalPages(c.total, c.pageSize); got != c.want {
			t.Errorf("TotalPages(%d, %d) = %d, 期望 %d", c.total, c.pageSize, got, c.want)
		}
	}
}

func TestClampPage(t *testing.T) {
	cases := []struct {
		page, totalPages, want int
	}{
		{0, 3, 1},
		{-5, 3, 1},
		{1, 3, 1},
		{3, 3, 3},
		{4, 3, 3},
		{100, 1, 1},
	}
	for _, c := range cases {
		if got := ClampPage(c.page, c.totalPages); got != c.want {
			t.Errorf("ClampPage(%d, %d) = %d, 期望 %d", c.page, c.totalPages, got, c.want)
		}
	}
}

func TestBuildPaginationMessage(t *testing.T) {
	// 30 条、每页 10、第 2 页
	pag := buildPagination(30, 2, 10)
	if pag.Message != "11-20 of 30 orders (Page 2 of 3)" {
		t.Errorf("分页文案不符: %q", pag.Message)
	}
	if !pag.PrevEnabled || !pag.NextEnabled {
		t.Errorf("中间页上下都应可用")
	}

	// 末页不满
	pag = buildPagination(25, 3, 10)
	if pag.Message != "21-25 of 25 orders (Page 3 of 3)" {
		t.Errorf("末页文案不符: %q", pag.Message)
	}
	if pag.NextEnabled {
		t.Errorf("末页下一页应禁用")
	}

	// 空表
	pag = buildPagination(0, 1, 10)
	if pag.Message != "0-0 of 0 orders (Page 1 of 1)" {
		t.Errorf("空表文案不符: %q", pag.Message)
	}
	if pag.PrevEnabled || pag.NextEnabled {
		t.Errorf("空表翻页都应禁用")
	}
}

func TestBuildPaginationAll(t *testing.T) {
	pag := buildPagination(42, 3, PageSizeAll)
	if pag.Message != "Showing all 42 orders" {
		t.Errorf("全部模式文案不符: %q", pag.Message)
	}
	if pag.PrevEnabled || pag.NextEnabled {
		t.Errorf("全部模式翻页应禁用")
	}
	if pag.Page != 1 || pag.TotalPages != 1 {
		t.Errorf("全部模式应归到第 1 页")
	}
}

func TestBuildPaginationClampsOverflowPage(t *testing.T) {
	// 页码越界时夹回末页
	pag := buildPagination(30, 9, 10)
	if pag.Page != 3 {
		t.Errorf("越界页码应夹到 3，实际 %d", pag.Page)
	}
}

func TestPaginate(t *testing.T) {
	items := make([]int, 30)
	for i := range items {
		items[i] = i
	}

	page2 := Paginate(items, 2, 10)
	if len(page2) != 10 || page2[0] != 10 || page2[9] != 19 {
		t.Errorf("第 2 页内容不符: %v", page2)
	}

	last := Paginate(items, 3, 12)
	if len(last) != 6 {
		t.Errorf("末页应有 6 条，实际 %d", len(last))
	}

	all := Paginate(items, 5, PageSizeAll)
	if len(all) != 30 {
		t.Errorf("全部模式应返回全部")
	}

	// 越界页码夹回末页而不是空页
	clamped := Paginate(items, 99, 10)
	if len(clamped) != 10 || clamped[0] != 20 {
		t.Errorf("越界页码应夹回末页: %v", clamped)
	}

	if got := Paginate([]int{}, 1, 10); len(got) != 0 {
		t.Errorf("空输入应返回空页")
	}
}
