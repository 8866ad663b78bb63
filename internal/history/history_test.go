package history

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("打开历史库失败: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Record(ctx, "fill", 1, true, ""); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if err := s.Record(ctx, "cancel", 2, false, "撤单被拒"); err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	entries, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("期望 2 条记录，实际 %d", len(entries))
	}
	// 新的在前
	if entries[0].Kind != "cancel" || entries[0].Success || entries[0].Message != "撤单被拒" {
		t.Errorf("最新记录不符: %+v", entries[0])
	}
	if entries[1].Kind != "fill" || !entries[1].Success {
		t.Errorf("第二条记录不符: %+v", entries[1])
	}
}

func TestRecentLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 20; i++ {
		if err := s.Record(ctx, "fill", int64(i), true, ""); err != nil {
			t.Fatalf("写入失败: %v", err)
		}
	}
	entries, err := s.Recent(ctx, 5)
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("limit 应生效，实际 %d 条", len(entries))
	}
	if entries[0].OrderID != 20 {
		t.Errorf("最新记录应是订单 20，实际 %d", entries[0].OrderID)
	}
}

func TestCountByOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_ = s.Record(ctx, "fill", 7, false, "第一次失败")
	_ = s.Record(ctx, "fill", 7, true, "")
	_ = s.Record(ctx, "fill", 8, true, "")

	n, err := s.CountByOrder(ctx, 7)
	if err != nil {
		t.Fatalf("统计失败: %v", err)
	}
	if n != 2 {
		t.Errorf("订单 7 应有 2 条记录，实际 %d", n)
	}
}

func TestNilStoreIsSafe(t *testing.T) {
	var s *Store
	if err := s.Record(context.Background(), "fill", 1, true, ""); err != nil {
		t.Errorf("nil store 写入应为 no-op: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("nil store 关闭应为 no-op: %v", err)
	}
}
