package settings

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "settings"))
	if err != nil {
		t.Fatalf("打开设置库失败: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndLoadView(t *testing.T) {
	s := openTestStore(t)

	in := ViewSettings{
		SellToken:  "0xabc",
		BuyToken:   "0xdef",
		ActiveOnly: true,
		Sort:       "best-deal",
		PageSize:   50,
	}
	if err := s.SaveView("taker", in); err != nil {
		t.Fatalf("保存失败: %v", err)
	}

	out, found, err := s.LoadView("taker")
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if !found {
		t.Fatalf("保存过的视图应能读到")
	}
	if out != in {
		t.Errorf("读出的设置不符: %+v", out)
	}
}

func TestLoadMissingView(t *testing.T) {
	s := openTestStore(t)

	_, found, err := s.LoadView("maker")
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if found {
		t.Errorf("从未保存的视图不应返回 found")
	}
}

func TestSaveOverwrites(t *testing.T) {
	s := openTestStore(t)

	_ = s.SaveView("taker", ViewSettings{PageSize: 10})
	_ = s.SaveView("taker", ViewSettings{PageSize: 100})

	out, _, err := s.LoadView("taker")
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if out.PageSize != 100 {
		t.Errorf("覆盖保存应以最新为准，实际 %d", out.PageSize)
	}
}
