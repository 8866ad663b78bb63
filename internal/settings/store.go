package settings

import (
	"encoding/json"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "settings")

// ViewSettings 单个视图持久化的控件状态
// 过滤条件、排序模式、页大小跨会话保留；页码不保留（下次打开回到第 1 页）
type ViewSettings struct {
	SellToken  string `json:"sell_token"`
	BuyToken   string `json:"buy_token"`
	ActiveOnly bool   `json:"active_only"`
	Sort       string `json:"sort"`
	PageSize   int    `json:"page_size"`
}

// Store 界面设置持久化（Badger KV）
type Store struct {
	db *badger.DB
}

// Open 打开设置库
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("settings: path is required")
	}
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "打开设置库失败")
	}
	return &Store{db: db}, nil
}

// Close 关闭设置库
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func viewKey(name string) []byte {
	return []byte("view:" + name)
}

// SaveView 保存一个视图的控件状态
func (s *Store) SaveView(name string, v ViewSettings) error {
	if s == nil || s.db == nil {
		return errors.New("settings: not opened")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "序列化设置失败")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(viewKey(name), raw)
	})
}

// LoadView 读取一个视图的控件状态；从未保存过时返回 false
func (s *Store) LoadView(name string) (ViewSettings, bool, error) {
	var v ViewSettings
	if s == nil || s.db == nil {
		return v, false, errors.New("settings: not opened")
	}
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(viewKey(name))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		})
	})
	if err != nil {
		return ViewSettings{}, false, err
	}
	if found {
		log.Debugf("已加载视图设置: %s", name)
	}
	return v, found, nil
}
