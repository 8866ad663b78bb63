package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

var log = logrus.WithField("module", "history")

// Entry 一条吃单/撤单动作记录
type Entry struct {
	ID        int64
	Kind      string // fill / cancel
	OrderID   int64
	Success   bool
	Message   string
	CreatedAt time.Time
}

// Store 本地动作历史（SQLite）
// 每次吃单/撤单都落一条，成功失败都记，方便事后对账
type Store struct {
	db *sql.DB
}

// Open 打开历史库并建表
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("history: db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "创建历史库目录失败")
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "打开历史库失败")
	}
	db.SetMaxOpenConns(1) // SQLite：单连接更稳定
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS actions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	kind       TEXT    NOT NULL,
	order_id   INTEGER NOT NULL,
	success    INTEGER NOT NULL,
	message    TEXT    NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_actions_order ON actions(order_id);
`)
	return errors.Wrap(err, "历史库建表失败")
}

// Close 关闭历史库
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record 写入一条动作记录
func (s *Store) Record(ctx context.Context, kind string, orderID int64, ok bool, message string) error {
	if s == nil || s.db == nil {
		return nil
	}
	success := 0
	if ok {
		success = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO actions (kind, order_id, success, message, created_at) VALUES (?, ?, ?, ?, ?)`,
		kind, orderID, success, message, time.Now().Unix())
	if err != nil {
		return errors.Wrap(err, "写入动作历史失败")
	}
	log.Debugf("动作已记录: kind=%s order=%d ok=%v", kind, orderID, ok)
	return nil
}

// Recent 读取最近 n 条动作记录（新的在前）
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if n <= 0 {
		n = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, order_id, success, message, created_at FROM actions ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, errors.Wrap(err, "查询动作历史失败")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var success int
		var created int64
		if err := rows.Scan(&e.ID, &e.Kind, &e.OrderID, &success, &e.Message, &created); err != nil {
			return nil, errors.Wrap(err, "扫描动作历史失败")
		}
		e.Success = success == 1
		e.CreatedAt = time.Unix(created, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountByOrder 某订单的动作次数（诊断用）
func (s *Store) CountByOrder(ctx context.Context, orderID int64) (int, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM actions WHERE order_id = ?`, orderID).Scan(&n)
	return n, errors.Wrap(err, "统计动作历史失败")
}
