package wallet

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "wallet")

// Event 钱包状态事件
type Event string

const (
	EventConnect         Event = "connect"
	EventDisconnect      Event = "disconnect"
	EventAccountsChanged Event = "accountsChanged"
)

// Listener 钱包状态监听器
type Listener func(ev Event, account common.Address)

// ListenerHandle 监听器句柄（用于移除）
type ListenerHandle uuid.UUID

// Wallet 本地钱包适配器
// 私钥/助记词只用于推导账户地址；签名与合约调用在交易所执行服务一侧，
// 本层只维护"当前账户"与连接状态，并向组件广播变化
type Wallet struct {
	mu        sync.RWMutex
	account   common.Address
	connected bool
	listeners map[ListenerHandle]Listener
}

// NewFromPrivateKey 从十六进制私钥创建钱包
func NewFromPrivateKey(hexKey string) (*Wallet, error) {
	key, err := crypto.HexToECDSA(trimHexPrefix(hexKey))
	if err != nil {
		return nil, errors.Wrap(err, "私钥无效")
	}
	return &Wallet{
		account:   crypto.PubkeyToAddress(key.PublicKey),
		connected: true,
		listeners: make(map[ListenerHandle]Listener),
	}, nil
}

// NewFromMnemonic 从 BIP39 助记词派生钱包
func NewFromMnemonic(mnemonic, derivationPath string) (*Wallet, error) {
	if derivationPath == "" {
		derivationPath = "m/44'/60'/0'/0/0"
	}
	w, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, errors.Wrap(err, "助记词无效")
	}
	path, err := hdwallet.ParseDerivationPath(derivationPath)
	if err != nil {
		return nil, errors.Wrap(err, "派生路径无效")
	}
	account, err := w.Derive(path, false)
	if err != nil {
		return nil, errors.Wrap(err, "派生账户失败")
	}
	return &Wallet{
		account:   account.Address,
		connected: true,
		listeners: make(map[ListenerHandle]Listener),
	}, nil
}

// NewDisconnected 创建未连接钱包（界面显示"请连接钱包"空态）
func NewDisconnected() *Wallet {
	return &Wallet{
		listeners: make(map[ListenerHandle]Listener),
	}
}

// GetAccount 返回当前账户；未连接时返回零地址和 false
func (w *Wallet) GetAccount() (common.Address, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.connected {
		return common.Address{}, false
	}
	return w.account, true
}

// Connect 用给定账户建立连接
func (w *Wallet) Connect(account common.Address) {
	w.mu.Lock()
	w.account = account
	w.connected = true
	w.mu.Unlock()
	log.Infof("钱包已连接: %s", account.Hex())
	w.emit(EventConnect, account)
}

// Disconnect 断开连接
func (w *Wallet) Disconnect() {
	w.mu.Lock()
	account := w.account
	w.connected = false
	w.mu.Unlock()
	log.Info("钱包已断开")
	w.emit(EventDisconnect, account)
}

// SwitchAccount 切换账户
func (w *Wallet) SwitchAccount(account common.Address) {
	w.mu.Lock()
	w.account = account
	w.connected = true
	w.mu.Unlock()
	log.Infof("账户已切换: %s", account.Hex())
	w.emit(EventAccountsChanged, account)
}

// AddListener 注册状态监听器
func (w *Wallet) AddListener(fn Listener) ListenerHandle {
	handle := ListenerHandle(uuid.New())
	w.mu.Lock()
	w.listeners[handle] = fn
	w.mu.Unlock()
	return handle
}

// RemoveListener 移除监听器（幂等）
func (w *Wallet) RemoveListener(handle ListenerHandle) {
	w.mu.Lock()
	delete(w.listeners, handle)
	w.mu.Unlock()
}

// emit 广播事件（在锁外调用监听器）
func (w *Wallet) emit(ev Event, account common.Address) {
	w.mu.RLock()
	fns := make([]Listener, 0, len(w.listeners))
	for _, fn := range w.listeners {
		fns = append(fns, fn)
	}
	w.mu.RUnlock()

	for _, fn := range fns {
		fn(ev, account)
	}
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s[2:]
	}
	return s
}
