package app

import (
	"context"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/dexdesk/internal/events"
	"github.com/betbot/dexdesk/internal/exchange"
	"github.com/betbot/dexdesk/internal/history"
	"github.com/betbot/dexdesk/internal/pricing"
	"github.com/betbot/dexdesk/internal/settings"
	"github.com/betbot/dexdesk/internal/statusapi"
	"github.com/betbot/dexdesk/internal/ui/components"
	"github.com/betbot/dexdesk/internal/ui/table"
	"github.com/betbot/dexdesk/internal/ui/toast"
	"github.com/betbot/dexdesk/internal/wallet"
	"github.com/betbot/dexdesk/pkg/config"
)

var log = logrus.WithField("module", "app")

// Context 应用上下文
// 所有服务在这里装配一次、显式注入各组件，组件之间不共享任何
// 包级可变状态；测试时可以并行构造多份互不干扰的上下文
type Context struct {
	Config *config.Config

	Hub      *events.Hub
	Exchange *exchange.Service
	Pricing  *pricing.Service
	Wallet   *wallet.Wallet
	Toasts   *toast.Center

	Settings *settings.Store
	History  *history.Store

	TakerOrders *components.TakerOrdersView
	MakerOrders *components.MakerOrdersView

	status *statusapi.Server
	cancel context.CancelFunc
}

// New 按配置装配应用上下文
func New(cfg *config.Config) (*Context, error) {
	hub := events.NewHub()
	orderCache := exchange.NewOrderCache()
	feed := exchange.NewFeedClient(cfg.Exchange.WSURL, orderCache, hub, nil)
	rest := exchange.NewRESTClient(cfg.Exchange.RESTBaseURL, cfg.Exchange.FallbackRESTURLs, cfg.Exchange.RequestTimeout)
	svc := exchange.NewService(orderCache, feed, rest, hub)

	prices := pricing.NewService(cfg.Pricing.BaseURL, cfg.Pricing.CacheTTL, cfg.Pricing.RefreshInterval)

	w, err := buildWallet(cfg.Wallet)
	if err != nil {
		return nil, err
	}

	settingsStore, err := settings.Open(filepath.Join(cfg.DataDir, "settings"))
	if err != nil {
		return nil, err
	}
	historyStore, err := history.Open(filepath.Join(cfg.DataDir, "history.db"))
	if err != nil {
		_ = settingsStore.Close()
		return nil, err
	}

	toasts := toast.NewCenter(5)

	appCtx := &Context{
		Config:   cfg,
		Hub:      hub,
		Exchange: svc,
		Pricing:  prices,
		Wallet:   w,
		Toasts:   toasts,
		Settings: settingsStore,
		History:  historyStore,
	}
	appCtx.TakerOrders = components.NewTakerOrdersView(svc, prices, w, toasts, historyStore, cfg.UI.DefaultPageSize)
	appCtx.MakerOrders = components.NewMakerOrdersView(svc, prices, w, toasts, historyStore, cfg.UI.DefaultPageSize)

	if cfg.StatusAPI != "" {
		appCtx.status = statusapi.New(cfg.StatusAPI, appCtx.statusSummary, historyStore)
	}
	return appCtx, nil
}

// buildWallet 私钥优先，其次助记词，都没有则以未连接状态启动
func buildWallet(cfg config.WalletConfig) (*wallet.Wallet, error) {
	switch {
	case cfg.PrivateKey != "":
		w, err := wallet.NewFromPrivateKey(cfg.PrivateKey)
		return w, errors.Wrap(err, "加载钱包失败")
	case cfg.Mnemonic != "":
		w, err := wallet.NewFromMnemonic(cfg.Mnemonic, cfg.DerivationPath)
		return w, errors.Wrap(err, "加载钱包失败")
	default:
		log.Warn("⚠️ 未配置钱包，以未连接状态启动")
		return wallet.NewDisconnected(), nil
	}
}

// Start 启动全部后台服务并恢复持久化的界面设置
func (a *Context) Start(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	a.cancel = cancel

	if err := a.Exchange.Start(ctx); err != nil {
		cancel()
		return errors.Wrap(err, "启动交易所同步失败")
	}
	a.Pricing.StartAutoRefresh(ctx)

	a.restoreView("taker", a.TakerOrders.Renderer())
	a.restoreView("maker", a.MakerOrders.Renderer())

	if err := a.TakerOrders.Init(); err != nil {
		log.Errorf("可吃订单视图初始化失败: %v", err)
	}
	if err := a.MakerOrders.Init(); err != nil {
		log.Errorf("挂单视图初始化失败: %v", err)
	}

	if a.status != nil {
		if err := a.status.Start(); err != nil {
			log.Warnf("状态 API 启动失败: %v", err)
		}
	}
	log.Info("✅ 应用已启动")
	return nil
}

// statusSummary 采集运行状态（状态 API 用）
func (a *Context) statusSummary() statusapi.Summary {
	account, connected := a.Wallet.GetAccount()
	s := statusapi.Summary{
		Ready:        a.Exchange.Ready(),
		Connected:    connected,
		ActiveOrders: len(a.Exchange.Snapshot()),
		VisibleRows:  len(a.TakerOrders.Renderer().Rows()),
		Timers:       a.TakerOrders.Renderer().TimerCount() + a.MakerOrders.Renderer().TimerCount(),
	}
	if connected {
		s.Account = account.Hex()
	}
	return s
}

// restoreView 从设置库恢复一个视图的控件状态
// 在 SetupTable 之前调用，设置器此时还不会触发刷新
func (a *Context) restoreView(name string, r *table.Renderer) {
	v, ok, err := a.Settings.LoadView(name)
	if err != nil {
		log.Warnf("读取视图设置失败 (%s): %v", name, err)
		return
	}
	if !ok {
		return
	}
	if v.SellToken != "" {
		r.SetSellTokenFilter(v.SellToken)
	}
	if v.BuyToken != "" {
		r.SetBuyTokenFilter(v.BuyToken)
	}
	if v.ActiveOnly {
		r.SetActiveOnly(true)
	}
	if v.Sort != "" {
		r.SetSortMode(table.SortMode(v.Sort))
	}
	for _, size := range table.PageSizes {
		if v.PageSize == size {
			r.SetPageSize(size)
			break
		}
	}
}

// persistView 把一个视图的控件状态写回设置库
func (a *Context) persistView(name string, r *table.Renderer) {
	c := r.GetControls()
	err := a.Settings.SaveView(name, settings.ViewSettings{
		SellToken:  c.Filters.SellToken,
		BuyToken:   c.Filters.BuyToken,
		ActiveOnly: c.Filters.ActiveOnly,
		Sort:       string(c.Sort),
		PageSize:   c.PageSize,
	})
	if err != nil {
		log.Warnf("保存视图设置失败 (%s): %v", name, err)
	}
}

// Stop 停止全部服务并持久化界面设置（幂等）
func (a *Context) Stop() {
	a.persistView("taker", a.TakerOrders.Renderer())
	a.persistView("maker", a.MakerOrders.Renderer())

	a.TakerOrders.Cleanup()
	a.MakerOrders.Cleanup()

	if a.status != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := a.status.Stop(shutdownCtx); err != nil {
			log.Warnf("状态 API 停机失败: %v", err)
		}
		cancel()
	}

	a.Pricing.Stop()
	a.Exchange.Stop()
	if a.cancel != nil {
		a.cancel()
	}

	if err := a.History.Close(); err != nil {
		log.Warnf("关闭历史库失败: %v", err)
	}
	if err := a.Settings.Close(); err != nil {
		log.Warnf("关闭设置库失败: %v", err)
	}
	log.Info("应用已停止")
}
