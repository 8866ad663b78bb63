package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/betbot/dexdesk/internal/app"
	"github.com/betbot/dexdesk/internal/ui/tui"
	"github.com/betbot/dexdesk/pkg/config"
	"github.com/betbot/dexdesk/pkg/logger"
	"github.com/betbot/dexdesk/pkg/secretstore"
	"github.com/betbot/dexdesk/pkg/shutdown"
)

func main() {
	var (
		profile  = flag.String("config", "", "yaml 配置文件路径（可选）")
		keystore = flag.String("keystore", "", "加密钱包库路径（可选，代替环境变量私钥）")
		headless = flag.Bool("headless", false, "不启动终端界面，只跑同步和状态 API")
	)
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *profile != "" {
		cfg, err = config.LoadProfile(*profile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置加载失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.OutputFile,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "日志初始化失败: %v\n", err)
		os.Exit(1)
	}

	if *keystore != "" {
		if err := loadKeyFromStore(cfg, *keystore); err != nil {
			logger.Errorf("钱包库读取失败: %v", err)
			os.Exit(1)
		}
	}

	appCtx, err := app.New(cfg)
	if err != nil {
		logger.Errorf("应用装配失败: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr := shutdown.NewManager()
	mgr.OnShutdown(func(context.Context) {
		appCtx.Stop()
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("收到退出信号，开始关闭")
		cancel()
	}()

	if err := appCtx.Start(ctx); err != nil {
		logger.Errorf("应用启动失败: %v", err)
		appCtx.Stop()
		os.Exit(1)
	}

	if *headless {
		<-ctx.Done()
	} else {
		if err := tui.New(appCtx).Run(ctx); err != nil && ctx.Err() == nil {
			logger.Errorf("界面退出: %v", err)
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	mgr.Shutdown(stopCtx)
}

// loadKeyFromStore 从加密钱包库读取私钥
// 加密密钥来自 DEXDESK_KEYSTORE_KEY（hex 或 base64 的 32 字节）
func loadKeyFromStore(cfg *config.Config, path string) error {
	encKey, err := secretstore.ParseKey(os.Getenv("DEXDESK_KEYSTORE_KEY"))
	if err != nil {
		return err
	}
	store, err := secretstore.Open(secretstore.OpenOptions{
		Path:          path,
		EncryptionKey: encKey,
		ReadOnly:      true,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	key, found, err := store.GetString("wallet.private_key")
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("钱包库中没有 wallet.private_key")
	}
	cfg.Wallet.PrivateKey = key
	return nil
}
