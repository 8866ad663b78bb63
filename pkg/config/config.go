package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Exchange  ExchangeConfig `yaml:"exchange"`
	Wallet    WalletConfig   `yaml:"wallet"`
	Pricing   PricingConfig  `yaml:"pricing"`
	UI        UIConfig       `yaml:"ui"`
	Log       LogConfig      `yaml:"log"`
	DataDir   string         `yaml:"data_dir"`   // badger/sqlite 数据目录
	StatusAPI string         `yaml:"status_api"` // 本地状态接口监听地址（空 = 关闭）
}

// ExchangeConfig 交易所接入配置
type ExchangeConfig struct {
	WSURL            string        `yaml:"ws_url"`             // 订单事件 WebSocket 地址
	RESTBaseURL      string        `yaml:"rest_base_url"`      // 主只读 REST 地址
	FallbackRESTURLs []string      `yaml:"fallback_rest_urls"` // 限流时轮换的备用只读地址
	RequestTimeout   time.Duration `yaml:"request_timeout"`
}

// WalletConfig 钱包配置
type WalletConfig struct {
	PrivateKey     string `yaml:"private_key"`     // 十六进制私钥（与助记词二选一）
	Mnemonic       string `yaml:"mnemonic"`        // BIP39 助记词
	DerivationPath string `yaml:"derivation_path"` // 派生路径，默认 m/44'/60'/0'/0/0
}

// PricingConfig 定价服务配置
type PricingConfig struct {
	BaseURL         string        `yaml:"base_url"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// UIConfig 界面配置
type UIConfig struct {
	DefaultPageSize int `yaml:"default_page_size"` // 10/25/50/100，-1 表示全部
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`
	OutputFile string `yaml:"output_file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load 加载配置：先读 .env（如果存在），再用环境变量覆盖默认值
func Load() (*Config, error) {
	// .env 不存在不是错误
	_ = godotenv.Load()

	cfg := defaultConfig()

	if v := os.Getenv("DEXDESK_WS_URL"); v != "" {
		cfg.Exchange.WSURL = v
	}
	if v := os.Getenv("DEXDESK_REST_URL"); v != "" {
		cfg.Exchange.RESTBaseURL = v
	}
	if v := os.Getenv("DEXDESK_FALLBACK_REST_URLS"); v != "" {
		cfg.Exchange.FallbackRESTURLs = splitAndTrim(v)
	}
	if v := os.Getenv("DEXDESK_PRIVATE_KEY"); v != "" {
		cfg.Wallet.PrivateKey = v
	}
	if v := os.Getenv("DEXDESK_MNEMONIC"); v != "" {
		cfg.Wallet.Mnemonic = v
	}
	if v := os.Getenv("DEXDESK_DERIVATION_PATH"); v != "" {
		cfg.Wallet.DerivationPath = v
	}
	if v := os.Getenv("DEXDESK_PRICING_URL"); v != "" {
		cfg.Pricing.BaseURL = v
	}
	if v := os.Getenv("DEXDESK_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("DEXDESK_LOG_FILE"); v != "" {
		cfg.Log.OutputFile = v
	}
	if v := os.Getenv("DEXDESK_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("DEXDESK_STATUS_API"); v != "" {
		cfg.StatusAPI = v
	}
	if v := os.Getenv("DEXDESK_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("DEXDESK_PAGE_SIZE 无效: %w", err)
		}
		cfg.UI.DefaultPageSize = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadProfile 从 yaml 配置文件加载（配置文件优先于环境变量）
func LoadProfile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Exchange.WSURL == "" {
		return fmt.Errorf("exchange.ws_url 不能为空")
	}
	if c.Exchange.RESTBaseURL == "" {
		return fmt.Errorf("exchange.rest_base_url 不能为空")
	}
	switch c.UI.DefaultPageSize {
	case 10, 25, 50, 100, -1:
	default:
		return fmt.Errorf("ui.default_page_size 必须是 10/25/50/100/-1，当前 %d", c.UI.DefaultPageSize)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Exchange: ExchangeConfig{
			WSURL:          "wss://api.dexdesk.example/ws",
			RESTBaseURL:    "https://api.dexdesk.example",
			RequestTimeout: 10 * time.Second,
		},
		Wallet: WalletConfig{
			DerivationPath: "m/44'/60'/0'/0/0",
		},
		Pricing: PricingConfig{
			BaseURL:         "https://prices.dexdesk.example",
			CacheTTL:        5 * time.Minute,
			RefreshInterval: 30 * time.Second,
		},
		UI: UIConfig{
			DefaultPageSize: 25,
		},
		Log: LogConfig{
			Level:      "info",
			OutputFile: "logs/dexdesk.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
		DataDir: "data",
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
