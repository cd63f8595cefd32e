package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"pikpakhelper/internal/mailshop"
	"pikpakhelper/pkg/config"
)

// MailshopConfig 邮箱库存商配置
type MailshopConfig struct {
	BaseURL        string        `yaml:"base_url"`
	QueryTimeout   time.Duration `yaml:"query_timeout"`
	ExtractTimeout time.Duration `yaml:"extract_timeout"`
	// 库存缓存时间
	InventoryTTL time.Duration `yaml:"inventory_ttl"`
	// 同一卡号提取锁的过期时间，防止进程崩溃后锁不释放
	LockTTL time.Duration `yaml:"lock_ttl"`
}

// ActivationConfig 账号激活接口配置
type ActivationConfig struct {
	URL     string        `yaml:"url"`
	Referer string        `yaml:"referer"`
	Timeout time.Duration `yaml:"timeout"`
}

// IMAPConfig 验证码邮箱配置
type IMAPConfig struct {
	Server  string        `yaml:"server"`
	Sender  string        `yaml:"sender"`
	Timeout time.Duration `yaml:"timeout"`
}

// ProxyCheckConfig 代理测试配置
type ProxyCheckConfig struct {
	ProbeURL string        `yaml:"probe_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

// AdminConfig 管理口令（bcrypt hash），为空时不启用登录
type AdminConfig struct {
	PasswordHash string `yaml:"password_hash"`
}

type Config struct {
	DB         config.DBConfig     `yaml:"db"`
	Redis      config.RedisConfig  `yaml:"redis"`
	MQ         config.MQConfig     `yaml:"mq"`
	JWT        config.JWTConfig    `yaml:"jwt"`
	Server     config.ServerConfig `yaml:"server"`
	Admin      AdminConfig         `yaml:"admin"`
	Mailshop   MailshopConfig      `yaml:"mailshop"`
	Activation ActivationConfig    `yaml:"activation"`
	IMAP       IMAPConfig          `yaml:"imap"`
	ProxyCheck ProxyCheckConfig    `yaml:"proxy_check"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: config.ServerConfig{Port: ":5000"},
		JWT:    config.JWTConfig{TTL: 24 * time.Hour},
		Mailshop: MailshopConfig{
			BaseURL:        mailshop.DefaultBaseURL,
			QueryTimeout:   10 * time.Second,
			ExtractTimeout: 30 * time.Second,
			InventoryTTL:   5 * time.Second,
			LockTTL:        2 * time.Minute,
		},
		Activation: ActivationConfig{
			URL:     "https://inject.kiteyuan.info/infoInject",
			Referer: "https://inject.kiteyuan.info/",
			Timeout: 30 * time.Second,
		},
		IMAP: IMAPConfig{
			Server:  "imap.shanyouxiang.com:993",
			Sender:  "noreply@accounts.mypikpak.com",
			Timeout: 30 * time.Second,
		},
		ProxyCheck: ProxyCheckConfig{
			ProbeURL: "https://www.google.com",
			Timeout:  10 * time.Second,
		},
	}
}

// Load 读取 path 指向的 yaml（不存在时只用默认值），再用环境变量覆盖。
// 设置了 CONFIG_ENV 时改用 config/ 目录下的多环境配置。
func Load(path string) (*Config, error) {
	cfg := Default()

	if env := os.Getenv("CONFIG_ENV"); env != "" {
		if err := config.LoadInto(env, os.Getenv("CONFIG_DIR"), cfg); err != nil {
			return nil, err
		}
	} else if err := loadFile(path, cfg); err != nil {
		return nil, err
	}

	overrideFromEnv(cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func overrideFromEnv(cfg *Config) {
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideString(&cfg.Admin.PasswordHash, "ADMIN_PASSWORD_HASH")
	config.OverrideString(&cfg.Mailshop.BaseURL, "MAILSHOP_BASE_URL")
	config.OverrideString(&cfg.Activation.URL, "ACTIVATION_URL")
	config.OverrideString(&cfg.IMAP.Server, "IMAP_SERVER")
}

// AuthEnabled reports whether admin login is configured.
func (c *Config) AuthEnabled() bool {
	return c.JWT.Secret != "" && c.Admin.PasswordHash != ""
}
