package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"cdpharness/internal/logger"
	"cdpharness/pkg/model"
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`

	Sqlite struct {
		Enabled bool   `yaml:"enabled"`
		Dsn     string `yaml:"dsn"`
		Prefix  string `yaml:"prefix"`
	} `yaml:"sqlite"`

	Log struct {
		Level  string   `yaml:"level"`
		Writer []string `yaml:"writer"`
		File   string   `yaml:"file"`
	} `yaml:"log"`

	Browser struct {
		DevToolsURL      string `yaml:"devtools_url"`
		TargetID         string `yaml:"target_id"`
		Concurrency      int    `yaml:"concurrency"`
		ProcessTimeoutMS int    `yaml:"process_timeout_ms"`
	} `yaml:"browser"`

	App struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"app"`

	Test struct {
		DefaultTimeoutMS int      `yaml:"default_timeout_ms"`
		PollIntervalMS   int      `yaml:"poll_interval_ms"`
		RouteTimeoutMS   int      `yaml:"route_timeout_ms"`
		BlockUnmatched   bool     `yaml:"block_unmatched"`
		Capabilities     []string `yaml:"capabilities"`
		Run              []string `yaml:"run"`
		Skip             []string `yaml:"skip"`
	} `yaml:"test"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	c := &Config{Version: "1.0.0"}
	c.Sqlite.Dsn = "e2e.sqlite3"
	c.Sqlite.Prefix = "cdpharness_"
	c.Log.Level = "info"
	c.Log.Writer = []string{"console"}
	c.Browser.DevToolsURL = "http://127.0.0.1:9222"
	c.Browser.Concurrency = 8
	c.Browser.ProcessTimeoutMS = 3000
	c.App.BaseURL = "http://localhost:3000"
	c.Test.DefaultTimeoutMS = 4000
	c.Test.PollIntervalMS = 50
	c.Test.RouteTimeoutMS = 5000
	return c
}

// Load 读取 YAML 配置文件，未出现的字段保留默认值；path 为空时直接返回默认配置
func Load(path string) (*Config, error) {
	c := NewConfig()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := c.decode(data); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return c, c.Validate()
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	switch {
	case c.App.BaseURL == "":
		return errors.New("app.base_url is required")
	case c.Browser.DevToolsURL == "":
		return errors.New("browser.devtools_url is required")
	case c.Test.DefaultTimeoutMS < 0 || c.Test.PollIntervalMS < 0 || c.Test.RouteTimeoutMS < 0:
		return errors.New("test timeouts must not be negative")
	case c.Sqlite.Enabled && c.Sqlite.Dsn == "":
		return errors.New("sqlite.dsn is required when sqlite is enabled")
	}
	return nil
}

// SessionConfig 生成单个测试会话的配置
func (c *Config) SessionConfig() model.SessionConfig {
	return model.SessionConfig{
		DevToolsURL:      c.Browser.DevToolsURL,
		BaseURL:          c.App.BaseURL,
		TargetID:         c.Browser.TargetID,
		BlockUnmatched:   c.Test.BlockUnmatched,
		Concurrency:      c.Browser.Concurrency,
		ProcessTimeoutMS: c.Browser.ProcessTimeoutMS,
		DefaultTimeoutMS: c.Test.DefaultTimeoutMS,
		PollIntervalMS:   c.Test.PollIntervalMS,
		RouteTimeoutMS:   c.Test.RouteTimeoutMS,
	}
}

// LoggerOptions 生成日志配置
func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{
		Level:   c.Log.Level,
		Writers: c.Log.Writer,
		File:    c.Log.File,
	}
}

// HasCapability 判断是否声明了被测应用的某项能力
func (c *Config) HasCapability(name string) bool {
	for _, v := range c.Test.Capabilities {
		if v == name {
			return true
		}
	}
	return false
}
