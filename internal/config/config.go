package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	// ErrCodeNotFound 表示 --config 指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	// FileName 是默认配置文件名（在 cwd 下查找，可选）。
	FileName = "texcache.toml"

	DefaultCacheDir       = "texcache_cache"
	DefaultResolution     = "4k"
	DefaultCategory       = "all"
	DefaultConcurrency    = 1
	DefaultIndexURL       = "https://api.polyhaven.com/assets"
	DefaultPageURL        = "https://polyhaven.com/a"
	DefaultAssetType      = "textures"
	DefaultCatalogTimeout = 5 * time.Second
	DefaultInitialBackoff = 60 * time.Second
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "console"
)

// CLIArgs 是 CLI 暴露的覆盖项，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --download=false 必须能覆盖 download = true。
type CLIArgs struct {
	ConfigPath string

	CacheDir    string
	CacheDirSet bool

	Resolution    string
	ResolutionSet bool

	Category    string
	CategorySet bool

	Download    bool
	DownloadSet bool

	Concurrency    int
	ConcurrencySet bool

	Debug bool
}

// FileConfig 对应 texcache.toml 的解析结构。
type FileConfig struct {
	CacheDir    string `toml:"cache_dir"`
	Resolution  string `toml:"resolution"`
	Category    string `toml:"category"`
	Download    *bool  `toml:"download"`
	Debug       bool   `toml:"debug"`
	Concurrency int    `toml:"concurrency"`
	StrictIndex bool   `toml:"strict_index"`

	Catalog  CatalogConfig  `toml:"catalog"`
	Transfer TransferConfig `toml:"download_policy"`
	Log      LogConfig      `toml:"log"`
}

type CatalogConfig struct {
	IndexURL       string `toml:"index_url"`
	PageURL        string `toml:"page_url"`
	AssetType      string `toml:"asset_type"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type TransferConfig struct {
	InitialBackoffSeconds int    `toml:"initial_backoff_seconds"`
	MaxAttempts           int    `toml:"max_attempts"`
	ProxyURL              string `toml:"proxy_url"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	CacheDir    string
	Resolution  string
	Category    string
	Download    bool
	Debug       bool
	Concurrency int
	StrictIndex bool

	IndexURL       string
	PageURL        string
	AssetType      string
	CatalogTimeout time.Duration

	InitialBackoff time.Duration
	// MaxAttempts=0 表示状态码失败时无限重试。
	MaxAttempts int
	ProxyURL    string

	LogLevel  string
	LogFormat string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 读取配置文件并与 CLI 参数合并为最终配置。
//
// 发现规则：
// 1) CLI 提供 --config：必须存在
// 2) 否则尝试 <cwd>/texcache.toml（可选）
//
// 覆盖优先级：CLI > 配置文件 > 内置默认。
// 配置文件中的相对 cache_dir 以配置文件所在目录为基准；CLI 中的以 cwd 为基准。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	required := false
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		required = true
	}

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if required && !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}

	return merge(cwdAbs, filepath.Dir(cfgPath), cli, fc, cfgPath)
}

var resolutionRE = regexp.MustCompile(`^[0-9]+k$`)

func merge(cwdAbs, cfgDir string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(format string, args ...any) (EffectiveConfig, error) {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf(format, args...)}
	}

	// cache_dir：CLI > config > 默认（相对 cwd）
	cacheDir := filepath.Join(cwdAbs, DefaultCacheDir)
	if cli.CacheDirSet {
		if strings.TrimSpace(cli.CacheDir) == "" {
			return invalid("cache 目录不能为空")
		}
		cacheDir = absCleanFrom(cwdAbs, cli.CacheDir)
	} else if strings.TrimSpace(fc.CacheDir) != "" {
		cacheDir = absCleanFrom(cfgDir, fc.CacheDir)
	}

	resolution := pick(cli.ResolutionSet, cli.Resolution, fc.Resolution, DefaultResolution)
	resolution = strings.ToLower(strings.TrimSpace(resolution))
	if !resolutionRE.MatchString(resolution) {
		return invalid("resolution 必须形如 1k/2k/4k/8k，实际是 %q", resolution)
	}

	category := pick(cli.CategorySet, cli.Category, fc.Category, DefaultCategory)
	category = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(category)), "/", "-")
	if category == "" {
		category = DefaultCategory
	}

	download := false
	if cli.DownloadSet {
		download = cli.Download
	} else if fc.Download != nil {
		download = *fc.Download
	}

	concurrency := fc.Concurrency
	if cli.ConcurrencySet {
		concurrency = cli.Concurrency
	}
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	// 范围 [1, 32]；超出截断。
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > 32 {
		concurrency = 32
	}

	indexURL, err := httpURL("catalog.index_url", fc.Catalog.IndexURL, DefaultIndexURL)
	if err != nil {
		return invalid("%v", err)
	}
	pageURL, err := httpURL("catalog.page_url", fc.Catalog.PageURL, DefaultPageURL)
	if err != nil {
		return invalid("%v", err)
	}
	assetType := strings.TrimSpace(fc.Catalog.AssetType)
	if assetType == "" {
		assetType = DefaultAssetType
	}

	timeout := DefaultCatalogTimeout
	if fc.Catalog.TimeoutSeconds < 0 {
		return invalid("catalog.timeout_seconds 不能为负数")
	} else if fc.Catalog.TimeoutSeconds > 0 {
		timeout = time.Duration(fc.Catalog.TimeoutSeconds) * time.Second
	}

	backoff := DefaultInitialBackoff
	if fc.Transfer.InitialBackoffSeconds < 0 {
		return invalid("download_policy.initial_backoff_seconds 不能为负数")
	} else if fc.Transfer.InitialBackoffSeconds > 0 {
		backoff = time.Duration(fc.Transfer.InitialBackoffSeconds) * time.Second
	}
	if fc.Transfer.MaxAttempts < 0 {
		return invalid("download_policy.max_attempts 不能为负数")
	}

	proxyURL := strings.TrimSpace(fc.Transfer.ProxyURL)
	if proxyURL != "" {
		if _, err := url.Parse(proxyURL); err != nil {
			return invalid("download_policy.proxy_url 无效：%w", err)
		}
	}

	logLevel := strings.ToLower(strings.TrimSpace(fc.Log.Level))
	if logLevel == "" {
		logLevel = DefaultLogLevel
	}
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level 只能是 debug|info|warn|error，实际是 %q", logLevel)
	}
	logFormat := strings.ToLower(strings.TrimSpace(fc.Log.Format))
	if logFormat == "" {
		logFormat = DefaultLogFormat
	}
	if logFormat != "console" && logFormat != "json" {
		return invalid("log.format 只能是 console 或 json，实际是 %q", logFormat)
	}

	return EffectiveConfig{
		CacheDir:       cacheDir,
		Resolution:     resolution,
		Category:       category,
		Download:       download,
		Debug:          cli.Debug || fc.Debug,
		Concurrency:    concurrency,
		StrictIndex:    fc.StrictIndex,
		IndexURL:       indexURL,
		PageURL:        pageURL,
		AssetType:      assetType,
		CatalogTimeout: timeout,
		InitialBackoff: backoff,
		MaxAttempts:    fc.Transfer.MaxAttempts,
		ProxyURL:       proxyURL,
		LogLevel:       logLevel,
		LogFormat:      logFormat,
	}, nil
}

func pick(cliSet bool, cliVal, fileVal, def string) string {
	if cliSet {
		return cliVal
	}
	if strings.TrimSpace(fileVal) != "" {
		return fileVal
	}
	return def
}

func httpURL(field, v, def string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return def, nil
	}
	u, err := url.Parse(v)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%s 无效：%q", field, v)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%s 必须是 http/https：%q", field, v)
	}
	return strings.TrimRight(v, "/"), nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 TOML 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
