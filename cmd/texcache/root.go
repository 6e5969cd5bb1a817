package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/texcache/internal/config"
	"github.com/John-Robertt/texcache/internal/logging"
)

// commandContext 在子命令之间共享 CLI 参数，并惰性加载生效配置。
type commandContext struct {
	cli config.CLIArgs

	loaded bool
	eff    config.EffectiveConfig
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	cc := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "texcache",
		Short:         "贴图资源 bundle 缓存：填充、列出与随机取样",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			cc.cli.CacheDirSet = flags.Changed("cache-dir")
			cc.cli.ResolutionSet = flags.Changed("resolution")
			cc.cli.CategorySet = flags.Changed("category")
			cc.cli.ConcurrencySet = flags.Changed("concurrency")
			if flags.Lookup("download") != nil {
				cc.cli.DownloadSet = flags.Changed("download")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cc.cli.ConfigPath, "config", "c", "", "配置文件路径（默认读取当前目录下的 "+config.FileName+"，可选）")
	pf.StringVar(&cc.cli.CacheDir, "cache-dir", "", "cache 根目录（默认 "+config.DefaultCacheDir+"）")
	pf.StringVarP(&cc.cli.Resolution, "resolution", "r", "", "分辨率，例如 1k/2k/4k（默认 "+config.DefaultResolution+"）")
	pf.StringVar(&cc.cli.Category, "category", "", "分类过滤，all 表示不过滤")
	pf.IntVarP(&cc.cli.Concurrency, "concurrency", "j", 0, "并发下载数 [1,32]")
	pf.BoolVar(&cc.cli.Debug, "debug", false, "同步填充并输出 debug 日志")

	rootCmd.AddCommand(newPopulateCommand(cc))
	rootCmd.AddCommand(newListCommand(cc))
	rootCmd.AddCommand(newSampleCommand(cc))

	return rootCmd
}

// ensure 加载配置并构造 logger；重复调用返回同一份结果。
func (cc *commandContext) ensure() (config.EffectiveConfig, *slog.Logger, error) {
	if cc.loaded {
		return cc.eff, cc.logger, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return config.EffectiveConfig{}, nil, fmt.Errorf("读取当前目录失败：%w", err)
	}
	eff, err := config.LoadEffective(cwd, cc.cli)
	if err != nil {
		return config.EffectiveConfig{}, nil, err
	}

	level := eff.LogLevel
	if eff.Debug {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{Level: level, Format: eff.LogFormat, Output: os.Stderr})
	if err != nil {
		return config.EffectiveConfig{}, nil, err
	}

	cc.eff, cc.logger, cc.loaded = eff, logger, true
	return eff, logger, nil
}
