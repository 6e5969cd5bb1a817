package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/texcache/internal/assets"
)

func newSampleCommand(cc *commandContext) *cobra.Command {
	var count int
	var waitAll bool

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "从 cache 中随机取样 bundle 路径（可边下载边取样）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--count 必须 >= 1，实际是 %d", count)
			}
			eff, logger, err := cc.ensure()
			if err != nil {
				return err
			}

			opts := assets.Options{
				Root:        eff.CacheDir,
				Resolution:  eff.Resolution,
				Category:    eff.Category,
				Download:    eff.Download,
				Debug:       eff.Debug,
				StrictIndex: eff.StrictIndex,
				Notifier: assets.NotifierFunc(func(msg string) {
					fmt.Fprintln(cmd.ErrOrStderr(), msg)
				}),
				Logger: logger,
			}
			if eff.Download {
				pop, err := newPopulator(eff, logger, nil)
				if err != nil {
					return err
				}
				opts.Populator = pop
			}

			ctx := cmd.Context()
			m, err := assets.New(ctx, opts)
			if err != nil {
				return err
			}
			defer m.Close()

			out := cmd.OutOrStdout()
			for i := 0; i < count; i++ {
				rec, err := m.Sample(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, rec.Path)
			}

			if waitAll && m.Downloading() {
				res, err := m.Wait(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "填充完成：fetched=%d failed=%d\n", len(res.Fetched), len(res.Failures))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 1, "取样次数")
	cmd.Flags().BoolVar(&cc.cli.Download, "download", false, "缺少资源时在后台下载")
	cmd.Flags().BoolVar(&waitAll, "wait", false, "取样后等待后台填充结束再退出")
	return cmd
}
