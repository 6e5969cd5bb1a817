package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/texcache/internal/populate"
)

func newPopulateCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "populate",
		Short: "下载分类下的全部 entry 到 cache（已存在的直接跳过）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, logger, err := cc.ensure()
			if err != nil {
				return err
			}

			progressW, interactive := pickProgressWriter()
			var obs populate.Observer
			if interactive {
				ui := newProgressUI(progressW)
				ui.printHeader(eff)
				obs = ui
			}

			pop, err := newPopulator(eff, logger, obs)
			if err != nil {
				return err
			}
			res, err := pop.Populate(cmd.Context(), eff.Category)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "完成：total=%d fetched=%d failed=%d skipped=%d (%s)\n",
				res.Total, len(res.Fetched), len(res.Failures), res.Skipped, formatElapsed(res.Duration),
			)
			for _, f := range res.Failures {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", f.Name, f.Err)
			}
			if err := cmd.Context().Err(); err != nil {
				return err
			}
			if len(res.Failures) > 0 {
				return fmt.Errorf("%d 个 entry 下载失败", len(res.Failures))
			}
			return nil
		},
	}
}
