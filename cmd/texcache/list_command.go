package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/texcache/internal/domain"
	"github.com/John-Robertt/texcache/internal/index"
)

func newListCommand(cc *commandContext) *cobra.Command {
	var pathsOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "列出 cache 中符合分类过滤的 bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, logger, err := cc.ensure()
			if err != nil {
				return err
			}

			snap, err := index.Build(eff.CacheDir, eff.Category, index.Options{Strict: eff.StrictIndex, Logger: logger})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if pathsOnly {
				for _, r := range snap.Records {
					fmt.Fprintln(out, r.Path)
				}
				return nil
			}
			if len(snap.Records) == 0 {
				fmt.Fprintf(out, "cache %q 中没有分类 %q 的 bundle\n", eff.CacheDir, eff.Category)
				return nil
			}

			fmt.Fprintln(out, renderTable(
				[]string{"Name", "Res", "Categories", "Tags", "Size"},
				recordRows(snap.Records),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			))
			fmt.Fprintf(out, "共 %d 个（cache 内共 %d 个 bundle，跳过 %d 个无法解析的目录）\n",
				len(snap.Records), len(snap.Paths), len(snap.Skipped),
			)
			return nil
		},
	}
	cmd.Flags().BoolVar(&pathsOnly, "paths", false, "只输出 bundle 路径（每行一个）")
	return cmd
}

func recordRows(recs []domain.AssetRecord) [][]string {
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		size := "-"
		if fi, err := os.Stat(r.Path); err == nil {
			size = humanize.Bytes(uint64(fi.Size()))
		}
		rows = append(rows, []string{
			r.Name,
			r.Resolution,
			strings.Join(r.Categories, ","),
			truncate(strings.Join(r.Tags, ","), 60),
			size,
		})
	}
	return rows
}
