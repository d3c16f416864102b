package cmd

import (
	"github.com/spf13/cobra"

	"github.com/3leaps/fastls/pkg/datamap"
	"github.com/3leaps/fastls/pkg/lister"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Fast list a bucket and export the results",
	Long: `Enumerate every object key in a bucket with concurrent partitioned
listing and export the results plus a key-space file reusable as the next
run's hints input.

Example:
  fastls list --bucket my-bucket --region us-west-2
  fastls list --bucket my-bucket -c 200 -f 'logs/2024/**'`,
	RunE: runList,
}

var (
	listBucket string
	listRegion string
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listBucket, "bucket", "", "source bucket to list (required)")
	listCmd.Flags().StringVar(&listRegion, "region", "", "source AWS region (SDK default chain if omitted)")

	_ = listCmd.MarkFlagRequired("bucket")
}

func runList(cmd *cobra.Command, _ []string) error {
	return executeRun(cmd.Context(), datamap.ModeList, []bucketSpec{
		{bucket: listBucket, region: listRegion, side: lister.SideLeft},
	})
}
