package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var spendCmd = &cobra.Command{
	Use:   "spend",
	Short: "Show cumulative OpenRouter API spend for the configured key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := initOpenRouter().KeyInfo(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Key:   %s\n", info.Data.Label)
		fmt.Printf("Spent: $%.4f\n", info.Data.Usage)
		if info.Data.Limit != nil {
			fmt.Printf("Limit: $%.2f (%.1f%% used)\n",
				*info.Data.Limit, 100*info.Data.Usage / *info.Data.Limit)
		} else {
			fmt.Println("Limit: none")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(spendCmd)
}
