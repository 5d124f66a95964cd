package cmd

import (
	"github.com/spf13/cobra"
)

var (
	devicesUser       string
	devicesActiveOnly bool
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List a user's registered devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		devices, err := a.Sync.ListDevices(cmd.Context(), devicesUser, devicesActiveOnly)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), devices)
	},
}

func init() {
	devicesCmd.Flags().StringVarP(&devicesUser, "user", "u", "", "user id (JWT subject)")
	devicesCmd.Flags().BoolVar(&devicesActiveOnly, "active", false, "only active devices")
	_ = devicesCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(devicesCmd)
}
