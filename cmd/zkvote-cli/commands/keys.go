package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vocdoni/zkvote-node/verifier"
)

func newKeygenCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "compile the membership circuit and generate its groth16 keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.ErrOrStderr(), "compiling circuit and running setup, this takes a while...")
			keys, err := verifier.Setup()
			if err != nil {
				return err
			}
			if err := keys.Write(out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "keys written to %s (%d constraints)\n", out, keys.CCS.GetNbConstraints())
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "keys", "output directory")
	return cmd
}
