package commands

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/vocdoni/zkvote-node/census"
	"github.com/vocdoni/zkvote-node/types"
	"github.com/vocdoni/zkvote-node/verifier"
)

func newProveCmd() *cobra.Command {
	var (
		keysDir    string
		censusPath string
		election   string
		out        string
	)
	cmd := &cobra.Command{
		Use:   "prove [voter address] [candidate id]",
		Short: "generate a vote with a membership proof for a census member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[0]) {
				return fmt.Errorf("invalid voter address %q", args[0])
			}
			candidate, err := types.ParseCandidateID(args[1])
			if err != nil {
				return err
			}
			cf, err := readCensusFile(censusPath)
			if err != nil {
				return err
			}
			member, err := cf.member(common.HexToAddress(args[0]))
			if err != nil {
				return err
			}
			keys, err := verifier.LoadKeys(keysDir)
			if err != nil {
				return err
			}
			merkleProof, err := cf.Tree.Proof(member.Index)
			if err != nil {
				return err
			}
			scope := census.Scope(election)
			proof, err := keys.Prove(member.secret(), scope, merkleProof)
			if err != nil {
				return err
			}
			vote := &types.Vote{
				Voter:       member.Address,
				CandidateID: candidate,
				Proof:       proof,
				Root:        cf.Root,
				Nullifier:   census.Nullifier(member.secret(), scope),
			}
			if out == "" {
				return printJSON(cmd.OutOrStdout(), vote)
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := printJSON(f, vote); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&keysDir, "keys", "k", "keys", "membership circuit keys directory")
	cmd.Flags().StringVarP(&censusPath, "census", "c", "census.json", "census file")
	cmd.Flags().StringVarP(&election, "election", "e", "", "election name (required)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	_ = cmd.MarkFlagRequired("election")
	return cmd
}
