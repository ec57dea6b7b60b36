package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/vocdoni/zkvote-node/types"
)

func newVoteCmd(opt *options) *cobra.Command {
	return &cobra.Command{
		Use:   "vote [vote file]",
		Short: "submit a vote generated with prove (use - to read from stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			vote := &types.Vote{}
			if err := json.Unmarshal(data, vote); err != nil {
				return fmt.Errorf("invalid vote: %w", err)
			}
			cli, err := opt.newClient()
			if err != nil {
				return err
			}
			if _, err := cli.CastVote(vote); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "vote accepted for candidate %d (nullifier %s)\n", vote.CandidateID, vote.Nullifier.Hex())
			return nil
		},
	}
}

func newCandidatesCmd(opt *options) *cobra.Command {
	return &cobra.Command{
		Use:   "candidates",
		Short: "list the candidates and their votes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := opt.newClient()
			if err != nil {
				return err
			}
			resp, err := cli.Candidates()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tAFFILIATION\tVOTES")
			for _, c := range resp.Candidates {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", c.ID, c.Name, c.Affiliation, c.Votes)
			}
			fmt.Fprintf(w, "\t\tTOTAL\t%d\n", resp.TotalVotes)
			return w.Flush()
		},
	}
}

func newRegisterCandidateCmd(opt *options) *cobra.Command {
	return &cobra.Command{
		Use:   "register-candidate [name] [affiliation]",
		Short: "register a candidate (admin)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			affiliation := ""
			if len(args) > 1 {
				affiliation = args[1]
			}
			cli, err := opt.newClient()
			if err != nil {
				return err
			}
			c, err := cli.RegisterCandidate(args[0], affiliation)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "candidate %q registered with id %d\n", c.Name, c.ID)
			return nil
		},
	}
}

func newRegisterVoterCmd(opt *options) *cobra.Command {
	var censusPath string
	cmd := &cobra.Command{
		Use:   "register-voter [address...]",
		Short: "register voters (admin), by address or every member of a census file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var addresses []common.Address
			for _, a := range args {
				if !common.IsHexAddress(a) {
					return fmt.Errorf("invalid address %q", a)
				}
				addresses = append(addresses, common.HexToAddress(a))
			}
			if censusPath != "" {
				cf, err := readCensusFile(censusPath)
				if err != nil {
					return err
				}
				for _, m := range cf.Members {
					addresses = append(addresses, m.Address)
				}
			}
			if len(addresses) == 0 {
				return fmt.Errorf("no voters to register")
			}
			cli, err := opt.newClient()
			if err != nil {
				return err
			}
			for _, a := range addresses {
				if _, err := cli.RegisterVoter(a); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "voter %s registered\n", a.Hex())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&censusPath, "census", "c", "", "register every member of this census file")
	return cmd
}

func newTransferCmd(opt *options) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer [from id] [to id] [count]",
		Short: "transfer votes between two candidates (admin)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := types.ParseCandidateID(args[0])
			if err != nil {
				return err
			}
			to, err := types.ParseCandidateID(args[1])
			if err != nil {
				return err
			}
			count, err := strconv.ParseUint(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid count %q: %w", args[2], err)
			}
			cli, err := opt.newClient()
			if err != nil {
				return err
			}
			t, err := cli.TransferVotes(from, to, count)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "transferred %d votes from %d to %d (transfer %s)\n", t.Count, t.From, t.To, t.ID)
			return nil
		},
	}
}

func newTransfersCmd(opt *options) *cobra.Command {
	return &cobra.Command{
		Use:   "transfers",
		Short: "list the vote transfers audit trail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := opt.newClient()
			if err != nil {
				return err
			}
			list, err := cli.Transfers()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), list)
		},
	}
}
