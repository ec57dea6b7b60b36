package commands

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"github.com/vocdoni/zkvote-node/census"
	"github.com/vocdoni/zkvote-node/types"
)

// censusFile is a census together with the secrets of its members. It is
// meant for testing and development elections.
type censusFile struct {
	Root    types.CensusRoot `json:"root"`
	Tree    *census.Tree     `json:"commitments"`
	Members []*memberFile    `json:"members"`
}

type memberFile struct {
	Address common.Address `json:"address"`
	Secret  types.HexBytes `json:"secret"`
	Index   uint64         `json:"index"`
}

func (m *memberFile) secret() *big.Int {
	return new(big.Int).SetBytes(m.Secret)
}

func readCensusFile(path string) (*censusFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cf := &censusFile{Tree: census.NewTree()}
	if err := json.Unmarshal(data, cf); err != nil {
		return nil, fmt.Errorf("invalid census file %s: %w", path, err)
	}
	if root := cf.Tree.Root(); root != cf.Root {
		return nil, fmt.Errorf("census file %s root mismatch: stored %s, computed %s", path, cf.Root.Hex(), root.Hex())
	}
	return cf, nil
}

func writeCensusFile(path string, cf *censusFile) error {
	data, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// member returns the member with the given address.
func (cf *censusFile) member(address common.Address) (*memberFile, error) {
	for _, m := range cf.Members {
		if m.Address == address {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%s is not a census member", address.Hex())
}

func newCensusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "census",
		Short: "census subcommands",
	}
	cmd.AddCommand(newCensusCreateCmd(), newCensusRootCmd())
	return cmd
}

func newCensusCreateCmd() *cobra.Command {
	var (
		size int
		out  string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "create a census of new members with random secrets and addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if size < 1 || size > census.MaxSize {
				return fmt.Errorf("census size must be between 1 and %d", census.MaxSize)
			}
			cf := &censusFile{Tree: census.NewTree()}
			for range size {
				key, err := crypto.GenerateKey()
				if err != nil {
					return err
				}
				secret := census.NewSecret()
				idx, err := cf.Tree.Add(census.Commitment(secret))
				if err != nil {
					return err
				}
				cf.Members = append(cf.Members, &memberFile{
					Address: crypto.PubkeyToAddress(key.PublicKey),
					Secret:  secret.Bytes(),
					Index:   idx,
				})
			}
			cf.Root = cf.Tree.Root()
			if err := writeCensusFile(out, cf); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "census of %d members written to %s\nroot: %s\n", size, out, cf.Root.Hex())
			return nil
		},
	}
	cmd.Flags().IntVarP(&size, "size", "n", 10, "number of members")
	cmd.Flags().StringVarP(&out, "out", "o", "census.json", "output file")
	return cmd
}

func newCensusRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "root [census file]",
		Short: "print the root of a census file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cf, err := readCensusFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cf.Root.Hex())
			return nil
		},
	}
}
