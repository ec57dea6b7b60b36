// Package commands implements the zkvote command line interface: key and
// census generation, proof generation and the node API operations.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"
	"github.com/vocdoni/zkvote-node/api/client"
	"github.com/vocdoni/zkvote-node/internal"
	"github.com/vocdoni/zkvote-node/log"
)

const defaultHost = "http://127.0.0.1:9090"

type options struct {
	host     string
	token    string
	logLevel string
}

// NewRootCmd returns the zkvote-cli command tree.
func NewRootCmd() *cobra.Command {
	opt := &options{}
	root := &cobra.Command{
		Use:          "zkvote-cli",
		Short:        "zkvote command line interface.",
		Version:      internal.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(log.LogLevels, opt.logLevel) {
				return fmt.Errorf("invalid log level %s, available levels: %v", opt.logLevel, log.LogLevels)
			}
			log.Init(opt.logLevel, "stderr", nil)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opt.host, "host", defaultHost, "node API URL")
	root.PersistentFlags().StringVar(&opt.token, "token", "", "admin bearer token for the administrative commands")
	root.PersistentFlags().StringVar(&opt.logLevel, "log.level", log.LogLevelError, "log level (debug, info, warn, error)")

	root.AddCommand(
		newKeygenCmd(),
		newCensusCmd(),
		newProveCmd(),
		newVoteCmd(opt),
		newCandidatesCmd(opt),
		newRegisterCandidateCmd(opt),
		newRegisterVoterCmd(opt),
		newTransferCmd(opt),
		newTransfersCmd(opt),
	)
	return root
}

// newClient connects to the node API.
func (o *options) newClient() (*client.HTTPclient, error) {
	cli, err := client.New(o.host)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to %s: %w", o.host, err)
	}
	cli.SetAdminToken(o.token)
	return cli, nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
