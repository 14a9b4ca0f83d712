// Command glacierctl is the audit and repair tool for a running
// glacierd. Its route command derives operation placement locally from
// the published digest, so an auditor can verify the server's routing
// without trusting it.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"

	"github.com/dreamware/glacier/internal/access"
	"github.com/dreamware/glacier/internal/cluster"
	"github.com/dreamware/glacier/internal/ledger"
)

var knownCapabilities = []string{access.CapFreezer, access.CapOwner, access.CapPauser}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var serverURL, caller string

	root := &cobra.Command{
		Use:           "glacierctl",
		Short:         "Audit and administer a glacierd instance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&serverURL, "server",
		envOrDefault("GLACIER_SERVER", "http://localhost:8080"), "glacierd base URL")
	root.PersistentFlags().StringVar(&caller, "as",
		envOrDefault("GLACIER_CALLER", "root"), "caller account")

	client := func() *cluster.Client { return cluster.NewClient(serverURL, caller) }

	root.AddCommand(
		newKeyCmd(),
		routeCmd(client),
		opCmd(client),
		balanceCmd(client),
		shardsCmd(client),
		grantCmd(client),
		capabilityCmd(client),
		pauseCmd(client),
	)
	return root
}

func newKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "newkey",
		Short: "Mint a fresh operation key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println(cluster.MintKey())
			return nil
		},
	}
}

func routeCmd(client func() *cluster.Client) *cobra.Command {
	var local bool
	cmd := &cobra.Command{
		Use:   "route <key>",
		Short: "Show which shard owns an operation key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := ledger.ParseKey(args[0])
			if err != nil {
				return err
			}
			if local {
				// Offline derivation: ask only for the shard count.
				shards, err := client().Shards(cmd.Context())
				if err != nil {
					return err
				}
				idx, err := cluster.DeriveRoute(key, shards.Count)
				if err != nil {
					return err
				}
				cmd.Printf("shard %d of %d (derived locally)\n", idx, shards.Count)
				return nil
			}
			route, err := client().Route(cmd.Context(), key)
			if err != nil {
				return err
			}
			cmd.Printf("shard %d of %d\n", route.Shard, route.Of)
			return nil
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "derive placement client-side")
	return cmd
}

func opCmd(client func() *cluster.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "op <key>",
		Short: "Show the registry record for an operation key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := ledger.ParseKey(args[0])
			if err != nil {
				return err
			}
			op, err := client().Operation(cmd.Context(), key)
			if err != nil {
				return err
			}
			cmd.Printf("key:     %s\nstatus:  %s\naccount: %s\namount:  %d\n",
				op.Key, op.Status, op.Account, op.Amount)
			return nil
		},
	}
}

func balanceCmd(client func() *cluster.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account>",
		Short: "Show an account's frozen balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bal, err := client().BalanceOfFrozen(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cmd.Printf("%s: %d\n", bal.Account, bal.Frozen)
			return nil
		},
	}
}

func shardsCmd(client func() *cluster.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "shards",
		Short: "List the shard set with versions and record counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			shards, err := client().Shards(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("%d shards (max %d)\n", shards.Count, shards.Max)
			for _, s := range shards.Shards {
				cmd.Printf("  [%d] id=%d version=%s records=%d\n",
					s.Index, s.ID, s.Version, s.Records)
			}
			return nil
		},
	}
}

func grantCmd(client func() *cluster.Client) *cobra.Command {
	var revoke bool
	cmd := &cobra.Command{
		Use:   "grant <account> <capability>",
		Short: "Grant or revoke a facade capability (freezer, owner, pauser)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(knownCapabilities, args[1]) {
				return fmt.Errorf("unknown capability %q, want one of %v", args[1], knownCapabilities)
			}
			return client().Grant(cmd.Context(), args[0], args[1], !revoke)
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "revoke instead of grant")
	return cmd
}

func capabilityCmd(client func() *cluster.Client) *cobra.Command {
	var revoke bool
	cmd := &cobra.Command{
		Use:   "capability <account>",
		Short: "Fan a shard-admin grant or revoke out to every shard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "" {
				return errors.New("account must not be empty")
			}
			return client().ConfigureCapability(cmd.Context(), args[0], !revoke)
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "revoke instead of grant")
	return cmd
}

func pauseCmd(client func() *cluster.Client) *cobra.Command {
	var resume bool
	cmd := &cobra.Command{
		Use:   "pause",
		Short: "Set or clear the global pause flag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if resume {
				return client().Resume(cmd.Context())
			}
			return client().Pause(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", false, "clear the flag instead")
	return cmd
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
