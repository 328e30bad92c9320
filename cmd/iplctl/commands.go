package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xzinc/IPL/pkg/common/structs"
	"github.com/xzinc/IPL/pkg/types"
)

func (c *cli) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show every backend, its health and which one is active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := c.client()
			if err != nil {
				return err
			}
			resp, err := client.Backends(cmd.Context())
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			printBackends(cmd.OutOrStdout(), resp)
			return nil
		},
	}
}

func (c *cli) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Health check every backend now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := c.client()
			if err != nil {
				return err
			}
			resp, err := client.CheckBackends(cmd.Context())
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			printHealth(cmd.OutOrStdout(), resp.Results)
			return nil
		},
	}
}

func (c *cli) switchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "switch <backend>",
		Short: "Make a backend active; automatic failback stays off until the next failover",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.client()
			if err != nil {
				return err
			}
			resp, err := client.Switch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "active backend: %s\n", resp.Active)
			return nil
		},
	}
}

// referenceArgs defaults to every reference type when none is named
func referenceArgs(args []string) ([]types.EntityType, error) {
	if len(args) == 0 {
		return types.ReferenceTypes, nil
	}
	out := make([]types.EntityType, 0, len(args))
	for _, a := range args {
		t, err := types.ParseEntityType(a)
		if err != nil {
			return nil, err
		}
		if !t.IsReference() {
			return nil, fmt.Errorf("%q is not a reference type", a)
		}
		out = append(out, t)
	}
	return out, nil
}

func (c *cli) refreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [team|player|venue]...",
		Short: "Refetch reference data from its dataset source",
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds, err := referenceArgs(args)
			if err != nil {
				return err
			}
			client, err := c.client()
			if err != nil {
				return err
			}

			results := make([]*structs.RefreshResponse, 0, len(kinds))
			for _, t := range kinds {
				resp, err := client.Refresh(cmd.Context(), t)
				if err != nil {
					return fmt.Errorf("refresh %s: %w", t, err)
				}
				results = append(results, resp)
			}
			if c.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), results)
			}
			printRefresh(cmd.OutOrStdout(), results)
			return nil
		},
	}
}

func (c *cli) invalidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate [team|player|venue]...",
		Short: "Mark cached reference data stale so the next read refetches it",
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds, err := referenceArgs(args)
			if err != nil {
				return err
			}
			client, err := c.client()
			if err != nil {
				return err
			}
			for _, t := range kinds {
				if err := client.Invalidate(cmd.Context(), t); err != nil {
					return fmt.Errorf("invalidate %s: %w", t, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "invalidated %s\n", t)
			}
			return nil
		},
	}
}

func (c *cli) pruneCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Prune stored interactions down to the retention limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := c.client()
			if err != nil {
				return err
			}
			resp, err := client.Prune(cmd.Context())
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			printPrune(cmd.OutOrStdout(), resp)
			return nil
		},
	}
}

func (c *cli) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the runtime configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := c.client()
			if err != nil {
				return err
			}
			view, err := client.Config(cmd.Context())
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), view)
			}
			printConfig(cmd.OutOrStdout(), view)
			return nil
		},
	}
	cmd.AddCommand(c.configSetCommand())
	return cmd
}

func (c *cli) configSetCommand() *cobra.Command {
	var (
		rate, ttl, retention  string
		learning, auto, back  bool
		highWater, pruneLevel float64
		maxPerUser            int
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change one or more runtime settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			patch := structs.ConfigPatch{}
			if flags.Changed("learning-rate") {
				patch.LearningRate = &rate
			}
			if flags.Changed("learning") {
				patch.LearningEnabled = &learning
			}
			if flags.Changed("high-water-mark") {
				patch.HighWaterMark = &highWater
			}
			if flags.Changed("prune-threshold") {
				patch.PruneThreshold = &pruneLevel
			}
			if flags.Changed("auto-failover") {
				patch.AutoFailover = &auto
			}
			if flags.Changed("failback") {
				patch.Failback = &back
			}
			if flags.Changed("freshness-ttl") {
				patch.FreshnessTTL = &ttl
			}
			if flags.Changed("max-per-user") {
				patch.MaxPerUser = &maxPerUser
			}
			if flags.Changed("retention") {
				patch.Retention = &retention
			}
			if patch == (structs.ConfigPatch{}) {
				return fmt.Errorf("nothing to change, pass at least one setting flag")
			}

			client, err := c.client()
			if err != nil {
				return err
			}
			view, err := client.PatchConfig(cmd.Context(), patch)
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), view)
			}
			printConfig(cmd.OutOrStdout(), view)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&rate, "learning-rate", "", "slow, normal or fast")
	f.BoolVar(&learning, "learning", true, "record interactions")
	f.Float64Var(&highWater, "high-water-mark", 0, "usage fraction that triggers failover")
	f.Float64Var(&pruneLevel, "prune-threshold", 0, "usage fraction that triggers an interaction prune")
	f.BoolVar(&auto, "auto-failover", true, "fail over automatically")
	f.BoolVar(&back, "failback", true, "return to the preferred backend once it recovers")
	f.StringVar(&ttl, "freshness-ttl", "", "age after which reference data is refetched, e.g. 24h")
	f.IntVar(&maxPerUser, "max-per-user", 0, "interactions kept per user, overriding the learning rate default")
	f.StringVar(&retention, "retention", "", "age after which interactions are pruned, e.g. 720h")
	return cmd
}
