package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/relieftoken/drt-client/internal/apperr"
	"github.com/relieftoken/drt-client/internal/constants"
	"github.com/relieftoken/drt-client/internal/history"
	"github.com/relieftoken/drt-client/internal/units"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List every token transfer, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		reader, err := a.session.Reader(ctx)
		if err != nil {
			return userError(err)
		}
		records, err := a.history.Query(ctx, reader.Token, reader.Network.DeployBlock)
		if err != nil {
			return userError(err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), records)
		}

		if len(records) == 0 {
			cmd.Println("No transactions yet")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "BLOCK\tKIND\tFROM\tTO\tAMOUNT\tTX")
		for _, r := range records {
			from := shortAddress(r.From)
			if r.Kind == history.KindMint {
				from = "MINT"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
				r.BlockNumber, r.Kind, from, shortAddress(r.To), r.Amount, r.TxHash)
		}
		return tw.Flush()
	},
}

var rolesCmd = &cobra.Command{
	Use:   "roles <address>",
	Short: "Show the registry roles of an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		roles, err := a.session.Roles(ctx, args[0])
		if err != nil {
			return userError(err)
		}
		balance, err := a.session.Balance(ctx, args[0])
		if err != nil {
			return userError(err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"roles":   roles,
				"balance": units.FormatUnits(balance, constants.TokenDecimals),
			})
		}

		cmd.Printf("Account:      %s\n", roles.Account.Hex())
		cmd.Printf("Owner:        %t\n", roles.IsOwner)
		cmd.Printf("Beneficiary:  %t\n", roles.IsBeneficiary)
		cmd.Printf("Vendor:       %t\n", roles.IsVendor)
		if roles.IsVendor {
			cmd.Printf("Category:     %s\n", roles.Category)
		}
		cmd.Printf("Balance:      %s DRT\n", units.FormatUnitsTrim(balance, constants.TokenDecimals, 4))
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Show token metadata and total supply",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		reader, err := a.session.Reader(ctx)
		if err != nil {
			return userError(err)
		}
		meta, err := reader.Token.Metadata(ctx)
		if err != nil {
			return userError(err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), meta)
		}

		cmd.Printf("Network:      %s (chain %d)\n", reader.Network.NetworkName, reader.Network.ChainID)
		cmd.Printf("Token:        %s\n", meta.Address)
		if meta.Name != "" {
			cmd.Printf("Name:         %s\n", meta.Name)
		}
		cmd.Printf("Symbol:       %s\n", meta.Symbol)
		cmd.Printf("Decimals:     %d\n", meta.Decimals)
		cmd.Printf("Total supply: %s\n", meta.TotalSupply)
		return nil
	},
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortAddress(a string) string {
	if len(a) < 10 {
		return a
	}
	return a[:6] + "..." + a[len(a)-4:]
}

// userError keeps the CLI output to the single user-facing line.
func userError(err error) error {
	return errors.New(apperr.UserMessage(err))
}
