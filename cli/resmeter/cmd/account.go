package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/resmeter/resmeter/resource"
	"github.com/resmeter/resmeter/types"
	"github.com/resmeter/resmeter/util"
)

const (
	outputJSON = "json"
	outputText = "text"

	// decimals of the sun amounts when printed as TRX
	trxDecimals = 6
)

type accountConfig struct {
	Base   *baseConfiguration
	DBFile string
	Output string
}

// newAccountCmd creates a new cobra command which prints the resources of an account.
func newAccountCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := &accountConfig{Base: baseConfig}
	var cmd = &cobra.Command{
		Use:   "account <address>",
		Short: "Prints the bandwidth and energy resources of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return accountRunFun(cmd, config, args[0])
		},
	}

	cmd.Flags().StringVar(&config.DBFile, "db", "", fmt.Sprintf("path to the ledger database file (default: $RM_HOME/%s)", defaultDBFile))
	cmd.Flags().StringVarP(&config.Output, "output", "o", outputJSON, "output format, one of: json, text")
	return cmd
}

func accountRunFun(cmd *cobra.Command, config *accountConfig, address string) error {
	if config.Output != outputJSON && config.Output != outputText {
		return fmt.Errorf("unsupported output format %q", config.Output)
	}
	addr, err := types.ParseAddress(address)
	if err != nil {
		return fmt.Errorf("parsing address: %w", err)
	}

	l, err := openLedger(config.Base.dbFilename(config.DBFile), config.Base.observe)
	if err != nil {
		return err
	}
	defer l.Close()

	res, err := resource.QueryAccountResources(l.bp, l.ep, addr)
	if err != nil {
		return err
	}
	if config.Output == outputText {
		return printAccountResources(cmd.OutOrStdout(), res)
	}
	return writeJSON(cmd.OutOrStdout(), res)
}

func printAccountResources(w io.Writer, r *resource.AccountResources) error {
	_, err := fmt.Fprintf(w, `Address:     %s
Slot:        %d
Balance:     %s TRX
Free net:    %d/%d (left %d)
Net:         %d/%d (left %d)
Energy:      %d/%d (left %d)
Public net:  %d/%d
`,
		r.Address, r.Slot, util.AmountToString(r.Balance, trxDecimals),
		r.FreeNetUsed, r.FreeNetLimit, r.FreeNetLeft(),
		r.NetUsed, r.NetLimit, r.NetLeft(),
		r.EnergyUsed, r.EnergyLimit, r.EnergyLeft(),
		r.PublicNetUsed, r.PublicNetLimit)
	if err != nil {
		return err
	}
	for _, a := range r.FreeAssetNetUsage {
		if _, err := fmt.Fprintf(w, "Asset %s free net: %d/%d\n", a.Name, a.Used, a.Limit); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
