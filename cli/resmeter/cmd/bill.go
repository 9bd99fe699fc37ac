package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/resmeter/resmeter/trace"
	"github.com/resmeter/resmeter/types"
)

const (
	contractTransfer      = "transfer"
	contractTransferAsset = "transfer_asset"
	contractAccountCreate = "account_create"
	contractTrigger       = "trigger"
)

type (
	billConfig struct {
		Base       *baseConfiguration
		DBFile     string
		EnergyUsed int64
		Origin     string
		Percent    int64
		BlockTime  int64
	}

	// txFile is the yaml form of the transaction to bill.
	txFile struct {
		Timestamp  int64           `yaml:"timestamp"`
		Expiration int64           `yaml:"expiration"`
		FeeLimit   int64           `yaml:"fee_limit"`
		Data       string          `yaml:"data"` // hex
		Contracts  []*contractFile `yaml:"contracts"`
		Results    []*resultFile   `yaml:"results"`
	}

	contractFile struct {
		Type      string        `yaml:"type"`
		Owner     types.Address `yaml:"owner"`
		To        types.Address `yaml:"to"`
		Account   types.Address `yaml:"account"`
		Contract  types.Address `yaml:"contract"`
		Asset     string        `yaml:"asset"`
		Amount    int64         `yaml:"amount"`
		CallValue int64         `yaml:"call_value"`
		Data      string        `yaml:"data"` // hex
	}

	resultFile struct {
		Fee     int64  `yaml:"fee"`
		Status  uint8  `yaml:"status"`
		Message string `yaml:"message"`
	}

	billOutput struct {
		TxID    string         `json:"txId"`
		Fee     int64          `json:"fee,string"`
		Receipt *types.Receipt `json:"receipt"`
	}
)

// newBillCmd creates a new cobra command which bills the resources of a transaction.
func newBillCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := &billConfig{Base: baseConfig}
	var cmd = &cobra.Command{
		Use:   "bill <tx.yaml>",
		Short: "Bills the bandwidth and energy of a transaction and commits the result to the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return billRunFun(cmd, config, args[0])
		},
	}

	cmd.Flags().StringVar(&config.DBFile, "db", "", fmt.Sprintf("path to the ledger database file (default: $RM_HOME/%s)", defaultDBFile))
	cmd.Flags().Int64Var(&config.EnergyUsed, "energy-used", 0, "energy spent by the VM executing the transaction, energy is not billed when zero")
	cmd.Flags().StringVar(&config.Origin, "origin", "", "address of the contract developer sharing the energy bill (default: the caller)")
	cmd.Flags().Int64Var(&config.Percent, "percent", 0, "share of the energy usage covered by the origin, 0..100")
	cmd.Flags().Int64Var(&config.BlockTime, "block-time", 0, "timestamp (ms) of the block including the transaction, the head block is used when not set")
	return cmd
}

func billRunFun(cmd *cobra.Command, config *billConfig, txFilename string) error {
	tx, err := loadTransaction(txFilename)
	if err != nil {
		return err
	}

	l, err := openLedger(config.Base.dbFilename(config.DBFile), config.Base.observe)
	if err != nil {
		return err
	}
	defer l.Close()

	out, err := billTransaction(l, tx, config)
	if err != nil {
		l.state.Revert()
		return err
	}
	if err := l.state.Commit(); err != nil {
		return fmt.Errorf("committing billing result: %w", err)
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

func billTransaction(l *ledger, tx *types.Transaction, config *billConfig) (*billOutput, error) {
	caller, err := tx.Contracts()[0].OwnerAddress()
	if err != nil {
		return nil, fmt.Errorf("reading caller address: %w", err)
	}
	origin := caller
	if config.Origin != "" {
		if origin, err = types.ParseAddress(config.Origin); err != nil {
			return nil, fmt.Errorf("parsing origin address: %w", err)
		}
	}
	if config.BlockTime > 0 {
		if err := l.clock.AdvanceTo(config.BlockTime); err != nil {
			return nil, fmt.Errorf("advancing head block: %w", err)
		}
	}

	tr, err := trace.New(tx, l.state, l.clock, l.bp, l.ep, config.Base.observe.Logger())
	if err != nil {
		return nil, err
	}
	if err := payResources(tr, origin, caller, config); err == nil {
		tr.SetResult(types.StatusSuccess)
	}
	receipt, err := tr.Finalize()
	if err != nil {
		return nil, fmt.Errorf("billing transaction: %w", err)
	}

	txID, err := tx.ID()
	if err != nil {
		return nil, err
	}
	result := tr.Result()
	return &billOutput{TxID: hex.EncodeToString(txID), Fee: result.Fee, Receipt: receipt}, nil
}

// payResources runs the billing steps, the trace keeps the first error for Finalize.
func payResources(tr *trace.TransactionTrace, origin, caller types.Address, config *billConfig) error {
	if err := tr.PayBandwidth(); err != nil {
		return err
	}
	if config.EnergyUsed == 0 {
		return nil
	}
	if err := tr.SetEnergyUsageTotal(config.EnergyUsed); err != nil {
		return err
	}
	return tr.PayEnergy(origin, caller, config.Percent)
}

func loadTransaction(filename string) (*types.Transaction, error) {
	f, err := os.Open(filepath.Clean(filename))
	if err != nil {
		return nil, fmt.Errorf("opening transaction file: %w", err)
	}
	defer f.Close()

	tf := &txFile{}
	if err := yaml.NewDecoder(f).Decode(tf); err != nil {
		return nil, fmt.Errorf("decoding transaction (%s): %w", filename, err)
	}
	return tf.toTransaction()
}

func (tf *txFile) toTransaction() (*types.Transaction, error) {
	if len(tf.Contracts) == 0 {
		return nil, errors.New("transaction has no contracts")
	}
	data, err := hex.DecodeString(tf.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding transaction data: %w", err)
	}
	tx := &types.Transaction{
		RawData: &types.TransactionRaw{
			Timestamp:  tf.Timestamp,
			Expiration: tf.Expiration,
			FeeLimit:   tf.FeeLimit,
			Data:       data,
		},
	}
	for i, c := range tf.Contracts {
		contract, err := c.toContract()
		if err != nil {
			return nil, fmt.Errorf("contract[%d]: %w", i, err)
		}
		tx.RawData.Contracts = append(tx.RawData.Contracts, contract)
	}
	for _, r := range tf.Results {
		tx.Results = append(tx.Results, &types.ContractResult{
			Fee:     r.Fee,
			Status:  types.ContractStatus(r.Status),
			Message: []byte(r.Message),
		})
	}
	return tx, nil
}

func (c *contractFile) toContract() (*types.Contract, error) {
	switch c.Type {
	case contractTransfer:
		return types.NewContract(types.TransferContractType, &types.TransferContract{
			OwnerAddress: c.Owner,
			ToAddress:    c.To,
			Amount:       c.Amount,
		})
	case contractTransferAsset:
		return types.NewContract(types.TransferAssetContractType, &types.TransferAssetContract{
			AssetName:    c.Asset,
			OwnerAddress: c.Owner,
			ToAddress:    c.To,
			Amount:       c.Amount,
		})
	case contractAccountCreate:
		return types.NewContract(types.AccountCreateContractType, &types.AccountCreateContract{
			OwnerAddress:   c.Owner,
			AccountAddress: c.Account,
		})
	case contractTrigger:
		data, err := hex.DecodeString(c.Data)
		if err != nil {
			return nil, fmt.Errorf("decoding call data: %w", err)
		}
		return types.NewContract(types.TriggerSmartContractType, &types.TriggerSmartContract{
			OwnerAddress:    c.Owner,
			ContractAddress: c.Contract,
			CallValue:       c.CallValue,
			Data:            data,
		})
	default:
		return nil, fmt.Errorf("unknown contract type %q", c.Type)
	}
}
