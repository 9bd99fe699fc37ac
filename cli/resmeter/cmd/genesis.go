package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/resmeter/resmeter/keyvaluedb"
	"github.com/resmeter/resmeter/keyvaluedb/boltdb"
	"github.com/resmeter/resmeter/state"
)

type genesisConfig struct {
	Base       *baseConfiguration
	DBFile     string
	ParamsFile string
}

// newGenesisCmd creates a new cobra command for initializing the ledger database.
func newGenesisCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := &genesisConfig{Base: baseConfig}
	var cmd = &cobra.Command{
		Use:   "genesis",
		Short: "Initializes the ledger database with the fee schedule, accounts and assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return genesisRunFun(cmd, config)
		},
	}

	cmd.Flags().StringVar(&config.DBFile, "db", "", fmt.Sprintf("path to the ledger database file (default: $RM_HOME/%s)", defaultDBFile))
	cmd.Flags().StringVar(&config.ParamsFile, "params", "", "path to the genesis parameters yaml file, fee schedule values missing from the file get the built in defaults")
	_ = cmd.MarkFlagRequired("params")
	return cmd
}

func genesisRunFun(cmd *cobra.Command, config *genesisConfig) error {
	params, err := loadGenesisParams(config.ParamsFile)
	if err != nil {
		return err
	}

	dbFile := config.Base.dbFilename(config.DBFile)
	if err := os.MkdirAll(filepath.Dir(dbFile), 0700); err != nil {
		return fmt.Errorf("creating ledger directory: %w", err)
	}
	db, err := boltdb.New(dbFile)
	if err != nil {
		return fmt.Errorf("opening ledger database %s: %w", dbFile, err)
	}
	defer db.Close()

	empty, err := keyvaluedb.IsEmpty(db)
	if err != nil {
		return fmt.Errorf("checking ledger database: %w", err)
	}
	if !empty {
		return fmt.Errorf("ledger database %s is already initialized", dbFile)
	}

	s, err := state.New(db, state.WithLogger(config.Base.observe.Logger()))
	if err != nil {
		return fmt.Errorf("creating state: %w", err)
	}
	if err := s.DynamicProperties().Init(params); err != nil {
		s.Revert()
		return err
	}
	if err := s.Commit(); err != nil {
		return fmt.Errorf("committing genesis state: %w", err)
	}

	config.Base.observe.Logger().Info(fmt.Sprintf("ledger %s initialized with %d accounts and %d assets", dbFile, len(params.Accounts), len(params.Assets)))
	fmt.Fprintf(cmd.OutOrStdout(), "Ledger initialized: %s\n", dbFile)
	return nil
}

func loadGenesisParams(file string) (*state.GenesisParams, error) {
	params := state.DefaultGenesisParams()
	f, err := os.Open(filepath.Clean(file))
	if err != nil {
		return nil, fmt.Errorf("opening genesis parameters file: %w", err)
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(params); err != nil {
		return nil, fmt.Errorf("decoding genesis parameters (%s): %w", file, err)
	}
	return params, nil
}
