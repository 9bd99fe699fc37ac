package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	test "github.com/resmeter/resmeter/internal/testutils"
	testlogger "github.com/resmeter/resmeter/internal/testutils/logger"
	"github.com/resmeter/resmeter/logger"
	"github.com/resmeter/resmeter/state"
	"github.com/resmeter/resmeter/types"
)

const testGenesisTimestamp = 1_600_000_000_000

type testLedger struct {
	homeDir   string
	dbFile    string
	owner     types.Address
	receiver  types.Address
	blackhole types.Address
}

func newTestApp(t *testing.T) *resmeterApp {
	return New(func(*logger.LogConfiguration) (*slog.Logger, error) {
		return testlogger.New(t), nil
	})
}

// execute runs the command line "args" and returns what the command wrote to stdout.
func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	app := newTestApp(t)
	out := &bytes.Buffer{}
	app.baseCmd.SetOut(out)
	app.baseCmd.SetErr(out)
	app.baseCmd.SetArgs(args)
	err := app.addAndExecuteCommand(ctx)
	return out.String(), err
}

func writeGenesisParams(t *testing.T, dir string, params *state.GenesisParams) string {
	t.Helper()
	b, err := yaml.Marshal(params)
	require.NoError(t, err)
	file := filepath.Join(dir, "genesis.yaml")
	require.NoError(t, os.WriteFile(file, b, 0600))
	return file
}

// newTestLedger initializes the ledger with two accounts, the owner has 1 TRX.
func newTestLedger(t *testing.T) *testLedger {
	homeDir := t.TempDir()
	tl := &testLedger{
		homeDir:   homeDir,
		dbFile:    filepath.Join(homeDir, "ledger.db"),
		owner:     test.RandomAddress(),
		receiver:  test.RandomAddress(),
		blackhole: test.RandomAddress(),
	}
	params := state.DefaultGenesisParams()
	params.GenesisTimestamp = testGenesisTimestamp
	params.EnergyFee = 100
	params.BlackholeAddress = tl.blackhole
	params.Accounts = []*state.GenesisAccount{
		{Address: tl.owner, Balance: 1_000_000},
		{Address: tl.receiver, Balance: 0},
	}
	paramsFile := writeGenesisParams(t, homeDir, params)

	out, err := execute(t, context.Background(), "genesis", "--home", homeDir, "--db", tl.dbFile, "--params", paramsFile)
	require.NoError(t, err)
	require.Contains(t, out, "Ledger initialized")
	return tl
}

func (tl *testLedger) writeTx(t *testing.T, tf *txFile) string {
	t.Helper()
	b, err := yaml.Marshal(tf)
	require.NoError(t, err)
	file := filepath.Join(tl.homeDir, "tx.yaml")
	require.NoError(t, os.WriteFile(file, b, 0600))
	return file
}
