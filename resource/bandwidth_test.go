package resource

import (
	"testing"

	"github.com/stretchr/testify/require"

	test "github.com/resmeter/resmeter/internal/testutils"
	"github.com/resmeter/resmeter/observability"
	"github.com/resmeter/resmeter/state"
	"github.com/resmeter/resmeter/types"
)

type netBillRecorder struct {
	calls    int
	netUsage int64
	netFee   int64
}

func (r *netBillRecorder) SetNetBill(netUsage, netFee int64) {
	r.calls++
	r.netUsage = netUsage
	r.netFee = netFee
}

func newTx(contracts ...*types.Contract) *types.Transaction {
	return &types.Transaction{
		RawData: &types.TransactionRaw{
			Contracts:  contracts,
			Timestamp:  headTs,
			Expiration: headTs + 60_000,
		},
		Signatures: [][]byte{make([]byte, 65)},
	}
}

func transfer(t *testing.T, from, to types.Address, amount int64) *types.Contract {
	t.Helper()
	c, err := types.NewContract(types.TransferContractType, &types.TransferContract{OwnerAddress: from, ToAddress: to, Amount: amount})
	require.NoError(t, err)
	return c
}

func transferAsset(t *testing.T, name string, from, to types.Address, amount int64) *types.Contract {
	t.Helper()
	c, err := types.NewContract(types.TransferAssetContractType, &types.TransferAssetContract{AssetName: name, OwnerAddress: from, ToAddress: to, Amount: amount})
	require.NoError(t, err)
	return c
}

func createAccount(t *testing.T, from, addr types.Address) *types.Contract {
	t.Helper()
	c, err := types.NewContract(types.AccountCreateContractType, &types.AccountCreateContract{OwnerAddress: from, AccountAddress: addr})
	require.NoError(t, err)
	return c
}

func txSize(t *testing.T, tx *types.Transaction) int64 {
	t.Helper()
	size, err := tx.SerializedSize()
	require.NoError(t, err)
	return size
}

func TestBandwidth_OwnFrozenNet(t *testing.T) {
	sender, receiver := test.RandomAddress(), test.RandomAddress()
	env := newTestEnv(t, []*state.GenesisAccount{
		{Address: sender, Balance: 5_000_000, FrozenBalance: 10_000_000},
		{Address: receiver},
	})
	tx := newTx(transfer(t, sender, receiver, 1_000_000))
	bytesSize := txSize(t, tx)

	result := &types.TransactionResult{}
	bill := &netBillRecorder{}
	require.NoError(t, env.bp.Consume(tx, result, bill))

	acc := env.account(t, sender)
	require.Equal(t, bytesSize, acc.NetUsage)
	require.EqualValues(t, startSlot, acc.LatestConsumeTime)
	require.EqualValues(t, headTs, acc.LatestOperationTime)
	require.EqualValues(t, 5_000_000, acc.Balance)
	require.Zero(t, acc.FreeNetUsage)
	require.Zero(t, result.Fee)
	require.Equal(t, &netBillRecorder{calls: 1, netUsage: bytesSize}, bill)
	require.EqualValues(t, 1, env.observe.Counter(t, "bandwidth.tier", observability.Tier(TierOwnNet), observability.ContractType("TransferContract")))
	require.Zero(t, env.property(t, state.PublicNetUsage))
}

func TestBandwidth_CreateAccount(t *testing.T) {
	sender := test.RandomAddress()

	t.Run("fee from balance", func(t *testing.T) {
		env := newTestEnv(t, []*state.GenesisAccount{{Address: sender, Balance: 10_000_000}})
		tx := newTx(transfer(t, sender, test.RandomAddress(), 1_000_000))
		result := &types.TransactionResult{}
		bill := &netBillRecorder{}
		require.NoError(t, env.bp.Consume(tx, result, bill))

		acc := env.account(t, sender)
		require.EqualValues(t, 9_900_000, acc.Balance)
		require.Zero(t, acc.NetUsage)
		require.Zero(t, acc.FreeNetUsage)
		require.EqualValues(t, 100_000, env.account(t, env.blackhole).Balance)
		require.EqualValues(t, 10_000_000, env.balances(t, sender, env.blackhole))
		require.EqualValues(t, 100_000, result.Fee)
		require.EqualValues(t, 100_000, env.property(t, state.TotalCreateAccountCost))
		require.Zero(t, env.property(t, state.TotalTransactionCost))
		require.Equal(t, &netBillRecorder{calls: 2, netFee: 100_000}, bill)
		require.EqualValues(t, 1, env.observe.Counter(t, "bandwidth.tier", observability.Tier(TierCreateAccountFee)))
		require.EqualValues(t, 100_000, env.observe.Counter(t, "fee.burned"))
	})

	t.Run("net bill carries fee of all contracts", func(t *testing.T) {
		env := newTestEnv(t, []*state.GenesisAccount{{Address: sender, Balance: 10_000_000}})
		tx := newTx(transfer(t, sender, test.RandomAddress(), 1), transfer(t, sender, test.RandomAddress(), 2))
		result := &types.TransactionResult{}
		bill := &netBillRecorder{}
		require.NoError(t, env.bp.Consume(tx, result, bill))
		require.EqualValues(t, 200_000, result.Fee)
		require.Equal(t, &netBillRecorder{calls: 4, netFee: 200_000}, bill)
	})

	t.Run("frozen bandwidth", func(t *testing.T) {
		env := newTestEnv(t,
			[]*state.GenesisAccount{{Address: sender, Balance: 10_000_000, FrozenBalance: 1_000_000}},
			func(p *state.GenesisParams) { p.CreateNewAccountBandwidthRate = 3 },
		)
		tx := newTx(createAccount(t, sender, test.RandomAddress()))
		bytesSize := txSize(t, tx)
		result := &types.TransactionResult{}
		bill := &netBillRecorder{}
		require.NoError(t, env.bp.Consume(tx, result, bill))
		require.Equal(t, &netBillRecorder{calls: 2}, bill)

		acc := env.account(t, sender)
		require.Equal(t, 3*bytesSize, acc.NetUsage)
		require.EqualValues(t, 10_000_000, acc.Balance)
		require.Zero(t, result.Fee)
		require.Zero(t, env.property(t, state.TotalCreateAccountCost))
		require.EqualValues(t, 1, env.observe.Counter(t, "bandwidth.tier", observability.Tier(TierCreateAccountNet), observability.ContractType("AccountCreateContract")))
	})

	t.Run("insufficient", func(t *testing.T) {
		env := newTestEnv(t, []*state.GenesisAccount{{Address: sender, Balance: 99_999}})
		tx := newTx(transfer(t, sender, test.RandomAddress(), 1))
		err := env.bp.Consume(tx, &types.TransactionResult{}, nil)
		require.ErrorIs(t, err, ErrAccountResourceInsufficient)
		require.True(t, env.state.IsCommitted())
		require.EqualValues(t, 1, env.observe.Counter(t, "bandwidth.tier", observability.Tier(TierFail)))
	})

	t.Run("free bandwidth is not used for account creation", func(t *testing.T) {
		env := newTestEnv(t, []*state.GenesisAccount{{Address: sender}})
		tx := newTx(transfer(t, sender, test.RandomAddress(), 1))
		require.ErrorIs(t, env.bp.Consume(tx, &types.TransactionResult{}, nil), ErrAccountResourceInsufficient)
		require.Zero(t, env.account(t, sender).FreeNetUsage)
	})
}

func TestBandwidth_IssuerNet(t *testing.T) {
	sender, receiver, issuer := test.RandomAddress(), test.RandomAddress(), test.RandomAddress()
	accounts := func() []*state.GenesisAccount {
		return []*state.GenesisAccount{
			{Address: sender, Balance: 1_000_000, Assets: map[string]int64{"tok": 100}},
			{Address: receiver},
			{Address: issuer, FrozenBalance: 10_000_000},
		}
	}
	withAsset := func(freeLimit int64) func(p *state.GenesisParams) {
		return func(p *state.GenesisParams) {
			p.Assets = []*state.GenesisAsset{{Name: "tok", Owner: issuer, FreeAssetNetLimit: freeLimit, PublicFreeAssetNetLimit: 100_000}}
		}
	}

	t.Run("issuer pays", func(t *testing.T) {
		env := newTestEnv(t, accounts(), withAsset(10_000))
		tx := newTx(transferAsset(t, "tok", sender, receiver, 10))
		bytesSize := txSize(t, tx)
		result := &types.TransactionResult{}
		require.NoError(t, env.bp.Consume(tx, result, nil))

		acc := env.account(t, sender)
		require.Equal(t, bytesSize, acc.FreeAssetNetUsageOf("tok"))
		require.EqualValues(t, startSlot, acc.LatestAssetOperationTimeOf("tok"))
		require.EqualValues(t, headTs, acc.LatestOperationTime)
		require.EqualValues(t, 1_000_000, acc.Balance)
		require.Zero(t, acc.NetUsage)
		require.Zero(t, acc.FreeNetUsage)

		require.Equal(t, bytesSize, env.account(t, issuer).NetUsage)
		asset, err := env.state.GetAsset("tok")
		require.NoError(t, err)
		require.Equal(t, bytesSize, asset.PublicFreeAssetNetUsage)
		require.EqualValues(t, startSlot, asset.PublicLatestFreeNetTime)
		require.Zero(t, result.Fee)
		require.EqualValues(t, 1, env.observe.Counter(t, "bandwidth.tier", observability.Tier(TierIssuerNet)))
	})

	t.Run("sender is issuer", func(t *testing.T) {
		env := newTestEnv(t, accounts(), withAsset(10_000))
		tx := newTx(transferAsset(t, "tok", issuer, receiver, 10))
		bytesSize := txSize(t, tx)
		require.NoError(t, env.bp.Consume(tx, &types.TransactionResult{}, nil))

		require.Equal(t, bytesSize, env.account(t, issuer).NetUsage)
		asset, err := env.state.GetAsset("tok")
		require.NoError(t, err)
		require.Zero(t, asset.PublicFreeAssetNetUsage)
		require.EqualValues(t, 1, env.observe.Counter(t, "bandwidth.tier", observability.Tier(TierOwnNet)))
	})

	t.Run("per holder budget exhausted", func(t *testing.T) {
		env := newTestEnv(t, accounts(), withAsset(1))
		tx := newTx(transferAsset(t, "tok", sender, receiver, 10))
		bytesSize := txSize(t, tx)
		require.NoError(t, env.bp.Consume(tx, &types.TransactionResult{}, nil))

		// issuer tier and sender's frozen bandwidth failed, free bandwidth was used
		acc := env.account(t, sender)
		require.Equal(t, bytesSize, acc.FreeNetUsage)
		require.Zero(t, acc.FreeAssetNetUsageOf("tok"))
		require.Zero(t, acc.NetUsage)
		require.Zero(t, env.account(t, issuer).NetUsage)
		asset, err := env.state.GetAsset("tok")
		require.NoError(t, err)
		require.Zero(t, asset.PublicFreeAssetNetUsage)
		require.EqualValues(t, 1, env.observe.Counter(t, "bandwidth.tier", observability.Tier(TierFreeNet)))
		require.Zero(t, env.observe.Counter(t, "bandwidth.tier", observability.Tier(TierIssuerNet)))
	})

	t.Run("asset not exists", func(t *testing.T) {
		env := newTestEnv(t, accounts())
		tx := newTx(transferAsset(t, "tok", sender, receiver, 10))
		err := env.bp.Consume(tx, &types.TransactionResult{}, nil)
		require.ErrorIs(t, err, ErrContractValidate)
		require.ErrorContains(t, err, `asset "tok" not exists`)
		require.True(t, env.state.IsCommitted())
	})

	t.Run("issuer not exists", func(t *testing.T) {
		env := newTestEnv(t, accounts(), withAsset(10_000))
		require.NoError(t, env.state.Apply(state.SetAsset(&types.AssetIssue{Name: "ghost", OwnerAddress: test.RandomAddress(), FreeAssetNetLimit: 10_000, PublicFreeAssetNetLimit: 10_000})))
		require.NoError(t, env.state.Commit())

		tx := newTx(transferAsset(t, "ghost", sender, receiver, 10))
		err := env.bp.Consume(tx, &types.TransactionResult{}, nil)
		require.ErrorIs(t, err, ErrContractValidate)
		require.ErrorContains(t, err, "issuer account")
	})
}

func TestBandwidth_FreeNet(t *testing.T) {
	sender, receiver := test.RandomAddress(), test.RandomAddress()
	env := newTestEnv(t, []*state.GenesisAccount{{Address: sender}, {Address: receiver}})
	tx := newTx(transfer(t, sender, receiver, 0))
	bytesSize := txSize(t, tx)

	require.NoError(t, env.bp.Consume(tx, &types.TransactionResult{}, nil))
	acc := env.account(t, sender)
	require.Equal(t, bytesSize, acc.FreeNetUsage)
	require.EqualValues(t, startSlot, acc.LatestConsumeFreeTime)
	require.Zero(t, acc.NetUsage)
	require.Equal(t, bytesSize, env.property(t, state.PublicNetUsage))
	require.EqualValues(t, startSlot, env.property(t, state.PublicNetTime))
}

func TestBandwidth_PublicNetExhausted(t *testing.T) {
	sender, receiver := test.RandomAddress(), test.RandomAddress()
	env := newTestEnv(t,
		[]*state.GenesisAccount{{Address: sender, Balance: 1_000_000}, {Address: receiver}},
		func(p *state.GenesisParams) { p.PublicNetLimit = 10 },
	)
	tx := newTx(transfer(t, sender, receiver, 0))
	bytesSize := txSize(t, tx)

	result := &types.TransactionResult{}
	require.NoError(t, env.bp.Consume(tx, result, nil))
	acc := env.account(t, sender)
	require.Zero(t, acc.FreeNetUsage)
	require.Equal(t, 1_000_000-10*bytesSize, acc.Balance)
	require.Zero(t, env.property(t, state.PublicNetUsage))
	require.Equal(t, 10*bytesSize, result.Fee)
}

func TestBandwidth_TransactionFee(t *testing.T) {
	sender, receiver := test.RandomAddress(), test.RandomAddress()
	env := newTestEnv(t,
		[]*state.GenesisAccount{{Address: sender, Balance: 1_000_000}, {Address: receiver}},
		func(p *state.GenesisParams) { p.FreeNetLimit = 0 },
	)
	tx := newTx(transfer(t, sender, receiver, 0))
	fee := 10 * txSize(t, tx)

	result := &types.TransactionResult{}
	bill := &netBillRecorder{}
	require.NoError(t, env.bp.Consume(tx, result, bill))
	require.Equal(t, 1_000_000-fee, env.account(t, sender).Balance)
	require.Equal(t, fee, env.account(t, env.blackhole).Balance)
	require.EqualValues(t, 1_000_000, env.balances(t, sender, receiver, env.blackhole))
	require.Equal(t, fee, result.Fee)
	require.Equal(t, fee, env.property(t, state.TotalTransactionCost))
	require.Equal(t, &netBillRecorder{calls: 2, netFee: fee}, bill)
	require.Equal(t, fee, env.observe.Counter(t, "fee.burned"))
	require.EqualValues(t, 1, env.observe.Counter(t, "bandwidth.tier", observability.Tier(TierFee)))
}

func TestBandwidth_Insufficient(t *testing.T) {
	sender, receiver := test.RandomAddress(), test.RandomAddress()
	env := newTestEnv(t,
		[]*state.GenesisAccount{{Address: sender, Balance: 1}, {Address: receiver}},
		func(p *state.GenesisParams) { p.FreeNetLimit = 0 },
	)
	before := env.account(t, sender)

	err := env.bp.Consume(newTx(transfer(t, sender, receiver, 0)), &types.TransactionResult{}, nil)
	require.ErrorIs(t, err, ErrAccountResourceInsufficient)
	require.Equal(t, before, env.account(t, sender))
	require.True(t, env.state.IsCommitted())
	require.EqualValues(t, 1, env.observe.Counter(t, "bandwidth.tier", observability.Tier(TierFail)))
}

func TestBandwidth_OwnerNotExists(t *testing.T) {
	receiver := test.RandomAddress()
	env := newTestEnv(t, []*state.GenesisAccount{{Address: receiver}})
	err := env.bp.Consume(newTx(transfer(t, test.RandomAddress(), receiver, 0)), &types.TransactionResult{}, nil)
	require.ErrorIs(t, err, ErrContractValidate)
	require.ErrorContains(t, err, "not exists")
}

func TestBandwidth_TooBigResult(t *testing.T) {
	sender, receiver := test.RandomAddress(), test.RandomAddress()
	env := newTestEnv(t, []*state.GenesisAccount{{Address: sender, FrozenBalance: 10_000_000}, {Address: receiver}})
	tx := newTx(transfer(t, sender, receiver, 0))
	tx.Results = []*types.ContractResult{{Status: types.StatusSuccess, Message: make([]byte, MaxResultSizeInTx)}}

	bill := &netBillRecorder{}
	err := env.bp.Consume(tx, &types.TransactionResult{}, bill)
	require.ErrorIs(t, err, ErrTooBigTransactionResult)
	require.Zero(t, bill.calls)
	require.True(t, env.state.IsCommitted())
	require.Zero(t, env.account(t, sender).NetUsage)
}

func TestBandwidth_SupportVM(t *testing.T) {
	sender, receiver := test.RandomAddress(), test.RandomAddress()
	env := newTestEnv(t,
		[]*state.GenesisAccount{{Address: sender, FrozenBalance: 10_000_000}, {Address: receiver}},
		func(p *state.GenesisParams) { p.AllowVM = true },
	)
	tx := newTx(transfer(t, sender, receiver, 1), transfer(t, sender, receiver, 2))
	tx.Results = []*types.ContractResult{{Status: types.StatusSuccess}, {Status: types.StatusSuccess}}
	size, err := tx.SizeWithoutResults()
	require.NoError(t, err)

	bill := &netBillRecorder{}
	require.NoError(t, env.bp.Consume(tx, &types.TransactionResult{}, bill))
	// first contract is billed size+64, second size+128
	require.Equal(t, 2*size+3*MaxResultSizeInTx, env.account(t, sender).NetUsage)
	require.Equal(t, size+2*MaxResultSizeInTx, bill.netUsage)
	require.EqualValues(t, 2, env.observe.Counter(t, "bandwidth.tier", observability.Tier(TierOwnNet)))
}

func TestBandwidth_Decay(t *testing.T) {
	sender, receiver := test.RandomAddress(), test.RandomAddress()
	env := newTestEnv(t, []*state.GenesisAccount{{Address: sender, FrozenBalance: 10_000_000}, {Address: receiver}})
	tx := newTx(transfer(t, sender, receiver, 0))
	bytesSize := txSize(t, tx)

	require.NoError(t, env.bp.Consume(tx, &types.TransactionResult{}, nil))
	env.advance(t, startSlot+WindowSize/2)
	require.NoError(t, env.bp.Consume(tx, &types.TransactionResult{}, nil))

	acc := env.account(t, sender)
	require.Equal(t, bytesSize/2+bytesSize, acc.NetUsage)
	require.EqualValues(t, startSlot+WindowSize/2, acc.LatestConsumeTime)
}

func TestBandwidth_UpdateUsage(t *testing.T) {
	env := newTestEnv(t, nil)
	acc := &types.Account{
		Address:               test.RandomAddress(),
		NetUsage:              1000,
		FreeNetUsage:          300,
		LatestConsumeFreeTime: 100,
		EnergyUsage:           800,
	}
	acc.SetFreeAssetNetUsage("tok", 50)
	acc.SetLatestAssetOperationTime("tok", 0)

	require.NoError(t, env.bp.UpdateUsage(acc, WindowSize/2))
	require.EqualValues(t, 500, acc.NetUsage)
	require.EqualValues(t, 151, acc.FreeNetUsage)
	require.EqualValues(t, 25, acc.FreeAssetNetUsageOf("tok"))
	require.EqualValues(t, WindowSize/2, acc.LatestConsumeTime)
	require.EqualValues(t, WindowSize/2, acc.LatestConsumeFreeTime)
	require.EqualValues(t, WindowSize/2, acc.LatestAssetOperationTimeOf("tok"))
	// energy is refreshed by the energy processor
	require.EqualValues(t, 800, acc.EnergyUsage)

	refreshed := acc.Copy()
	require.NoError(t, env.bp.UpdateUsage(refreshed, WindowSize/2))
	require.Equal(t, acc, refreshed)

	// timestamps never move backwards
	require.NoError(t, env.bp.UpdateUsage(refreshed, 10))
	require.Equal(t, acc, refreshed)
}

func TestBandwidth_UpdateUsageIsNotStored(t *testing.T) {
	sender, receiver := test.RandomAddress(), test.RandomAddress()
	env := newTestEnv(t, []*state.GenesisAccount{
		{Address: sender, FrozenBalance: 10_000_000, EnergyFrozenBalance: 1_000_000},
		{Address: receiver},
	})
	tx := newTx(transfer(t, sender, receiver, 1))
	bytesSize := txSize(t, tx)
	require.NoError(t, env.bp.Consume(tx, &types.TransactionResult{}, nil))
	stored := env.account(t, sender)

	acc := env.account(t, sender)
	require.NoError(t, env.bp.UpdateUsage(acc, startSlot+WindowSize/2))
	require.NoError(t, env.ep.UpdateUsage(acc, startSlot+WindowSize/2))
	require.Equal(t, bytesSize/2, acc.NetUsage)

	// the ledger still holds the usage as of the last consumption
	require.Equal(t, stored, env.account(t, sender))
	require.Equal(t, bytesSize, stored.NetUsage)
	require.EqualValues(t, startSlot, stored.LatestConsumeTime)
}

func TestBandwidth_Deterministic(t *testing.T) {
	sender, receiver, blackhole := types.Address{1}, types.Address{2}, types.Address{0xb1}
	run := func() ([]byte, []byte, int64) {
		env := newTestEnv(t,
			[]*state.GenesisAccount{{Address: sender, Balance: 1_000_000, FrozenBalance: 1_000_000}, {Address: receiver}},
			func(p *state.GenesisParams) {
				p.FreeNetLimit = 0
				p.BlackholeAddress = blackhole
			},
		)
		tx := newTx(transfer(t, sender, receiver, 5))
		result := &types.TransactionResult{}
		for i := 0; i < 3; i++ {
			require.NoError(t, env.bp.Consume(tx, result, nil))
		}
		senderBytes, err := types.Cbor.Marshal(env.account(t, sender))
		require.NoError(t, err)
		blackholeBytes, err := types.Cbor.Marshal(env.account(t, blackhole))
		require.NoError(t, err)
		return senderBytes, blackholeBytes, result.Fee
	}

	s1, b1, fee1 := run()
	s2, b2, fee2 := run()
	require.Equal(t, s1, s2)
	require.Equal(t, b1, b2)
	require.Equal(t, fee1, fee2)
}

func TestBandwidth_CalculateGlobalNetLimit(t *testing.T) {
	env := newTestEnv(t, nil)
	limit, err := env.bp.CalculateGlobalNetLimit(999_999)
	require.NoError(t, err)
	require.Zero(t, limit)

	limit, err = env.bp.CalculateGlobalNetLimit(2_500_000)
	require.NoError(t, err)
	require.EqualValues(t, 20_000, limit)
}
