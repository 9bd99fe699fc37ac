package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"

	"github.com/resmeter/resmeter/logger"
	"github.com/resmeter/resmeter/observability"
	"github.com/resmeter/resmeter/state"
	"github.com/resmeter/resmeter/types"
	"github.com/resmeter/resmeter/util"
)

// names of the bandwidth tiers, used in logs and metrics
const (
	TierCreateAccountNet = "create_account_net"
	TierCreateAccountFee = "create_account_fee"
	TierIssuerNet        = "issuer_net"
	TierOwnNet           = "own_net"
	TierFreeNet          = "free_net"
	TierFee              = "fee"
	TierFail             = "fail"
)

type (
	/*
	BandwidthProcessor bills the bytes of the transaction. For every contract
	the tiers are tried in fixed order and the first one to succeed finishes
	the contract: account creation, token issuer's bandwidth, sender's frozen
	bandwidth, free public bandwidth and finally fee from the balance.
	*/
	BandwidthProcessor struct {
		*processor

		tierCount metric.Int64Counter
	}

	// NetBillSetter receives the bandwidth bill of the contract.
	NetBillSetter interface {
		SetNetBill(netUsage, netFee int64)
	}
)

var _ Processor = (*BandwidthProcessor)(nil)

func NewBandwidthProcessor(s *state.State, clock SlotSource, observe Observability, opts ...Option) (*BandwidthProcessor, error) {
	p, err := newProcessor(s, clock, observe, "resource.bandwidth", opts...)
	if err != nil {
		return nil, err
	}
	bp := &BandwidthProcessor{processor: p}
	bp.log = p.log.With(logger.Module("bandwidth"))
	m := observe.Meter("resource.bandwidth")
	if bp.tierCount, err = m.Int64Counter("bandwidth.tier", metric.WithDescription("Number of contracts billed by the bandwidth tier")); err != nil {
		return nil, fmt.Errorf("creating tier counter: %w", err)
	}
	return bp, nil
}

/*
UpdateUsage refreshes net usage, free net usage and the free asset net usage
of every asset of the account as of slot "now". The timestamps are advanced
to "now" so that calling it again with the same "now" doesn't change the
account.

The result is a read only projection and must not be stored: the stored
record keeps the timestamps of the last consumption, a stored projection
would decay the usage differently.
*/
func (bp *BandwidthProcessor) UpdateUsage(acc *types.Account, now int64) error {
	netUsage, err := bp.increase(acc.NetUsage, 0, acc.LatestConsumeTime, now)
	if err != nil {
		return fmt.Errorf("net usage: %w", err)
	}
	freeNetUsage, err := bp.increase(acc.FreeNetUsage, 0, acc.LatestConsumeFreeTime, now)
	if err != nil {
		return fmt.Errorf("free net usage: %w", err)
	}
	assetUsage := make(map[string]int64, len(acc.FreeAssetNetUsage))
	for name, usage := range acc.FreeAssetNetUsage {
		if assetUsage[name], err = bp.increase(usage, 0, acc.LatestAssetOperationTimeOf(name), now); err != nil {
			return fmt.Errorf("free asset %q net usage: %w", name, err)
		}
	}

	acc.NetUsage = netUsage
	acc.LatestConsumeTime = max(acc.LatestConsumeTime, now)
	acc.FreeNetUsage = freeNetUsage
	acc.LatestConsumeFreeTime = max(acc.LatestConsumeFreeTime, now)
	for name, usage := range assetUsage {
		acc.SetFreeAssetNetUsage(name, usage)
		acc.SetLatestAssetOperationTime(name, max(acc.LatestAssetOperationTimeOf(name), now))
	}
	return nil
}

// CalculateGlobalNetLimit returns bandwidth limit granted by the frozen balance.
func (bp *BandwidthProcessor) CalculateGlobalNetLimit(frozenBalance int64) (int64, error) {
	totalNetLimit, err := bp.dp.Get(state.TotalNetLimit)
	if err != nil {
		return 0, err
	}
	totalNetWeight, err := bp.dp.Get(state.TotalNetWeight)
	if err != nil {
		return 0, err
	}
	return globalLimit(frozenBalance, totalNetLimit, totalNetWeight), nil
}

/*
Consume bills the bandwidth of every contract of the transaction, in order.
The fees are added to "result" and the net bill is reported to "trace".
On error the changes already made must be discarded by the caller (ie by
rolling back the state savepoint).
*/
func (bp *BandwidthProcessor) Consume(tx *types.Transaction, result *types.TransactionResult, trace NetBillSetter) error {
	if tx == nil || tx.RawData == nil {
		return fmt.Errorf("%w: transaction is empty", ErrContractValidate)
	}
	if result == nil {
		return errors.New("transaction result is nil")
	}
	contracts := tx.Contracts()
	resultSize, err := tx.ResultSerializedSize()
	if err != nil {
		return fmt.Errorf("calculating result size: %w", err)
	}
	if resultSize > MaxResultSizeInTx*int64(len(contracts)) {
		return fmt.Errorf("%w: result size %d exceeds %d", ErrTooBigTransactionResult, resultSize, MaxResultSizeInTx*len(contracts))
	}

	supportVM, err := bp.dp.SupportVM()
	if err != nil {
		return err
	}
	var bytesSize int64
	if supportVM {
		bytesSize, err = tx.SizeWithoutResults()
	} else {
		bytesSize, err = tx.SerializedSize()
	}
	if err != nil {
		return fmt.Errorf("calculating transaction size: %w", err)
	}

	now, err := bp.clock.HeadSlot()
	if err != nil {
		return fmt.Errorf("reading head slot: %w", err)
	}
	for i, c := range contracts {
		// with VM support every contract adds room for one more result so
		// the size billed grows along the contract list
		if supportVM {
			bytesSize += MaxResultSizeInTx
		}
		if err := bp.consumeContract(c, bytesSize, now, result, trace); err != nil {
			return fmt.Errorf("contract[%d] %s: %w", i, c.Type, err)
		}
	}
	return nil
}

func (bp *BandwidthProcessor) consumeContract(c *types.Contract, bytesSize, now int64, result *types.TransactionResult, trace NetBillSetter) error {
	ownerAddr, err := c.OwnerAddress()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrContractValidate, err)
	}
	owner, err := bp.state.GetAccount(ownerAddr)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return fmt.Errorf("%w: account %s not exists", ErrContractValidate, ownerAddr)
		}
		return err
	}
	log := bp.log.With(logger.Address(ownerAddr), logger.Slot(now))
	if trace != nil {
		trace.SetNetBill(bytesSize, 0)
	}

	newAccount, err := bp.createsNewAccount(c)
	if err != nil {
		return err
	}
	if newAccount {
		tier, err := bp.consumeForCreateNewAccount(owner, bytesSize, now, result)
		if err != nil {
			return err
		}
		if tier == "" {
			bp.countTier(TierFail, c.Type)
			return fmt.Errorf("%w: account %s has insufficient bandwidth and balance to create new account", ErrAccountResourceInsufficient, ownerAddr)
		}
		// account creation is reported as fee only, also when paid from frozen bandwidth
		if trace != nil {
			trace.SetNetBill(0, result.Fee)
		}
		bp.billed(log, tier, c.Type, bytesSize)
		return nil
	}

	if c.Type == types.TransferAssetContractType {
		ok, err := bp.useAssetAccountNet(c, owner, bytesSize, now)
		if err != nil {
			return err
		}
		if ok {
			bp.billed(log, TierIssuerNet, c.Type, bytesSize)
			return nil
		}
	}

	if ok, err := bp.useAccountNet(owner, bytesSize, now); err != nil {
		return err
	} else if ok {
		bp.billed(log, TierOwnNet, c.Type, bytesSize)
		return nil
	}

	if ok, err := bp.useFreeNet(owner, bytesSize, now); err != nil {
		return err
	} else if ok {
		bp.billed(log, TierFreeNet, c.Type, bytesSize)
		return nil
	}

	if ok, err := bp.useTransactionFee(owner, bytesSize, result, trace); err != nil {
		return err
	} else if ok {
		bp.billed(log, TierFee, c.Type, bytesSize)
		return nil
	}

	bp.countTier(TierFail, c.Type)
	return fmt.Errorf("%w: account %s has insufficient bandwidth and balance to create new transaction", ErrAccountResourceInsufficient, ownerAddr)
}

func (bp *BandwidthProcessor) billed(log *slog.Logger, tier string, ct types.ContractType, bytesSize int64) {
	log.Debug(fmt.Sprintf("billed %d bytes of %s", bytesSize, ct), logger.Tier(tier))
	bp.countTier(tier, ct)
}

func (bp *BandwidthProcessor) countTier(tier string, ct types.ContractType) {
	bp.tierCount.Add(context.Background(), 1, metric.WithAttributes(observability.Tier(tier), observability.ContractType(ct.String())))
}

// createsNewAccount returns true when executing the contract creates a new account.
func (bp *BandwidthProcessor) createsNewAccount(c *types.Contract) (bool, error) {
	if c.Type == types.AccountCreateContractType {
		return true, nil
	}
	to, ok, err := c.ToAddress()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrContractValidate, err)
	}
	if !ok {
		return false, nil
	}
	exists, err := bp.state.HasAccount(to)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

/*
consumeForCreateNewAccount charges the account creation either from the
frozen bandwidth or as a flat fee from the balance. Returns name of the tier
which succeeded, empty string when neither could.
*/
func (bp *BandwidthProcessor) consumeForCreateNewAccount(acc *types.Account, bytesSize, now int64, result *types.TransactionResult) (string, error) {
	ok, err := bp.consumeBandwidthForCreateNewAccount(acc, bytesSize, now)
	if err != nil || ok {
		return TierCreateAccountNet, err
	}

	fee, err := bp.dp.Get(state.CreateAccountFee)
	if err != nil {
		return "", err
	}
	updated := acc.Copy()
	ok, actions, err := bp.consumeFeeActions(updated, fee)
	if err != nil || !ok {
		return "", err
	}
	actions = append(actions, state.AddProperty(state.TotalCreateAccountCost, fee))
	if err := bp.state.Apply(actions...); err != nil {
		return "", fmt.Errorf("storing account creation fee: %w", err)
	}
	*acc = *updated
	if err := result.AddFee(fee); err != nil {
		return "", err
	}
	bp.feeBurned.Add(context.Background(), fee)
	return TierCreateAccountFee, nil
}

func (bp *BandwidthProcessor) consumeBandwidthForCreateNewAccount(acc *types.Account, bytesSize, now int64) (bool, error) {
	rate, err := bp.dp.Get(state.CreateNewAccountBandwidthRate)
	if err != nil {
		return false, err
	}
	cost, ok := util.MulInt64(bytesSize, rate)
	if !ok {
		return false, fmt.Errorf("%w: account creation bandwidth %d * %d", ErrUsageOverflow, bytesSize, rate)
	}
	return bp.useFrozenNet(acc, cost, now)
}

func (bp *BandwidthProcessor) useAccountNet(acc *types.Account, bytesSize, now int64) (bool, error) {
	return bp.useFrozenNet(acc, bytesSize, now)
}

// useFrozenNet deducts "cost" from the bandwidth granted by the frozen balance of the account.
func (bp *BandwidthProcessor) useFrozenNet(acc *types.Account, cost, now int64) (bool, error) {
	netLimit, err := bp.CalculateGlobalNetLimit(acc.FrozenBalance)
	if err != nil {
		return false, err
	}
	netUsage, err := bp.increase(acc.NetUsage, 0, acc.LatestConsumeTime, now)
	if err != nil {
		return false, err
	}
	if cost > netLimit-netUsage {
		return false, nil
	}
	headTs, err := bp.headBlockTimestamp()
	if err != nil {
		return false, err
	}
	if netUsage, err = bp.increase(netUsage, cost, now, now); err != nil {
		return false, err
	}

	updated := acc.Copy()
	updated.NetUsage = netUsage
	updated.LatestConsumeTime = now
	updated.LatestOperationTime = headTs
	if err := bp.state.Apply(state.SetAccount(updated)); err != nil {
		return false, fmt.Errorf("storing account: %w", err)
	}
	*acc = *updated
	return true, nil
}

/*
useAssetAccountNet bills the bytes of the asset transfer to the asset issuer.
Asset's public free budget, sender's per asset budget and the issuer's frozen
bandwidth must all accommodate the bytes. Returns false without changing
anything when the sender is the issuer or any of the budgets is too small.
*/
func (bp *BandwidthProcessor) useAssetAccountNet(c *types.Contract, acc *types.Account, bytesSize, now int64) (bool, error) {
	param := &types.TransferAssetContract{}
	if err := c.UnmarshalParameter(param); err != nil {
		return false, fmt.Errorf("%w: %w", ErrContractValidate, err)
	}
	asset, err := bp.state.GetAsset(param.AssetName)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return false, fmt.Errorf("%w: asset %q not exists", ErrContractValidate, param.AssetName)
		}
		return false, err
	}
	if asset.OwnerAddress == acc.Address {
		return false, nil
	}

	publicUsage, err := bp.increase(asset.PublicFreeAssetNetUsage, 0, asset.PublicLatestFreeNetTime, now)
	if err != nil {
		return false, err
	}
	if bytesSize > asset.PublicFreeAssetNetLimit-publicUsage {
		bp.log.Debug(fmt.Sprintf("public free bandwidth of asset %q is not enough", asset.Name))
		return false, nil
	}

	freeAssetUsage, err := bp.increase(acc.FreeAssetNetUsageOf(asset.Name), 0, acc.LatestAssetOperationTimeOf(asset.Name), now)
	if err != nil {
		return false, err
	}
	if bytesSize > asset.FreeAssetNetLimit-freeAssetUsage {
		bp.log.Debug(fmt.Sprintf("free bandwidth of asset %q is not enough", asset.Name), logger.Address(acc.Address))
		return false, nil
	}

	issuer, err := bp.state.GetAccount(asset.OwnerAddress)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return false, fmt.Errorf("%w: issuer account %s of asset %q not exists", ErrContractValidate, asset.OwnerAddress, asset.Name)
		}
		return false, err
	}
	issuerNetLimit, err := bp.CalculateGlobalNetLimit(issuer.FrozenBalance)
	if err != nil {
		return false, err
	}
	issuerUsage, err := bp.increase(issuer.NetUsage, 0, issuer.LatestConsumeTime, now)
	if err != nil {
		return false, err
	}
	if bytesSize > issuerNetLimit-issuerUsage {
		bp.log.Debug(fmt.Sprintf("bandwidth of the issuer of asset %q is not enough", asset.Name), logger.Address(issuer.Address))
		return false, nil
	}

	headTs, err := bp.headBlockTimestamp()
	if err != nil {
		return false, err
	}
	if issuerUsage, err = bp.increase(issuerUsage, bytesSize, now, now); err != nil {
		return false, err
	}
	if freeAssetUsage, err = bp.increase(freeAssetUsage, bytesSize, now, now); err != nil {
		return false, err
	}
	if publicUsage, err = bp.increase(publicUsage, bytesSize, now, now); err != nil {
		return false, err
	}

	issuer.NetUsage = issuerUsage
	issuer.LatestConsumeTime = now

	updatedAsset := asset.Copy()
	updatedAsset.PublicFreeAssetNetUsage = publicUsage
	updatedAsset.PublicLatestFreeNetTime = now

	updated := acc.Copy()
	updated.LatestOperationTime = headTs
	updated.SetLatestAssetOperationTime(asset.Name, now)
	updated.SetFreeAssetNetUsage(asset.Name, freeAssetUsage)

	if err := bp.state.Apply(
		state.SetAccount(updated),
		state.SetAccount(issuer),
		state.SetAsset(updatedAsset),
	); err != nil {
		return false, fmt.Errorf("storing asset bandwidth usage: %w", err)
	}
	*acc = *updated
	return true, nil
}

func (bp *BandwidthProcessor) useFreeNet(acc *types.Account, bytesSize, now int64) (bool, error) {
	freeNetLimit, err := bp.dp.Get(state.FreeNetLimit)
	if err != nil {
		return false, err
	}
	freeNetUsage, err := bp.increase(acc.FreeNetUsage, 0, acc.LatestConsumeFreeTime, now)
	if err != nil {
		return false, err
	}
	if bytesSize > freeNetLimit-freeNetUsage {
		return false, nil
	}

	publicNetLimit, err := bp.dp.Get(state.PublicNetLimit)
	if err != nil {
		return false, err
	}
	publicNetUsage, err := bp.dp.Get(state.PublicNetUsage)
	if err != nil {
		return false, err
	}
	publicNetTime, err := bp.dp.Get(state.PublicNetTime)
	if err != nil {
		return false, err
	}
	if publicNetUsage, err = bp.increase(publicNetUsage, 0, publicNetTime, now); err != nil {
		return false, err
	}
	if bytesSize > publicNetLimit-publicNetUsage {
		return false, nil
	}

	headTs, err := bp.headBlockTimestamp()
	if err != nil {
		return false, err
	}
	if freeNetUsage, err = bp.increase(freeNetUsage, bytesSize, now, now); err != nil {
		return false, err
	}
	if publicNetUsage, err = bp.increase(publicNetUsage, bytesSize, now, now); err != nil {
		return false, err
	}

	updated := acc.Copy()
	updated.FreeNetUsage = freeNetUsage
	updated.LatestConsumeFreeTime = now
	updated.LatestOperationTime = headTs
	if err := bp.state.Apply(
		state.SetAccount(updated),
		state.SetProperty(state.PublicNetUsage, publicNetUsage),
		state.SetProperty(state.PublicNetTime, now),
	); err != nil {
		return false, fmt.Errorf("storing free bandwidth usage: %w", err)
	}
	*acc = *updated
	return true, nil
}

func (bp *BandwidthProcessor) useTransactionFee(acc *types.Account, bytesSize int64, result *types.TransactionResult, trace NetBillSetter) (bool, error) {
	rate, err := bp.dp.Get(state.TransactionFee)
	if err != nil {
		return false, err
	}
	fee, ok := util.MulInt64(bytesSize, rate)
	if !ok {
		return false, fmt.Errorf("%w: transaction fee %d * %d", ErrUsageOverflow, bytesSize, rate)
	}
	updated := acc.Copy()
	ok, actions, err := bp.consumeFeeActions(updated, fee)
	if err != nil || !ok {
		return false, err
	}
	actions = append(actions, state.AddProperty(state.TotalTransactionCost, fee))
	if err := bp.state.Apply(actions...); err != nil {
		return false, fmt.Errorf("storing transaction fee: %w", err)
	}
	*acc = *updated
	if err := result.AddFee(fee); err != nil {
		return false, err
	}
	if trace != nil {
		trace.SetNetBill(0, result.Fee)
	}
	bp.feeBurned.Add(context.Background(), fee)
	return true, nil
}
