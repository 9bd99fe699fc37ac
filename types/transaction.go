package types

import (
	"crypto/sha256"
	"errors"
	"fmt"
)

type ContractType uint32

const (
	AccountCreateContractType ContractType = 0
	TransferContractType      ContractType = 1
	TransferAssetContractType ContractType = 2
	TriggerSmartContractType  ContractType = 31
)

func (ct ContractType) String() string {
	switch ct {
	case AccountCreateContractType:
		return "AccountCreateContract"
	case TransferContractType:
		return "TransferContract"
	case TransferAssetContractType:
		return "TransferAssetContract"
	case TriggerSmartContractType:
		return "TriggerSmartContract"
	default:
		return fmt.Sprintf("ContractType(%d)", uint32(ct))
	}
}

type ContractStatus uint8

const (
	StatusDefault ContractStatus = iota
	StatusSuccess
	StatusRevert
	StatusOutOfEnergy
	StatusUnknown
)

type (
	Transaction struct {
		_          struct{} `cbor:",toarray"`
		RawData    *TransactionRaw
		Signatures [][]byte
		Results    []*ContractResult
	}

	TransactionRaw struct {
		_          struct{} `cbor:",toarray"`
		Contracts  []*Contract
		Timestamp  int64 // ms
		Expiration int64 // ms
		FeeLimit   int64
		Data       []byte
	}

	Contract struct {
		_         struct{} `cbor:",toarray"`
		Type      ContractType
		Parameter RawCBOR
	}

	// ContractResult is the per contract execution result carried in the
	// transaction.
	ContractResult struct {
		_       struct{} `cbor:",toarray"`
		Fee     int64
		Status  ContractStatus
		Message []byte
	}

	AccountCreateContract struct {
		_              struct{} `cbor:",toarray"`
		OwnerAddress   Address
		AccountAddress Address
	}

	TransferContract struct {
		_            struct{} `cbor:",toarray"`
		OwnerAddress Address
		ToAddress    Address
		Amount       int64
	}

	TransferAssetContract struct {
		_            struct{} `cbor:",toarray"`
		AssetName    string
		OwnerAddress Address
		ToAddress    Address
		Amount       int64
	}

	TriggerSmartContract struct {
		_               struct{} `cbor:",toarray"`
		OwnerAddress    Address
		ContractAddress Address
		CallValue       int64
		Data            []byte
	}
)

// NewContract encodes the parameter and returns contract of given type.
func NewContract(ct ContractType, parameter any) (*Contract, error) {
	b, err := Cbor.Marshal(parameter)
	if err != nil {
		return nil, fmt.Errorf("encoding %s parameter: %w", ct, err)
	}
	return &Contract{Type: ct, Parameter: b}, nil
}

func (c *Contract) UnmarshalParameter(v any) error {
	if c == nil {
		return errors.New("contract is nil")
	}
	return Cbor.Unmarshal(c.Parameter, v)
}

// OwnerAddress returns the address of the account which initiated the contract.
func (c *Contract) OwnerAddress() (Address, error) {
	switch c.Type {
	case AccountCreateContractType:
		p := &AccountCreateContract{}
		if err := c.UnmarshalParameter(p); err != nil {
			return Address{}, fmt.Errorf("decoding %s: %w", c.Type, err)
		}
		return p.OwnerAddress, nil
	case TransferContractType:
		p := &TransferContract{}
		if err := c.UnmarshalParameter(p); err != nil {
			return Address{}, fmt.Errorf("decoding %s: %w", c.Type, err)
		}
		return p.OwnerAddress, nil
	case TransferAssetContractType:
		p := &TransferAssetContract{}
		if err := c.UnmarshalParameter(p); err != nil {
			return Address{}, fmt.Errorf("decoding %s: %w", c.Type, err)
		}
		return p.OwnerAddress, nil
	case TriggerSmartContractType:
		p := &TriggerSmartContract{}
		if err := c.UnmarshalParameter(p); err != nil {
			return Address{}, fmt.Errorf("decoding %s: %w", c.Type, err)
		}
		return p.OwnerAddress, nil
	default:
		return Address{}, fmt.Errorf("unsupported contract type %s", c.Type)
	}
}

/*
ToAddress returns destination address of the transfer contracts, ok is
false for contract types which do not transfer value to an account.
*/
func (c *Contract) ToAddress() (addr Address, ok bool, err error) {
	switch c.Type {
	case TransferContractType:
		p := &TransferContract{}
		if err := c.UnmarshalParameter(p); err != nil {
			return Address{}, false, fmt.Errorf("decoding %s: %w", c.Type, err)
		}
		return p.ToAddress, true, nil
	case TransferAssetContractType:
		p := &TransferAssetContract{}
		if err := c.UnmarshalParameter(p); err != nil {
			return Address{}, false, fmt.Errorf("decoding %s: %w", c.Type, err)
		}
		return p.ToAddress, true, nil
	default:
		return Address{}, false, nil
	}
}

func (tx *Transaction) Contracts() []*Contract {
	if tx == nil || tx.RawData == nil {
		return nil
	}
	return tx.RawData.Contracts
}

// ID returns SHA256 hash of the raw data.
func (tx *Transaction) ID() ([]byte, error) {
	if tx == nil || tx.RawData == nil {
		return nil, errors.New("transaction raw data is nil")
	}
	b, err := Cbor.Marshal(tx.RawData)
	if err != nil {
		return nil, fmt.Errorf("encoding transaction raw data: %w", err)
	}
	h := sha256.Sum256(b)
	return h[:], nil
}

// SerializedSize returns length of the encoded transaction.
func (tx *Transaction) SerializedSize() (int64, error) {
	n, err := Cbor.Size(tx)
	return int64(n), err
}

// SizeWithoutResults returns length of the encoded transaction with results stripped.
func (tx *Transaction) SizeWithoutResults() (int64, error) {
	c := &Transaction{RawData: tx.RawData, Signatures: tx.Signatures}
	n, err := Cbor.Size(c)
	return int64(n), err
}

// ResultSerializedSize returns sum of the encoded sizes of the contract results.
func (tx *Transaction) ResultSerializedSize() (int64, error) {
	var size int64
	for _, r := range tx.Results {
		n, err := Cbor.Size(r)
		if err != nil {
			return 0, fmt.Errorf("encoding contract result: %w", err)
		}
		size += int64(n)
	}
	return size, nil
}
