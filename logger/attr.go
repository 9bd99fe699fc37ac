package logger

import (
	"encoding/hex"
	"fmt"
	"log/slog"
)

/*
Log attribute key values. Generally shouldn't be used directly, use
appropriate "attribute constructor function" instead.

Only define names here if they are common for multiple modules, module
specific names should be defined in the module.
*/
const (
	ModuleKey  = "module"
	ErrorKey   = "err"
	DataKey    = "data"
	AddressKey = "address"
	SlotKey    = "slot"
	TxIDKey    = "tx_id"
	TierKey    = "tier"
)

/*
Module adds name of the component to the log, use it with logger.With()
to create sub-logger for the component.
*/
func Module(name string) slog.Attr {
	return slog.String(ModuleKey, name)
}

/*
Error adds error to the log

	if err:= f(); err != nil {
		log.Error("calling f", logger.Error(err))
	}
*/
func Error(err error) slog.Attr {
	return slog.Any(ErrorKey, err)
}

/*
Data adds additional data field to the message.

slog.GroupValue shouldn't be used as the data - in the ECS formatter all
groups will end up under the same key possibly causing problems with index!

Use of anonymous types is discouraged too.
*/
func Data(d any) slog.Attr {
	return slog.Any(DataKey, d)
}

/*
Address is used to log the account primarily associated with the logging
call (ie owner of the contract being billed).
*/
func Address(addr fmt.Stringer) slog.Attr {
	return slog.String(AddressKey, addr.String())
}

// Slot adds the head slot the operation is executed at.
func Slot(slot int64) slog.Attr {
	return slog.Int64(SlotKey, slot)
}

func TxID(id []byte) slog.Attr {
	return slog.String(TxIDKey, hex.EncodeToString(id))
}

// Tier is the name of the bandwidth tier which decided the outcome.
func Tier(name string) slog.Attr {
	return slog.String(TierKey, name)
}
