package resource

const (
	// WindowSize is the number of slots (one per 3s block) a usage counter
	// takes to decay from any value to zero, ie 24h.
	WindowSize = 28_800

	// MaxResultSizeInTx is the max size of contract result in a transaction,
	// it is also the per contract padding of the billed size when VM is enabled.
	MaxResultSizeInTx = 64

	// SunPerEnergy is the energy fee rate used when the dynamic energy_fee is not set.
	SunPerEnergy = 100

	// TrxPrecision is the number of sun in one TRX.
	TrxPrecision = 1_000_000
)
