package observability

import "go.opentelemetry.io/otel/attribute"

const (
	TierKey         attribute.Key = "tier"
	ContractTypeKey attribute.Key = "contract.type"
)

func Tier(name string) attribute.KeyValue {
	return TierKey.String(name)
}

func ContractType(name string) attribute.KeyValue {
	return ContractTypeKey.String(name)
}

/*
ErrStatus returns attribute named "status" with value "ok" if the param
err is nil and "err" when it is not.
*/
func ErrStatus(err error) attribute.KeyValue {
	status := "ok"
	if err != nil {
		status = "err"
	}
	return attribute.String("status", status)
}
