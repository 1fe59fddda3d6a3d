package constant

// Business codes attached to classified errors raised at the module boundary.
const (
	ErrCommitNotFound        = "FLR-0001"
	ErrContextNotFound       = "FLR-0002"
	ErrIndexNodeNotFound     = "FLR-0003"
	ErrHeadCommitMissing     = "FLR-0004"
	ErrMalformedAddress      = "FLR-0005"
	ErrAddressMethodMismatch = "FLR-0006"
	ErrCacheBudgetTooSmall   = "FLR-0007"
	ErrConnectionClosed      = "FLR-0008"
	ErrStoreCapability       = "FLR-0009"
	ErrPathOutsideRoot       = "FLR-0010"
	ErrDigestMismatch        = "FLR-0011"
	ErrCoercionFailed        = "FLR-0012"
	ErrMappingMalformed      = "FLR-0013"
	ErrHeadLookupUnsupported = "FLR-0014"
)
