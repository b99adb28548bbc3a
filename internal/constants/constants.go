package constants

const (
	AppName = "drt-client"

	// ZeroAddr is the token's mint origin in Transfer logs.
	ZeroAddr = "0x0000000000000000000000000000000000000000"

	TokenDecimals = 18

	DefaultCacheSize      = 256
	DefaultMaxBlockRange  = 10_000
	DefaultPollIntervalMS = 1_000

	// EIP-1193 provider error codes.
	RPCCodeUserRejected = 4001
	RPCCodeUnauthorized = 4100
)
