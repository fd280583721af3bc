package params

const (
	SecParam = 128
	SecBytes = SecParam / 8

	// MinBitsPaillier is the smallest modulus accepted for key generation or loading.
	MinBitsPaillier = 2048
	// DefaultBitsPaillier matches the key size used by the election front-end.
	DefaultBitsPaillier = 3072

	// PrimalityRounds is the number of Miller-Rabin rounds applied to every prime candidate.
	// math/big adds a Baillie-PSW test on top of these rounds.
	PrimalityRounds = 40

	// MaxKeyGenAttempts bounds the number of (p, q) pairs drawn before key generation gives up.
	MaxKeyGenAttempts = 16
	// MaxPrimeCandidates bounds the number of sieve windows searched for a single prime.
	MaxPrimeCandidates = 4096

	// DefaultBallotCap is the maximum sum of allocations on a single ballot.
	DefaultBallotCap = 100

	// DigestBytes is the length of the digests produced by internal/hash.
	DigestBytes = 2 * SecBytes // = 32
)
