package metrics

// Pre-defined metrics. All live in DefaultRegistry so they are globally
// accessible without passing a registry around.

var (
	// ---- Commitment builder ----

	// MerkleBuilds counts completed tree builds.
	MerkleBuilds = DefaultRegistry.Counter("merkle.builds")
	// MerkleLeaves counts leaves hashed across all builds.
	MerkleLeaves = DefaultRegistry.Counter("merkle.leaves")
	// MerkleBuildTime records build duration in microseconds.
	MerkleBuildTime = DefaultRegistry.Histogram("merkle.build_us")

	// ---- Claim state machine ----

	// ClaimsAccepted counts successful redemptions.
	ClaimsAccepted = DefaultRegistry.Counter("claim.accepted")
	// ClaimsAlreadyClaimed counts replayed claims.
	ClaimsAlreadyClaimed = DefaultRegistry.Counter("claim.rejected.already_claimed")
	// ClaimsInvalidSignature counts claims with a bad authorization.
	ClaimsInvalidSignature = DefaultRegistry.Counter("claim.rejected.invalid_signature")
	// ClaimsInvalidProof counts claims whose membership proof failed.
	ClaimsInvalidProof = DefaultRegistry.Counter("claim.rejected.invalid_proof")
	// ClaimsLedgerFailed counts claims rolled back after a failed transfer.
	ClaimsLedgerFailed = DefaultRegistry.Counter("claim.rejected.ledger_failed")
	// ClaimLatency records claim processing time in microseconds.
	ClaimLatency = DefaultRegistry.Histogram("claim.latency_us")
	// Distributors tracks live distributor instances.
	Distributors = DefaultRegistry.Gauge("claim.distributors")
)
