package crypto

import (
	"github.com/holiman/uint256"

	"github.com/eth2030/merkledrop/core/types"
)

// Structured-data (EIP-712) type hashes. Both are fixed for the lifetime of
// the process.
var (
	DomainTypeHash = Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
	ClaimTypeHash  = Keccak256Hash([]byte("Claim(address account,uint256 amount)"))
)

// Domain binds signed claims to one verifier deployment on one network.
// The separator is computed once at construction.
type Domain struct {
	name              string
	version           string
	chainID           uint256.Int
	verifyingContract types.Address
	separator         types.Hash
}

// NewDomain builds the signing domain for a verifier instance. A nil chainID
// is treated as zero.
func NewDomain(name, version string, chainID *uint256.Int, verifyingContract types.Address) *Domain {
	d := &Domain{
		name:              name,
		version:           version,
		verifyingContract: verifyingContract,
	}
	if chainID != nil {
		d.chainID.Set(chainID)
	}

	var buf [5 * 32]byte
	copy(buf[0:32], DomainTypeHash[:])
	nameHash := Keccak256Hash([]byte(name))
	copy(buf[32:64], nameHash[:])
	versionHash := Keccak256Hash([]byte(version))
	copy(buf[64:96], versionHash[:])
	d.chainID.WriteToSlice(buf[96:128])
	copy(buf[128+12:160], verifyingContract[:])
	d.separator = Keccak256Hash(buf[:])
	return d
}

// Name returns the domain name.
func (d *Domain) Name() string { return d.name }

// Version returns the domain version.
func (d *Domain) Version() string { return d.version }

// ChainID returns a copy of the network identifier.
func (d *Domain) ChainID() *uint256.Int { return new(uint256.Int).Set(&d.chainID) }

// VerifyingContract returns the verifier instance address.
func (d *Domain) VerifyingContract() types.Address { return d.verifyingContract }

// Separator returns the precomputed domain separator.
func (d *Domain) Separator() types.Hash { return d.separator }

// ClaimStructHash hashes a Claim(account, amount) message. A nil amount is
// encoded as zero.
func ClaimStructHash(account types.Address, amount *uint256.Int) types.Hash {
	var buf [3 * 32]byte
	copy(buf[0:32], ClaimTypeHash[:])
	copy(buf[32+12:64], account[:])
	if amount != nil {
		amount.WriteToSlice(buf[64:96])
	}
	return Keccak256Hash(buf[:])
}

// ClaimDigest returns the digest a recipient signs to authorize redeeming
// amount to account under this domain:
// keccak256(0x19 || 0x01 || separator || ClaimStructHash(account, amount)).
func (d *Domain) ClaimDigest(account types.Address, amount *uint256.Int) types.Hash {
	structHash := ClaimStructHash(account, amount)
	var buf [2 + 32 + 32]byte
	buf[0] = 0x19
	buf[1] = 0x01
	copy(buf[2:34], d.separator[:])
	copy(buf[34:66], structHash[:])
	return Keccak256Hash(buf[:])
}
