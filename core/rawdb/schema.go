package rawdb

// Key prefixes for the database schema.
var (
	claimedPrefix = []byte("c") // c + account (20 bytes) -> claimed marker
	rootKey       = []byte("R") // -> commitment root the record belongs to
)

// AddressLength is the size of an account key suffix.
const AddressLength = 20

// ClaimedKey = claimedPrefix + account
func ClaimedKey(account [AddressLength]byte) []byte {
	return append(append([]byte{}, claimedPrefix...), account[:]...)
}

// ClaimedPrefix returns the prefix shared by every claimed marker.
func ClaimedPrefix() []byte {
	return append([]byte{}, claimedPrefix...)
}

// RootKey returns the key holding the commitment root a record is bound to.
func RootKey() []byte {
	return append([]byte{}, rootKey...)
}
