// Package masking generates the pseudonymous handles organizations trade
// under before a deal reveals them.
package masking

import "math/rand"

type Role string

const (
	RoleBuyer    Role = "buyer"
	RoleSupplier Role = "supplier"
)

// Alphabet leaves out 0/O and 1/I so handles read unambiguously.
const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const suffixLen = 4

// Handle returns a pseudonym like PHARM-7QX2 or SUPP-KD91. Handles are not
// unique by construction; collisions are tolerated because they only serve
// operator display, never lookup.
func Handle(role Role) string {
	prefix := "SUPP"
	if role == RoleBuyer {
		prefix = "PHARM"
	}

	buf := make([]byte, 0, len(prefix)+1+suffixLen)
	buf = append(buf, prefix...)
	buf = append(buf, '-')
	for i := 0; i < suffixLen; i++ {
		buf = append(buf, alphabet[rand.Intn(len(alphabet))])
	}
	return string(buf)
}
