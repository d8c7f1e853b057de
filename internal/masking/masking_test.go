package masking_test

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"medmarket/internal/masking"
)

func TestHandleFormat(t *testing.T) {
	buyerRe := regexp.MustCompile(`^PHARM-[A-HJ-NP-Z2-9]{4}$`)
	supplierRe := regexp.MustCompile(`^SUPP-[A-HJ-NP-Z2-9]{4}$`)

	for i := 0; i < 100; i++ {
		require.Regexp(t, buyerRe, masking.Handle(masking.RoleBuyer))
		require.Regexp(t, supplierRe, masking.Handle(masking.RoleSupplier))
	}
}

func TestHandleAvoidsConfusableCharacters(t *testing.T) {
	for i := 0; i < 200; i++ {
		h := masking.Handle(masking.RoleSupplier)
		suffix := strings.TrimPrefix(h, "SUPP-")
		require.NotContains(t, suffix, "0")
		require.NotContains(t, suffix, "O")
		require.NotContains(t, suffix, "1")
		require.NotContains(t, suffix, "I")
	}
}
