package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripAccents(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"México", "Mexico"},
		{"año", "ano"},
		{"ÁÉÍÓÚÑ", "AEIOUN"},
		{"Construcción 2024", "Construccion 2024"},
		{"plain ascii", "plain ascii"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripAccents(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeForExactMatch(t *testing.T) {
	assert.Equal(t, "garcia chavez", NormalizeForExactMatch("GARCÍA. CHÁVEZ"))
	assert.Equal(t, "garcia chavez", NormalizeForExactMatch("  García,   Chávez!! "))
	assert.Equal(t, "obra 12 b", NormalizeForExactMatch("Obra #12-B"))
	assert.Equal(t, "", NormalizeForExactMatch("--- ..."))
}

func TestNormalizeIsIdempotent(t *testing.T) {
	for _, s := range []string{"GARCÍA. CHÁVEZ", "Hospital General de México", "S.A. de C.V."} {
		once := NormalizeForExactMatch(s)
		assert.Equal(t, once, NormalizeForExactMatch(once))
	}
}

func TestSupplierKey(t *testing.T) {
	assert.Equal(t, "acme", SupplierKey("ACME SA"))
	assert.Equal(t, "acme", SupplierKey("Acme"))
	assert.Equal(t, "acme", SupplierKey("ACME, S.A. de C.V."))
	assert.Equal(t, "constructora norte", SupplierKey("Constructora Norte S. de R.L. de C.V."))
	assert.Equal(t, "costa", SupplierKey("COSTA"))
	assert.Equal(t, "s a", SupplierKey("S.A."), "a bare suffix is kept as the key")
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"mantenimiento", "electrico"}, Words("Mantenimiento Eléctrico"))
	assert.Empty(t, Words("  "))
}
