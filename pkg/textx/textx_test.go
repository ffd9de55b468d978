package textx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "hello", SanitizeText("  hello \x00\x01 "))
	assert.Equal(t, "a\nb", SanitizeText("a\nb"))
}

func TestNormalizeHandle(t *testing.T) {
	assert.Equal(t, "brandx", NormalizeHandle("  @BrandX "))
	assert.Equal(t, "a.b_c", NormalizeHandle("A.B_C"))
}

func TestValidHandle(t *testing.T) {
	assert.True(t, ValidHandle("brand_x.1"))
	assert.False(t, ValidHandle(""))
	assert.False(t, ValidHandle("has space"))
	assert.False(t, ValidHandle("UPPER")) // must be normalized first
	long := make([]byte, MaxHandleLen+1)
	for i := range long {
		long[i] = 'a'
	}
	assert.False(t, ValidHandle(string(long)))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "abc", Preview("abc", 10))
	assert.Equal(t, "ab", Preview("abcd", 2))
	// multi-byte runes are never split
	assert.Equal(t, "한", Preview("한국", 3))
}
