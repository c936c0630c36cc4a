package hebrew

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLetters(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "תורה", "תורה"},
		{"niqqud and cantillation", "בְּרֵאשִׁ֖ית", "בראשית"},
		{"latin and digits dropped", "abc תורה 123", "תורה"},
		{"maqaf and sof pasuq dropped", "עַל־פְּנֵ֥י׃", "עלפני"},
		{"presentation form", "שׁ", "ש"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Letters(tt.in))
		})
	}
}

func TestStripMarks(t *testing.T) {
	assert.Equal(t, "בראשית ברא", StripMarks("בְּרֵאשִׁ֖ית בָּרָ֣א"))
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"על", "פני", "המים"}, Words("עַל־פְּנֵ֥י  הַמָּֽיִם׃"))
	assert.Empty(t, Words("  123 ,, "))
}

func TestIsLetter(t *testing.T) {
	assert.True(t, IsLetter('א'))
	assert.True(t, IsLetter('ת'))
	assert.True(t, IsLetter('ץ'))
	assert.False(t, IsLetter('ְ'))
	assert.False(t, IsLetter('a'))
}

func TestAcrosticPattern(t *testing.T) {
	assert.Equal(t, "יהוה", AcrosticPattern("יבוא השמחה ויגל הארץ", EdgeFirst))
	assert.Equal(t, "אהלץ", AcrosticPattern("יבוא השמחה ויגל הארץ", EdgeLast))
	// A single word is used as-is.
	assert.Equal(t, "תורה", AcrosticPattern("תּוֹרָה", EdgeFirst))
	assert.Equal(t, "", AcrosticPattern("", EdgeLast))
}

func TestFoldFinals(t *testing.T) {
	assert.Equal(t, "שלומ ארצ", FoldFinals("שלום ארץ"))
}

func TestEdgeString(t *testing.T) {
	assert.Equal(t, "first", EdgeFirst.String())
	assert.Equal(t, "last", EdgeLast.String())
}
