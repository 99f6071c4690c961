package crisis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScan(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"benign", "how was your day?", nil},
		{"empty", "", nil},
		{"direct hit", "I want to die", []string{"want to die"}},
		{"case insensitive", "this is a CRISIS", []string{"crisis"}},
		{"embedded phrase", "sometimes I think about self harm at night", []string{"self harm"}},
		{"apostrophe phrase", "I can't go on like this", []string{"can't go on"}},
		{"multiple hits", "it feels hopeless, like giving up", []string{"hopeless", "giving up"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Scan(tt.content))
			assert.Equal(t, len(tt.want) > 0, Detected(tt.content))
		})
	}
}

func TestResourcesCopy(t *testing.T) {
	a := Resources()
	assert.NotEmpty(t, a)
	a[0].Name = "mutated"
	b := Resources()
	assert.NotEqual(t, a[0].Name, b[0].Name)
}
