package quotes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProvider_RandomUsesSource(t *testing.T) {
	p := NewProvider(
		Quote{Excerpt: "a", Author: "x"},
		Quote{Excerpt: "b", Author: "y"},
	)
	p.intn = func(int) int { return 1 }

	assert.Equal(t, "b", p.Random().Excerpt)
}

func TestProvider_Builtin(t *testing.T) {
	p := NewProvider()

	for i := 0; i < 20; i++ {
		q := p.Random()
		assert.NotEmpty(t, q.Excerpt)
		assert.NotEmpty(t, q.Author)
	}
}
