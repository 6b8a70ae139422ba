package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/", ""},
		{"/abc", "abc"},
		{" abc/ ", "abc"},
		{"new", "new"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestRouter_GoDoesNotNotify(t *testing.T) {
	r := NewRouter("")
	calls := 0
	r.Subscribe(func(string) { calls++ })

	r.Go("/abc")

	assert.Equal(t, "abc", r.Path())
	assert.Zero(t, calls)
}

func TestRouter_NavigateNotifies(t *testing.T) {
	r := NewRouter("start")
	var got []string
	r.Subscribe(func(path string) { got = append(got, path) })

	r.Navigate("/next")

	assert.Equal(t, "next", r.Path())
	assert.Equal(t, []string{"next"}, got)
}

func TestRouter_Unsubscribe(t *testing.T) {
	r := NewRouter("")
	calls := 0
	unsubscribe := r.Subscribe(func(string) { calls++ })

	unsubscribe()
	r.Navigate("abc")

	assert.Zero(t, calls)
}

func TestRouter_SubscriberMayReenter(t *testing.T) {
	r := NewRouter("")
	r.Subscribe(func(path string) {
		if path == "bad" {
			r.Go(Root)
		}
	})

	r.Navigate("bad")

	assert.Equal(t, Root, r.Path())
}
