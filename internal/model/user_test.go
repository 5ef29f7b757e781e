package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListItemIDCoercions(t *testing.T) {
	cases := []struct {
		name string
		item ListItem
		want string
	}{
		{"string", ListItem{"id": "abc"}, "abc"},
		{"json number", ListItem{"id": float64(42)}, "42"},
		{"fractional number", ListItem{"id": 17.5}, "17.5"},
		{"int", ListItem{"id": 7}, "7"},
		{"int64", ListItem{"id": int64(9000000000)}, "9000000000"},
		{"missing", ListItem{"value": "x"}, ""},
		{"unsupported type", ListItem{"id": true}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.item.ID())
		})
	}
}
