package supplier

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestReformatPrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{input: "1.456,34 €", want: "1456.34"},
		{input: "1,45645 €", want: "1.45645"},
		{input: "1,56 $", want: "1.56"},
		{input: "0,089 €", want: "0.089"},
		{input: "12 €", want: "12"},
		{input: "Mumpitz", want: "0"},
		{input: "", want: "0"},
		{input: ",", want: "0"},
		{input: "1,2,3", want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got := ReformatPrice(tt.input)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}
