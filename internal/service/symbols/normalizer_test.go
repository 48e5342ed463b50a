package symbols

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"btc", "BTC/USD"},
		{"ETH", "ETH/USD"},
		{" sol ", "SOL/USD"},
		{" aapl ", "AAPL"},
		{"SPY", "SPY"},
		{"msft", "MSFT"},
		{"", ""},
		{"dot", "DOT/USD"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Normalize(c.in), "input %q", c.in)
	}
}
