package money

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/trailpack-backend/pkg/enums"
)

func TestFormat(t *testing.T) {
	cases := map[int64]string{
		0:      "£0.00",
		5:      "£0.05",
		8999:   "£89.99",
		100000: "£1000.00",
		-250:   "-£2.50",
	}
	for cents, want := range cases {
		assert.Equal(t, want, Format(cents, enums.CurrencyGBP), "cents=%d", cents)
	}
}

func TestAmount(t *testing.T) {
	assert.Equal(t, "12.34", Amount(1234).StringFixed(2))
	assert.Equal(t, "£12.34", FormatGBP(1234))
}
