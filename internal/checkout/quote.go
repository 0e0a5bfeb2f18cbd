// Package checkout prices a cart for a delivery zone and writes the
// resulting order.
package checkout

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/snapzone/storefront/internal/cart"
)

// Zone is the delivery zone selector.
type Zone string

const (
	ZoneWithin  Zone = "within"
	ZoneOutside Zone = "outside"
)

// ParseZone accepts exactly the two zone values.
func ParseZone(raw string) (Zone, error) {
	switch Zone(raw) {
	case ZoneWithin, ZoneOutside:
		return Zone(raw), nil
	}
	return "", fmt.Errorf("unknown delivery zone %q", raw)
}

// Policy is the flat zone fee policy: the local zone is free and the remote
// zone pays RemoteFee. There is no tax and no free-shipping threshold.
type Policy struct {
	RemoteFee   decimal.Decimal
	LocalLabel  string
	RemoteLabel string
}

// Label is the human readable zone name used in shipping addresses.
func (p Policy) Label(z Zone) string {
	if z == ZoneOutside {
		return p.RemoteLabel
	}
	return p.LocalLabel
}

// Surcharge is the delivery fee for z.
func (p Policy) Surcharge(z Zone) decimal.Decimal {
	if z == ZoneOutside {
		return p.RemoteFee
	}
	return decimal.Zero
}

// Quote is a priced cart.
type Quote struct {
	Zone      Zone            `json:"zone"`
	ZoneLabel string          `json:"zone_label"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Surcharge decimal.Decimal `json:"surcharge"`
	Total     decimal.Decimal `json:"total"`
}

// Quote prices lines for zone. Total is subtotal plus surcharge.
func (p Policy) Quote(lines []cart.Line, z Zone) Quote {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Subtotal())
	}
	surcharge := p.Surcharge(z)
	return Quote{
		Zone:      z,
		ZoneLabel: p.Label(z),
		Subtotal:  subtotal,
		Surcharge: surcharge,
		Total:     subtotal.Add(surcharge),
	}
}
