package service

import (
	"regexp"
	"strconv"
	"strings"
)

// Macro names recognized in postback URL templates. The renderer operates
// over this closed set; anything else in braces passes through literally and
// is reported back so callers can log it.
const (
	MacroClickID       = "click_id"
	MacroPayout        = "payout"
	MacroStatus        = "status"
	MacroOfferID       = "offer_id"
	MacroConversionID  = "conversion_id"
	MacroTransactionID = "transaction_id"
	MacroAffiliateID   = "affiliate_id"
	MacroSub1          = "sub1"
	MacroSub2          = "sub2"
	MacroSub3          = "sub3"
	MacroSub4          = "sub4"
	MacroSub5          = "sub5"
	MacroCurrency      = "currency"
)

var knownMacros = map[string]struct{}{
	MacroClickID:       {},
	MacroPayout:        {},
	MacroStatus:        {},
	MacroOfferID:       {},
	MacroConversionID:  {},
	MacroTransactionID: {},
	MacroAffiliateID:   {},
	MacroSub1:          {},
	MacroSub2:          {},
	MacroSub3:          {},
	MacroSub4:          {},
	MacroSub5:          {},
	MacroCurrency:      {},
}

// The pattern covers any cased brace token so that {CLICK_ID} and friends are
// reported as unknown rather than silently skipped; the macro set itself is
// lowercase only.
var macroPattern = regexp.MustCompile(`\{([A-Za-z_0-9]+)\}`)

// MacroValues holds the substitution values for one postback send.
type MacroValues struct {
	ClickID       string
	Payout        float64
	Status        string
	OfferID       string
	ConversionID  string
	TransactionID string
	AffiliateID   string
	Sub1          string
	Sub2          string
	Sub3          string
	Sub4          string
	Sub5          string
	Currency      string
}

func (v MacroValues) lookup(name string) string {
	switch name {
	case MacroClickID:
		return v.ClickID
	case MacroPayout:
		return FormatPayout(v.Payout)
	case MacroStatus:
		return v.Status
	case MacroOfferID:
		return v.OfferID
	case MacroConversionID:
		return v.ConversionID
	case MacroTransactionID:
		return v.TransactionID
	case MacroAffiliateID:
		return v.AffiliateID
	case MacroSub1:
		return v.Sub1
	case MacroSub2:
		return v.Sub2
	case MacroSub3:
		return v.Sub3
	case MacroSub4:
		return v.Sub4
	case MacroSub5:
		return v.Sub5
	case MacroCurrency:
		return v.Currency
	default:
		return ""
	}
}

// RenderMacros substitutes known macros into template and returns the result
// plus the names of any unknown tokens left as literal text.
func RenderMacros(template string, values MacroValues) (string, []string) {
	var unknown []string
	rendered := macroPattern.ReplaceAllStringFunc(template, func(token string) string {
		name := strings.Trim(token, "{}")
		if _, ok := knownMacros[name]; !ok {
			unknown = append(unknown, name)
			return token
		}
		return values.lookup(name)
	})
	return rendered, unknown
}

// FormatPayout renders a payout amount with at least one decimal place, so a
// whole-dollar payout substitutes as "6.0" rather than "6".
func FormatPayout(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
