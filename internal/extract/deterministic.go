package extract

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/prequal-cli/internal/model"
)

// Deterministic is the regex/keyword pre-pass. It handles dollar amounts,
// yes/no answers to the slot just asked, loan purposes, and US state codes.
// It never guesses: anything ambiguous is left for the model pass.
type Deterministic struct {
	reg *model.SlotRegistry
}

// NewDeterministic creates the deterministic extractor over the given registry.
func NewDeterministic(reg *model.SlotRegistry) *Deterministic {
	return &Deterministic{reg: reg}
}

var amountRe = regexp.MustCompile(`(?i)\$?\s*(\d[\d,]*(?:\.\d+)?)\s*(k|m|mm|thousand|million)?\b`)

// ParseAmount parses a dollar amount like "$300k", "300,000", or "1.2 million".
// Returns false for text with no parseable number.
func ParseAmount(s string) (float64, bool) {
	m := amountRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	raw := strings.ReplaceAll(m[1], ",", "")
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "k", "thousand":
		n *= 1_000
	case "m", "mm", "million":
		n *= 1_000_000
	}
	return n, true
}

var (
	affirmativeWords = []string{"yes", "yeah", "yep", "yup", "correct", "right", "sure", "absolutely", "i do", "of course", "definitely", "that's right", "confirmed"}
	negativeWords    = []string{"no", "nope", "nah", "incorrect", "wrong", "i don't", "i do not", "not really", "negative"}
)

// parseYesNo classifies a short reply as affirmative or negative. The second
// return is false when the text is neither.
func parseYesNo(s string) (bool, bool) {
	t := strings.ToLower(strings.TrimSpace(s))
	t = strings.Trim(t, ".!,")
	for _, w := range affirmativeWords {
		if t == w || strings.HasPrefix(t, w+" ") || strings.HasPrefix(t, w+",") {
			return true, true
		}
	}
	for _, w := range negativeWords {
		if t == w || strings.HasPrefix(t, w+" ") || strings.HasPrefix(t, w+",") {
			return false, true
		}
	}
	return false, false
}

// IsAffirmative reports whether the text reads as a yes.
func IsAffirmative(s string) bool {
	v, ok := parseYesNo(s)
	return ok && v
}

// IsNegative reports whether the text reads as a no.
func IsNegative(s string) bool {
	v, ok := parseYesNo(s)
	return ok && !v
}

// usStates maps lowercase state names and USPS codes to the canonical code.
var usStates = map[string]string{
	"al": "AL", "alabama": "AL", "ak": "AK", "alaska": "AK", "az": "AZ", "arizona": "AZ",
	"ar": "AR", "arkansas": "AR", "ca": "CA", "california": "CA", "co": "CO", "colorado": "CO",
	"ct": "CT", "connecticut": "CT", "de": "DE", "delaware": "DE", "fl": "FL", "florida": "FL",
	"ga": "GA", "georgia": "GA", "hi": "HI", "hawaii": "HI", "id": "ID", "idaho": "ID",
	"il": "IL", "illinois": "IL", "in": "IN", "indiana": "IN", "ia": "IA", "iowa": "IA",
	"ks": "KS", "kansas": "KS", "ky": "KY", "kentucky": "KY", "la": "LA", "louisiana": "LA",
	"me": "ME", "maine": "ME", "md": "MD", "maryland": "MD", "ma": "MA", "massachusetts": "MA",
	"mi": "MI", "michigan": "MI", "mn": "MN", "minnesota": "MN", "ms": "MS", "mississippi": "MS",
	"mo": "MO", "missouri": "MO", "mt": "MT", "montana": "MT", "ne": "NE", "nebraska": "NE",
	"nv": "NV", "nevada": "NV", "nh": "NH", "new hampshire": "NH", "nj": "NJ", "new jersey": "NJ",
	"nm": "NM", "new mexico": "NM", "ny": "NY", "new york": "NY", "nc": "NC", "north carolina": "NC",
	"nd": "ND", "north dakota": "ND", "oh": "OH", "ohio": "OH", "ok": "OK", "oklahoma": "OK",
	"or": "OR", "oregon": "OR", "pa": "PA", "pennsylvania": "PA", "ri": "RI", "rhode island": "RI",
	"sc": "SC", "south carolina": "SC", "sd": "SD", "south dakota": "SD", "tn": "TN", "tennessee": "TN",
	"tx": "TX", "texas": "TX", "ut": "UT", "utah": "UT", "vt": "VT", "vermont": "VT",
	"va": "VA", "virginia": "VA", "wa": "WA", "washington": "WA", "wv": "WV", "west virginia": "WV",
	"wi": "WI", "wisconsin": "WI", "wy": "WY", "wyoming": "WY", "dc": "DC",
}

var purposeKeywords = []struct {
	purpose string
	words   []string
}{
	{model.PurposeInvestment, []string{"investment", "invest", "rental", "rent it", "dscr", "airbnb", "cash flow"}},
	{model.PurposeSecondHome, []string{"second home", "vacation", "holiday home"}},
	{model.PurposePrimary, []string{"primary", "live in it", "live there", "my residence", "move in"}},
}

// Extract runs the deterministic pre-pass over the user text.
func (d *Deterministic) Extract(_ context.Context, userText string, ec Context) (Extraction, error) {
	out := make(Extraction)
	lower := strings.ToLower(userText)

	d.extractAmounts(lower, ec, out)
	d.extractPurpose(lower, out)
	d.extractState(userText, out)

	// Yes/no bound to the boolean slot just asked.
	if def := d.reg.ByName(ec.LastSlotAsked); def != nil && def.Kind == model.KindBoolean {
		if v, ok := parseYesNo(userText); ok {
			out[def.Name] = Candidate{Value: v, Confidence: 0.95, Source: model.SourceDeterministic}
		}
	}

	// Short free-text reply bound to the text slot just asked (city/country).
	// A yes/no is never a place name, even when a text question is pending.
	if def := d.reg.ByName(ec.LastSlotAsked); def != nil && def.Kind == model.KindText && def.Name != model.SlotLoanPurpose {
		if _, yn := parseYesNo(userText); yn {
			return Sanitize(d.reg, out), nil
		}
		if _, taken := out[def.Name]; !taken {
			if v, ok := shortTextAnswer(userText); ok {
				out[def.Name] = Candidate{Value: v, Confidence: 0.7, Source: model.SourceDeterministic}
			}
		}
	}

	return Sanitize(d.reg, out), nil
}

// extractAmounts assigns parsed dollar figures to down payment or property
// price. A keyword near the number decides the slot; with no keyword the
// amount binds to the financial slot just asked, if any.
func (d *Deterministic) extractAmounts(lower string, ec Context, out Extraction) {
	amt, ok := ParseAmount(lower)
	if !ok {
		return
	}

	hasDown := containsAny(lower, d.reg.ByName(model.SlotDownPayment).Keywords)
	hasPrice := containsAny(lower, d.reg.ByName(model.SlotPropertyPrice).Keywords)

	// Two amounts with both keyword groups present is genuinely ambiguous
	// about which figure is which; leave it for the model pass.
	if hasDown && hasPrice {
		return
	}

	switch {
	case hasDown:
		out[model.SlotDownPayment] = Candidate{Value: amt, Confidence: 0.9, Source: model.SourceDeterministic}
	case hasPrice:
		out[model.SlotPropertyPrice] = Candidate{Value: amt, Confidence: 0.9, Source: model.SourceDeterministic}
	case ec.LastSlotAsked == model.SlotDownPayment || ec.LastSlotAsked == model.SlotPropertyPrice:
		out[ec.LastSlotAsked] = Candidate{Value: amt, Confidence: 0.85, Source: model.SourceDeterministic}
	}
}

func (d *Deterministic) extractPurpose(lower string, out Extraction) {
	for _, pk := range purposeKeywords {
		if containsAny(lower, pk.words) {
			out[model.SlotLoanPurpose] = Candidate{Value: pk.purpose, Confidence: 0.85, Source: model.SourceDeterministic}
			return
		}
	}
}

func (d *Deterministic) extractState(text string, out Extraction) {
	for _, tok := range strings.Fields(text) {
		tok = strings.Trim(tok, ".,!?")
		// Bare two-letter codes must be uppercase to count; "in" or "me" in
		// running prose must not match.
		if len(tok) == 2 && tok == strings.ToUpper(tok) {
			if code, ok := usStates[strings.ToLower(tok)]; ok {
				out[model.SlotPropertyState] = Candidate{Value: code, Confidence: 0.9, Source: model.SourceDeterministic}
				return
			}
		}
	}
	lower := strings.ToLower(text)
	for name, code := range usStates {
		if len(name) > 2 && strings.Contains(lower, name) {
			out[model.SlotPropertyState] = Candidate{Value: code, Confidence: 0.85, Source: model.SourceDeterministic}
			return
		}
	}
}

// shortTextAnswer accepts a 1-3 word alphabetic reply as a direct answer to a
// text question ("Miami", "the UK" is trimmed of articles).
func shortTextAnswer(text string) (string, bool) {
	t := strings.TrimSpace(text)
	t = strings.Trim(t, ".!,")
	words := strings.Fields(t)
	if len(words) == 0 || len(words) > 3 {
		return "", false
	}
	for _, w := range words {
		for _, r := range w {
			if !isLetter(r) {
				return "", false
			}
		}
	}
	if strings.EqualFold(words[0], "the") {
		words = words[1:]
		if len(words) == 0 {
			return "", false
		}
	}
	return strings.Join(words, " "), true
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
