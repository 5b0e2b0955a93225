package businessflow

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Legal entity forms stripped from business names wherever they occur.
// "GmbH & Co. KG" is handled separately before connector joining.
var legalSuffixes = []string{
	"GmbH",
	"mbH",
	"e.V.",
	"KG",
	"AG",
	"UG",
	"OHG",
	"GbR",
	"Inc.",
	"Ltd.",
	"LLC",
	"Corp.",
}

var umlautReplacer = strings.NewReplacer(
	"ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss",
	"Ä", "Ae", "Ö", "Oe", "Ü", "Ue", "ẞ", "Ss",
)

var (
	nonSlugRe       = regexp.MustCompile(`[^a-z0-9-]+`)
	nonIDRe         = regexp.MustCompile(`[^A-Za-z0-9]+`)
	multiDashRe     = regexp.MustCompile(`-{2,}`)
	separatorRunRe  = regexp.MustCompile(`[\s_/]+`)
	numericTokenRe  = regexp.MustCompile(`^[0-9]+$`)
	nonDedupeRuneRe = regexp.MustCompile(`[^a-z0-9]+`)
)

// NormalizeBusinessName reduces a raw business name to a short slug usable as
// a link id base. Returns "" when nothing survives, which callers treat as no
// identity available. Step order matters: umlauts first so "Müller" becomes
// "mueller" rather than "mller".
func NormalizeBusinessName(raw string) string {
	s := umlautReplacer.Replace(raw)

	// Legal forms containing "&" must go before the connector join below or
	// "GmbH & Co. KG" would fuse into an unstrippable token.
	s = stripSuffixToken(s, "GmbH & Co. KG")

	// "&" and "@" join the surrounding words instead of splitting them, so
	// "A & B" yields the single token "AundB".
	s = joinConnector(s, "&", "und")
	s = joinConnector(s, "@", "at")

	for _, suffix := range legalSuffixes {
		s = stripSuffixToken(s, suffix)
	}

	s = separatorRunRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	tokens := strings.Fields(s)

	// Stray trailing ZIP codes sneak into name columns; drop them.
	for len(tokens) > 0 && numericTokenRe.MatchString(tokens[len(tokens)-1]) && len(tokens) > 1 {
		tokens = tokens[:len(tokens)-1]
	}

	cleaned := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = nonSlugRe.ReplaceAllString(strings.ToLower(t), "")
		t = strings.Trim(t, "-")
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return ""
	}

	first := cleaned[0]
	if len(cleaned) == 1 {
		return first
	}

	second := cleaned[1]
	// A very short or numeric first token carries no identity on its own.
	if len(first) <= 2 || numericTokenRe.MatchString(first) {
		return first + "-" + second
	}
	// Otherwise append the second token only while the slug stays short and
	// the first token is not already a long hyphenated compound.
	combined := first + "-" + second
	if len(combined) <= 20 && !(strings.Contains(first, "-") && len(first) > 12) {
		return combined
	}
	return first
}

// joinConnector removes whitespace around each occurrence of sep and splices
// the replacement word in between, so the surrounding words fuse into one
// token.
func joinConnector(s, sep, word string) string {
	if !strings.Contains(s, sep) {
		return s
	}
	parts := strings.Split(s, sep)
	for i := range parts {
		if i == 0 {
			parts[i] = strings.TrimRight(parts[i], " \t")
		} else {
			parts[i] = strings.TrimLeft(parts[i], " \t")
		}
	}
	return strings.Join(parts, word)
}

// stripSuffixToken removes every standalone occurrence of the legal form,
// matched case-insensitively on token boundaries, not only at the end of the
// name.
func stripSuffixToken(s, suffix string) string {
	lowerSuffix := strings.ToLower(suffix)
	from := 0
	for {
		idx := strings.Index(strings.ToLower(s[from:]), lowerSuffix)
		if idx < 0 {
			return s
		}
		idx += from
		end := idx + len(suffix)
		beforeOK := idx == 0 || isBoundary(s[idx-1])
		afterOK := end >= len(s) || isBoundary(s[end])
		if !beforeOK || !afterOK {
			// Occurs inside a word, e.g. "ag" in "Tagger"; skip past it.
			from = idx + 1
			continue
		}
		s = strings.TrimSpace(s[:idx] + " " + s[end:])
		from = 0
	}
}

func isBoundary(b byte) bool {
	switch b {
	case ' ', '\t', ',', '.', '-', '/', '_', '(', ')':
		return true
	}
	return false
}

// SanitizeID reduces any raw value to the character set allowed in link and
// business identifiers.
func SanitizeID(value string) string {
	v := strings.TrimSpace(value)
	v = nonIDRe.ReplaceAllString(v, "-")
	v = multiDashRe.ReplaceAllString(v, "-")
	return strings.Trim(v, "-")
}

// MakeBusinessID derives the business identifier from name and postcode. It
// never returns "" so a garbage row still lands somewhere deterministic.
func MakeBusinessID(businessName, postcode string) string {
	base := SanitizeID(businessName)
	if plz := SanitizeID(postcode); plz != "" {
		if base != "" {
			base = base + "-" + plz
		} else {
			base = plz
		}
	}
	if base == "" {
		return "biz"
	}
	return base
}

// DedupeKey builds the name+address fingerprint stored on each target for
// later duplicate-detection tooling.
func DedupeKey(name, street, house, postcode, city string) string {
	norm := func(s string) string {
		return nonDedupeRuneRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	}
	street = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(street)), "ß", "ss")
	return norm(name) + "|" + nonDedupeRuneRe.ReplaceAllString(street, "-") + "-" + norm(house) + "|" +
		strings.ToLower(strings.TrimSpace(postcode)) + "|" + norm(city)
}

// ComposeFullAddress joins the address parts into a single geocodable line,
// "Street House, PLZ City, Country".
func ComposeFullAddress(street, houseNo, postcode, city, country string) string {
	var parts []string
	street = strings.TrimSpace(street)
	houseNo = strings.TrimSpace(houseNo)
	if street != "" {
		parts = append(parts, street)
	}
	if houseNo != "" {
		if len(parts) > 0 {
			parts[len(parts)-1] = parts[len(parts)-1] + " " + houseNo
		} else {
			parts = append(parts, houseNo)
		}
	}
	var line2 []string
	if postcode = strings.TrimSpace(postcode); postcode != "" {
		line2 = append(line2, postcode)
	}
	if city = strings.TrimSpace(city); city != "" {
		line2 = append(line2, city)
	}
	if len(line2) > 0 {
		parts = append(parts, strings.Join(line2, " "))
	}
	if country != "" {
		parts = append(parts, country)
	}
	return strings.Join(parts, ", ")
}

// TemplateWithQRSuffix rewrites a template file name to its tracked variant,
// e.g. "flyer.indd" becomes "flyer_qr_track.pdf". Idempotent on names that
// already carry the suffix.
func TemplateWithQRSuffix(template string) string {
	if template == "" {
		return ""
	}
	ext := filepath.Ext(template)
	base := strings.TrimSuffix(template, ext)
	if strings.HasSuffix(base, "_qr_track") {
		return base + ".pdf"
	}
	return base + "_qr_track.pdf"
}

// BuildTrackingLink joins the public base URL and the link id.
func BuildTrackingLink(baseURL, linkID string) string {
	return strings.TrimRight(baseURL, "/") + "/" + linkID
}

// Mail providers whose domains identify a person, not a business. An email at
// one of these never contributes a link id base.
var genericEmailProviders = map[string]struct{}{
	"gmail.com":      {},
	"googlemail.com": {},
	"web.de":         {},
	"gmx.de":         {},
	"gmx.net":        {},
	"gmx.at":         {},
	"t-online.de":    {},
	"outlook.com":    {},
	"outlook.de":     {},
	"hotmail.com":    {},
	"hotmail.de":     {},
	"yahoo.com":      {},
	"yahoo.de":       {},
	"icloud.com":     {},
	"freenet.de":     {},
	"aol.com":        {},
	"online.de":      {},
	"posteo.de":      {},
}

// EmailDomainSlug returns a slug derived from the email's domain when the
// address sits at a company-owned domain, or "" for generic providers and
// malformed addresses. The top-level domain is dropped so
// "info@mueller-gmbh.de" yields "mueller-gmbh".
func EmailDomainSlug(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return ""
	}
	domain := email[at+1:]
	if _, generic := genericEmailProviders[domain]; generic {
		return ""
	}
	host := domain
	if dot := strings.LastIndex(domain, "."); dot > 0 {
		host = domain[:dot]
	}
	return SanitizeID(host)
}
