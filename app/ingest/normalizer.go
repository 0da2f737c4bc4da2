package ingest

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultTitle  = "Sin título"
	DefaultIssuer = "No especificado"

	// Tag appended when a record arrives without any usable title.
	TagUntitled = "untitled"
)

// fieldAliases maps each canonical field to the source keys that may carry
// it, checked in order: the first key present in the raw record wins.
// Covers the government export layouts (descripcion/titulo, nivel1..3,
// numeroConvocatoria/codigoBDNS) alongside the generic english names used
// by feed and upload sources.
var fieldAliases = map[string][]string{
	"title":        {"titulo", "título", "descripcion", "descripción", "denominacion", "title"},
	"description":  {"descripcion", "descripción", "descripcionLeng", "resumen", "description"},
	"external_id":  {"numeroConvocatoria", "codigoBDNS", "external_id", "codigo", "id"},
	"budget":       {"presupuesto", "importe", "budget"},
	"deadline":     {"fechaLimite", "fecha_limite", "plazo", "deadline"},
	"url":          {"url", "enlace", "link"},
	"type":         {"tipo", "type"},
	"country":      {"pais", "país", "country"},
	"region":       {"nivel2", "region", "región", "comunidad"},
	"published":    {"fechaRecepcion", "fechaPublicacion", "fecha_publicacion", "published_at"},
	"issuer":       {"organismo", "organo", "issuer"},
	"requirements": {"requisitos", "requirements"},
	"tags":         {"tags", "etiquetas"},
}

// issuerLevels are the hierarchical organization levels joined into the
// issuer field, blank levels omitted.
var issuerLevels = []string{"nivel1", "nivel2", "nivel3"}

// Normalizer maps raw source records of variable shape into canonical
// Calls. Pure: no I/O, no shared mutable state.
type Normalizer struct {
	homeCountry string
	homeRegion  string
}

func NewNormalizer(homeCountry, homeRegion string) *Normalizer {
	return &Normalizer{
		homeCountry: homeCountry,
		homeRegion:  homeRegion,
	}
}

// Run converts a raw record into a canonical Call. It fails only when the
// record carries neither a usable title nor a usable identifier; every
// other defect degrades to a default or a nil field.
func (n *Normalizer) Run(raw RawRecord, sourceID string) (*Call, error) {
	title := resolveString(raw, fieldAliases["title"])
	externalID := resolveString(raw, fieldAliases["external_id"])

	if title == "" && externalID == "" {
		return nil, fmt.Errorf("%w: no title and no identifier", ErrUnnormalizable)
	}

	call := &Call{
		Title:        title,
		Issuer:       n.buildIssuer(raw),
		Type:         resolveType(raw),
		Description:  resolveString(raw, fieldAliases["description"]),
		Budget:       resolveAmount(raw, fieldAliases["budget"]),
		Deadline:     resolveDate(raw, fieldAliases["deadline"]),
		Country:      n.homeCountry,
		Region:       n.homeRegion,
		URL:          resolveString(raw, fieldAliases["url"]),
		Requirements: resolveStringSlice(raw, fieldAliases["requirements"]),
		Tags:         resolveStringSlice(raw, fieldAliases["tags"]),
		Source:       sourceID,
		ExternalID:   externalID,
		PublishedAt:  resolveDate(raw, fieldAliases["published"]),
	}

	if country := resolveString(raw, fieldAliases["country"]); country != "" {
		call.Country = country
	}
	if region := resolveString(raw, fieldAliases["region"]); region != "" {
		call.Region = region
	}

	if call.Title == "" {
		call.Title = DefaultTitle
		call.Tags = appendUnique(call.Tags, TagUntitled)
	}

	return call, nil
}

// buildIssuer joins the non-blank hierarchy levels with " - ", falling back
// to a flat issuer field and finally to the documented default.
func (n *Normalizer) buildIssuer(raw RawRecord) string {
	var levels []string
	for _, key := range issuerLevels {
		if v := stringValue(raw[key]); v != "" {
			levels = append(levels, v)
		}
	}
	if len(levels) > 0 {
		return strings.Join(levels, " - ")
	}

	if issuer := resolveString(raw, fieldAliases["issuer"]); issuer != "" {
		return issuer
	}
	return DefaultIssuer
}

func resolveType(raw RawRecord) CallType {
	v := strings.ToLower(resolveString(raw, fieldAliases["type"]))
	switch {
	case v == "":
		return CallTypeSubsidy
	case strings.Contains(v, "subvenci"), strings.Contains(v, "ayuda"), strings.Contains(v, "subsidy"):
		return CallTypeSubsidy
	case strings.Contains(v, "premio"), strings.Contains(v, "prize"):
		return CallTypePrize
	case strings.Contains(v, "licitaci"), strings.Contains(v, "contrataci"), strings.Contains(v, "tender"):
		return CallTypeTender
	default:
		return CallTypeOther
	}
}

// resolveString returns the first non-blank string value among the aliases.
func resolveString(raw RawRecord, aliases []string) string {
	for _, key := range aliases {
		if v := stringValue(raw[key]); v != "" {
			return v
		}
	}
	return ""
}

func resolveStringSlice(raw RawRecord, aliases []string) []string {
	for _, key := range aliases {
		switch v := raw[key].(type) {
		case []string:
			return trimAll(v)
		case []any:
			var out []string
			for _, e := range v {
				if s := stringValue(e); s != "" {
					out = append(out, s)
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return nil
}

func resolveAmount(raw RawRecord, aliases []string) decimal.NullDecimal {
	for _, key := range aliases {
		switch v := raw[key].(type) {
		case float64:
			return decimal.NewNullDecimal(decimal.NewFromFloat(v))
		case int:
			return decimal.NewNullDecimal(decimal.NewFromInt(int64(v)))
		case string:
			if d := ParseLocaleAmount(v); d.Valid {
				return d
			}
		}
	}
	return decimal.NullDecimal{}
}

func resolveDate(raw RawRecord, aliases []string) *time.Time {
	for _, key := range aliases {
		if s := stringValue(raw[key]); s != "" {
			if t := ParseLocaleDate(s); t != nil {
				return t
			}
		}
	}
	return nil
}

// The locale alternative requires at least one thousands group; otherwise
// regexp's leftmost-first alternation would clip a plain number like
// "300000" to its first three digits.
var amountPattern = regexp.MustCompile(`\d{1,3}(?:\.\d{3})+(?:,\d+)?|\d+(?:[.,]\d+)?`)

// ParseLocaleAmount parses a currency string in the source locale, where
// "." separates thousands and "," separates decimals ("12.345,67"). Plain
// decimal-point input ("12345.67") is accepted too. Non-numeric input
// yields an invalid NullDecimal, never an error.
func ParseLocaleAmount(s string) decimal.NullDecimal {
	match := amountPattern.FindString(strings.TrimSpace(s))
	if match == "" {
		return decimal.NullDecimal{}
	}

	if strings.Contains(match, ",") {
		// Locale form: drop thousands separators, comma becomes the point.
		match = strings.ReplaceAll(match, ".", "")
		match = strings.Replace(match, ",", ".", 1)
	} else if dot := strings.LastIndex(match, "."); dot >= 0 {
		// A lone dot followed by exactly three digits is a thousands
		// separator; anything else reads as a decimal point.
		if strings.Count(match, ".") > 1 || len(match)-dot-1 == 3 {
			match = strings.ReplaceAll(match, ".", "")
		}
	}

	d, err := decimal.NewFromString(match)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"2006-01-02",
	time.RFC3339,
}

var spanishMonths = map[string]time.Month{
	"enero": time.January, "febrero": time.February, "marzo": time.March,
	"abril": time.April, "mayo": time.May, "junio": time.June,
	"julio": time.July, "agosto": time.August, "septiembre": time.September,
	"octubre": time.October, "noviembre": time.November, "diciembre": time.December,
}

var textualDatePattern = regexp.MustCompile(`(?i)(\d{1,2})\s+de\s+([a-záéíóúñ]+)\s+de\s+(\d{4})`)

// ParseLocaleDate tries the known source date forms in order: DD/MM/YYYY,
// DD-MM-YYYY, ISO, and the textual "D de <mes> de YYYY". Unparseable input
// yields nil, never an error.
func ParseLocaleDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}

	if m := textualDatePattern.FindStringSubmatch(strings.ToLower(s)); m != nil {
		if month, ok := spanishMonths[m[2]]; ok {
			day := atoiSafe(m[1])
			year := atoiSafe(m[3])
			if day >= 1 && day <= 31 {
				t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
				return &t
			}
		}
	}

	return nil
}

func stringValue(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%v", x)
	case int:
		return fmt.Sprintf("%d", x)
	case int64:
		return fmt.Sprintf("%d", x)
	default:
		return ""
	}
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func appendUnique(tags []string, tag string) []string {
	for _, t := range tags {
		if t == tag {
			return tags
		}
	}
	return append(tags, tag)
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
