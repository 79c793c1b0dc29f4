package strategy

import (
	"encoding/json"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TransformFunc maps a raw extracted value (and, for url_abs, the
// page's base URL) to a transformed value, or an error if the value
// cannot be transformed.
type TransformFunc func(value string, baseURL string) (any, error)

// transformTable is the closure-table dispatch for named
// transformers, following the "tagged-variant or closure table"
// guidance for this kind of small, fixed, named operation set.
var transformTable = map[string]TransformFunc{
	"trim":          transformTrim,
	"normalize_ws":  transformNormalizeWS,
	"number":        transformNumber,
	"currency":      transformCurrency,
	"date_iso":      transformDateISO,
	"url_abs":       transformURLAbs,
	"lowercase":     transformLowercase,
	"uppercase":     transformUppercase,
	"split":         transformSplit,
	"regex_extract": transformRegexExtract,
	"json_parse":    transformJSONParse,
	"html_decode":   transformHTMLDecode,
}

// ApplyTransformers runs value through the named transformers in
// order. A transformer failure yields nil for that field; the chain
// stops there — callers supply a fallback selector to retry from
// scratch, not to resume mid-chain.
func ApplyTransformers(names []string, value string, baseURL string) (any, error) {
	var current any = value
	for _, name := range names {
		fn, ok := transformTable[name]
		if !ok {
			return nil, unknownTransformerError(name)
		}
		s, ok := current.(string)
		if !ok {
			// A prior transformer already produced a structured
			// value (e.g. json_parse); nothing left to transform.
			return current, nil
		}
		out, err := fn(s, baseURL)
		if err != nil {
			return nil, nil
		}
		current = out
	}
	return current, nil
}

type unknownTransformerError string

func (e unknownTransformerError) Error() string {
	return "unknown transformer: " + string(e)
}

func transformTrim(v, _ string) (any, error) {
	return strings.TrimSpace(v), nil
}

var wsRE = regexp.MustCompile(`\s+`)

func transformNormalizeWS(v, _ string) (any, error) {
	return wsRE.ReplaceAllString(strings.TrimSpace(v), " "), nil
}

var numberRE = regexp.MustCompile(`[-+]?[\d][\d,]*\.?\d*`)

func transformNumber(v, _ string) (any, error) {
	match := numberRE.FindString(v)
	if match == "" {
		return nil, unknownTransformerError("number: no numeric token")
	}
	clean := strings.ReplaceAll(match, ",", "")
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return nil, err
	}
	return f, nil
}

var currencyRE = regexp.MustCompile(`[-+]?[\d][\d,]*\.?\d*`)

func transformCurrency(v, _ string) (any, error) {
	match := currencyRE.FindString(v)
	if match == "" {
		return nil, unknownTransformerError("currency: no numeric token")
	}
	clean := strings.ReplaceAll(match, ",", "")
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return nil, err
	}
	return f, nil
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2006-01-02 15:04:05",
}

func transformDateISO(v, _ string) (any, error) {
	v = strings.TrimSpace(v)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC().Format("2006-01-02"), nil
		}
	}
	return nil, unknownTransformerError("date_iso: unrecognized format")
}

func transformURLAbs(v, baseURL string) (any, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	ref, err := url.Parse(strings.TrimSpace(v))
	if err != nil {
		return nil, err
	}
	return base.ResolveReference(ref).String(), nil
}

func transformLowercase(v, _ string) (any, error) {
	return strings.ToLower(v), nil
}

func transformUppercase(v, _ string) (any, error) {
	return strings.ToUpper(v), nil
}

func transformSplit(v, _ string) (any, error) {
	return strings.Fields(v), nil
}

// transformRegexExtract always fails: regex_extract needs a pattern
// the generic TransformFunc signature doesn't carry, so a bare
// "regex_extract" in a chain yields nil. ApplyTransformers does not
// parse a `regex_extract:<pattern>` name either (it is an unknown
// transformer); callers pass the pattern to ApplyBoundRegexExtract.
func transformRegexExtract(v, _ string) (any, error) {
	return nil, unknownTransformerError("regex_extract requires a bound pattern, use ApplyBoundRegexExtract")
}

// ApplyBoundRegexExtract runs the first capture group of pattern
// against v, for callers that hold the pattern themselves.
func ApplyBoundRegexExtract(pattern, v string) (any, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	m := re.FindStringSubmatch(v)
	if len(m) < 2 {
		return nil, unknownTransformerError("regex_extract: no match")
	}
	return m[1], nil
}

func transformJSONParse(v, _ string) (any, error) {
	var out any
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func transformHTMLDecode(v, _ string) (any, error) {
	return html.UnescapeString(v), nil
}
