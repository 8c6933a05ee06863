package ai

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"unicode"
)

// StripFences removes markdown code-fence wrapping (with or without a language
// tag) when the reply opens with a fence, then trims the text to its outermost
// JSON object. Backticks inside an unfenced reply are left alone.
func StripFences(input string) string {
	trimmed := strings.TrimSpace(input)
	if strings.HasPrefix(trimmed, "```") {
		rest := strings.TrimLeftFunc(trimmed[3:], func(r rune) bool {
			return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_'
		})
		if end := strings.LastIndex(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		trimmed = strings.TrimSpace(rest)
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end >= start {
		return strings.TrimSpace(trimmed[start : end+1])
	}
	return trimmed
}

// replyContent separates a blank reply from one that is only fence markup.
func replyContent(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrEmptyResponse
	}
	content := StripFences(raw)
	if content == "" {
		return "", malformed("no content inside code fence")
	}
	return content, nil
}

var (
	geoStatuses       = []string{"PASS", "FAIL", "UNKNOWN"}
	priceStatuses     = []string{"HIGH_RISK", "MODERATE_RISK", "LOW_RISK"}
	textStatuses      = []string{"DETECTED", "CLEAR"}
	ownershipStatuses = []string{"PLAUSIBLE", "SUSPICIOUS", "UNKNOWN"}
	verdictColors     = []string{ColorRed, ColorYellow, ColorGreen}
)

type statusWire struct {
	Status  string `json:"status"`
	Details string `json:"details"`
}

type riskAssessmentWire struct {
	RiskScore    float64    `json:"riskScore"`
	Verdict      string     `json:"verdict"`
	VerdictColor string     `json:"verdictColor"`
	Summary      string     `json:"summary"`
	GeoLog       statusWire `json:"geoLog"`
	PriceLog     statusWire `json:"priceLog"`
	TextLog      struct {
		Status        string   `json:"status"`
		Details       string   `json:"details"`
		KeywordsFound []string `json:"keywordsFound"`
	} `json:"textLog"`
	PhotoLog struct {
		IntegrityScore float64 `json:"integrityScore"`
		Details        string  `json:"details"`
	} `json:"photoLog"`
	OwnershipLog    statusWire `json:"ownershipLog"`
	ActionableSteps []string   `json:"actionableSteps"`
}

// ParseRiskAssessment validates raw model output against the risk report shape.
func ParseRiskAssessment(raw string) (RiskAssessment, error) {
	content, err := replyContent(raw)
	if err != nil {
		return RiskAssessment{}, err
	}
	fields, err := decodeObject(content)
	if err != nil {
		return RiskAssessment{}, err
	}
	if err := requireKeys("response", fields,
		"riskScore", "verdict", "verdictColor", "summary",
		"geoLog", "priceLog", "textLog", "photoLog", "ownershipLog", "actionableSteps",
	); err != nil {
		return RiskAssessment{}, err
	}
	for _, name := range []string{"geoLog", "priceLog", "textLog", "ownershipLog"} {
		if err := requireNested(fields, name, "status", "details"); err != nil {
			return RiskAssessment{}, err
		}
	}
	if err := requireNested(fields, "photoLog", "integrityScore", "details"); err != nil {
		return RiskAssessment{}, err
	}

	var wire riskAssessmentWire
	if err := json.Unmarshal([]byte(content), &wire); err != nil {
		return RiskAssessment{}, malformed("decode risk assessment: %v", err)
	}

	if math.IsNaN(wire.RiskScore) || wire.RiskScore < 0 || wire.RiskScore > 100 {
		return RiskAssessment{}, malformed("riskScore %v outside 0-100", wire.RiskScore)
	}
	if wire.PhotoLog.IntegrityScore < 1 || wire.PhotoLog.IntegrityScore > 10 {
		return RiskAssessment{}, malformed("photoLog.integrityScore %v outside 1-10", wire.PhotoLog.IntegrityScore)
	}

	color, err := enumValue("verdictColor", wire.VerdictColor, verdictColors)
	if err != nil {
		return RiskAssessment{}, err
	}
	geo, err := enumValue("geoLog.status", wire.GeoLog.Status, geoStatuses)
	if err != nil {
		return RiskAssessment{}, err
	}
	price, err := enumValue("priceLog.status", wire.PriceLog.Status, priceStatuses)
	if err != nil {
		return RiskAssessment{}, err
	}
	text, err := enumValue("textLog.status", wire.TextLog.Status, textStatuses)
	if err != nil {
		return RiskAssessment{}, err
	}
	ownership, err := enumValue("ownershipLog.status", wire.OwnershipLog.Status, ownershipStatuses)
	if err != nil {
		return RiskAssessment{}, err
	}

	steps := cleanStrings(wire.ActionableSteps)
	if len(steps) == 0 {
		return RiskAssessment{}, malformed("actionableSteps empty")
	}

	return RiskAssessment{
		RiskScore:    int(math.Round(wire.RiskScore)),
		Verdict:      strings.TrimSpace(wire.Verdict),
		VerdictColor: color,
		Summary:      strings.TrimSpace(wire.Summary),
		GeoLog:       GeoLog{Status: geo, Details: strings.TrimSpace(wire.GeoLog.Details)},
		PriceLog:     PriceLog{Status: price, Details: strings.TrimSpace(wire.PriceLog.Details)},
		TextLog: TextLog{
			Status:        text,
			Details:       strings.TrimSpace(wire.TextLog.Details),
			KeywordsFound: cleanStrings(wire.TextLog.KeywordsFound),
		},
		PhotoLog: PhotoLog{
			IntegrityScore: int(math.Round(wire.PhotoLog.IntegrityScore)),
			Details:        strings.TrimSpace(wire.PhotoLog.Details),
		},
		OwnershipLog:    OwnershipLog{Status: ownership, Details: strings.TrimSpace(wire.OwnershipLog.Details)},
		ActionableSteps: steps,
	}, nil
}

// ParseDocumentCheck validates raw model output for a document check.
func ParseDocumentCheck(raw string) (DocumentCheckResult, error) {
	content, err := replyContent(raw)
	if err != nil {
		return DocumentCheckResult{}, err
	}
	fields, err := decodeObject(content)
	if err != nil {
		return DocumentCheckResult{}, err
	}
	if err := requireKeys("response", fields, "verdict", "details"); err != nil {
		return DocumentCheckResult{}, err
	}

	var decoded DocumentCheckResult
	if err := json.Unmarshal([]byte(content), &decoded); err != nil {
		return DocumentCheckResult{}, malformed("decode document check: %v", err)
	}
	decoded.Verdict = strings.TrimSpace(decoded.Verdict)
	if decoded.Verdict == "" {
		return DocumentCheckResult{}, malformed("verdict empty")
	}
	decoded.Details = strings.TrimSpace(decoded.Details)
	decoded.Sources = cleanStrings(decoded.Sources)
	if len(decoded.Sources) == 0 {
		decoded.Sources = nil
	}
	return decoded, nil
}

// ParseGeoDetails validates raw model output for a coordinate lookup.
func ParseGeoDetails(raw string) (GeoDetails, error) {
	content, err := replyContent(raw)
	if err != nil {
		return GeoDetails{}, err
	}
	fields, err := decodeObject(content)
	if err != nil {
		return GeoDetails{}, err
	}
	if err := requireKeys("response", fields, "address"); err != nil {
		return GeoDetails{}, err
	}

	var decoded GeoDetails
	if err := json.Unmarshal([]byte(content), &decoded); err != nil {
		return GeoDetails{}, malformed("decode geo details: %v", err)
	}
	decoded.Address = strings.TrimSpace(decoded.Address)
	decoded.OwnerName = strings.TrimSpace(decoded.OwnerName)
	if decoded.Address == "" {
		return GeoDetails{}, malformed("address empty")
	}
	return decoded, nil
}

func decodeObject(content string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &fields); err != nil {
		return nil, malformed("not a json object: %v", err)
	}
	if fields == nil {
		return nil, malformed("not a json object")
	}
	return fields, nil
}

func requireKeys(scope string, fields map[string]json.RawMessage, keys ...string) error {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return malformed("%s missing %s", scope, key)
		}
	}
	return nil
}

func requireNested(fields map[string]json.RawMessage, name string, keys ...string) error {
	var nested map[string]json.RawMessage
	if err := json.Unmarshal(fields[name], &nested); err != nil || nested == nil {
		return malformed("%s is not an object", name)
	}
	return requireKeys(name, nested, keys...)
}

func enumValue(field, value string, allowed []string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range allowed {
		if normalized == candidate {
			return candidate, nil
		}
	}
	return "", malformed("%s %q not one of %s", field, value, strings.Join(allowed, ", "))
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
