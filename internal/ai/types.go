package ai

import "strings"

// Language is the output language requested from the model.
type Language string

const (
	English Language = "English"
	Hindi   Language = "Hindi"
	French  Language = "French"
	Spanish Language = "Spanish"
)

// Languages lists the supported output languages in display order.
func Languages() []Language {
	return []Language{English, Hindi, French, Spanish}
}

// ParseLanguage maps a user-supplied tag onto a supported language, defaulting to English.
func ParseLanguage(value string) Language {
	trimmed := strings.TrimSpace(value)
	for _, lang := range Languages() {
		if strings.EqualFold(trimmed, string(lang)) {
			return lang
		}
	}
	return English
}

// Image is an inline binary attachment.
type Image struct {
	Data     []byte
	MIMEType string
}

// Present reports whether the image carries both content and a media type.
func (i *Image) Present() bool {
	return i != nil && len(i.Data) > 0 && strings.TrimSpace(i.MIMEType) != ""
}

// ListingInput is the listing data submitted for a fraud-risk assessment.
type ListingInput struct {
	Title       string
	Description string
	Address     string
	Price       float64
	Sqft        float64
	MedianPrice *float64
	Photo       *Image
	OwnerName   string
	Language    Language
}

// Tool names a retrieval capability enabled on a model request.
type Tool string

const (
	ToolWebSearch Tool = "web_search"
	ToolMapLookup Tool = "map_lookup"
)

// Part is one ordered piece of request content: text or inline binary data.
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
}

// IsInline reports whether the part carries binary data.
func (p Part) IsInline() bool {
	return len(p.Data) > 0
}

// Request is the transport-neutral payload submitted to a model.
type Request struct {
	Parts             []Part
	Tools             []Tool
	SystemInstruction string
	History           []ChatTurn
}

// Tier is the severity band bound to a verdict colour.
type Tier string

const (
	TierHigh    Tier = "high"
	TierCaution Tier = "caution"
	TierSafe    Tier = "safe"
)

// Verdict colours.
const (
	ColorRed    = "RED"
	ColorYellow = "YELLOW"
	ColorGreen  = "GREEN"
)

// RiskAssessment is the validated fraud-risk report returned by the model.
type RiskAssessment struct {
	RiskScore       int          `json:"riskScore"`
	Verdict         string       `json:"verdict"`
	VerdictColor    string       `json:"verdictColor"`
	Summary         string       `json:"summary"`
	GeoLog          GeoLog       `json:"geoLog"`
	PriceLog        PriceLog     `json:"priceLog"`
	TextLog         TextLog      `json:"textLog"`
	PhotoLog        PhotoLog     `json:"photoLog"`
	OwnershipLog    OwnershipLog `json:"ownershipLog"`
	ActionableSteps []string     `json:"actionableSteps"`
}

// Tier returns the severity band for the verdict colour.
func (r RiskAssessment) Tier() Tier {
	switch r.VerdictColor {
	case ColorRed:
		return TierHigh
	case ColorYellow:
		return TierCaution
	default:
		return TierSafe
	}
}

// GeoLog reports whether the address matches what maps show for it.
type GeoLog struct {
	Status  string `json:"status"`
	Details string `json:"details"`
}

// PriceLog reports price anomalies relative to the area median.
type PriceLog struct {
	Status  string `json:"status"`
	Details string `json:"details"`
}

// TextLog reports suspicious phrasing in the description.
type TextLog struct {
	Status        string   `json:"status"`
	Details       string   `json:"details"`
	KeywordsFound []string `json:"keywordsFound"`
}

// PhotoLog reports photo authenticity on a 1-10 scale.
type PhotoLog struct {
	IntegrityScore int    `json:"integrityScore"`
	Details        string `json:"details"`
}

// OwnershipLog reports whether the claimed owner is plausible.
type OwnershipLog struct {
	Status  string `json:"status"`
	Details string `json:"details"`
}

// DocumentCheckResult is the outcome of a reverse-image document check.
type DocumentCheckResult struct {
	Verdict string   `json:"verdict"`
	Details string   `json:"details"`
	Sources []string `json:"sources,omitempty"`
}

// GeoDetails is the best-effort address for a coordinate pair.
type GeoDetails struct {
	Address   string `json:"address"`
	OwnerName string `json:"ownerName"`
}

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn is one message in a conversation history.
type ChatTurn struct {
	Role    string `json:"role"`
	Text    string `json:"text"`
	IsError bool   `json:"isError,omitempty"`
}

// ErrorTurn is the synthetic assistant reply shown when a chat stream fails.
func ErrorTurn() ChatTurn {
	return ChatTurn{
		Role:    RoleAssistant,
		Text:    "Sorry, I encountered an error. Please try again.",
		IsError: true,
	}
}
