package ai

import (
	"fmt"
	"strconv"
	"strings"
)

const listingInstruction = `You are Tenant Guardian, a multimodal rental scam detector working on behalf of tenants.

Assess the rental listing below for fraud risk. Use the Google Search and Google Maps tools for every check.

CHECKS:
1. ADDRESS: confirm the address exists on the map and that the surroundings fit the listing (a "cozy apartment" in an industrial zone or warehouse is a mismatch).
2. PRICE: compare the monthly price against the floor area and the median price for the area. Flag listings more than 30%% below market as too good to be true, and flag listings more than 30%% above market as an anomaly.
3. PHOTO: check that the photo fits the location (architecture, season, geotag clues). Look for stock imagery or watermarks from other sites.
4. LANDLORD: search the claimed owner name together with the address for business records, ownership data or scam complaints. Flag generic names such as "Private Owner" on corporately owned property.
5. DESCRIPTION: detect text copied from legitimate listings and pressure tactics ("urgent", "wire transfer only", "owner abroad").

OUTPUT:
Reply with one raw JSON object and nothing else. Do not wrap it in markdown code fences.
Every text field (summary, details, actionableSteps) must be written in %[1]s.

{
  "riskScore": number 0-100 (100 = almost certainly a scam),
  "verdict": "HIGH RISK" | "CAUTION" | "SAFE",
  "verdictColor": "RED" | "YELLOW" | "GREEN",
  "summary": string in %[1]s, formatted "RISK: [level]. FLAGS: [main flags]. VERIFIED: [verified items].",
  "geoLog": {"status": "PASS" | "FAIL" | "UNKNOWN", "details": string in %[1]s},
  "priceLog": {"status": "HIGH_RISK" | "MODERATE_RISK" | "LOW_RISK", "details": string in %[1]s},
  "textLog": {"status": "DETECTED" | "CLEAR", "details": string in %[1]s, "keywordsFound": [string]},
  "photoLog": {"integrityScore": number 1-10 (10 = authentic, 1 = fake), "details": string in %[1]s},
  "ownershipLog": {"status": "PLAUSIBLE" | "SUSPICIOUS" | "UNKNOWN", "details": string in %[1]s},
  "actionableSteps": [3 to 5 concrete steps for the tenant, in %[1]s]
}
`

const documentInstruction = `You are Check.AI, a document verification engine.

Examine the attached image. Use Google Search to find whether this exact image is published anywhere on the public internet.

1. Identify what the image is (lease agreement, ID card, house photo, stock photo).
2. Check for copies on stock photo sites, other real estate listings or public templates.
3. Decide a verdict:
   - found on stock sites: "STOLEN/STOCK PHOTO"
   - found on other listings: "DUPLICATE LISTING"
   - not found anywhere: "UNIQUE/ORIGINAL"

Reply with one raw JSON object and no markdown:
{
  "verdict": string,
  "details": string in %[1]s,
  "sources": [url strings where copies were found, omit when none]
}
`

const geocodeInstruction = `A location was picked at latitude %[1]s, longitude %[2]s.

Use Google Maps and Google Search to:
1. Find the full postal address of this exact point.
2. Name the building, apartment complex or business at this spot (for example "Prestige Tech Park", "Sunshine Apartments", "McDonald's"). For a private house, give its known house name if there is one.

Reply with one raw JSON object and no markdown:
{
  "address": "full postal address in %[3]s",
  "ownerName": "building, complex or business name, or an empty string when unknown"
}
`

const chatInstruction = "You are Tenant Guardian's assistant. You help renters understand rental law, spot red flags in listings and stay safe while searching for a home. Be helpful, concise and safety-oriented. The user has chosen %[1]s; always reply in %[1]s."

const (
	medianUnknown = "Unknown (Estimate based on location)"
	ownerUnknown  = "Not provided"
	currency      = "₹"
)

// BuildListingRequest renders the analysis prompt for a listing.
func BuildListingRequest(input ListingInput) Request {
	lang := ParseLanguage(string(input.Language))

	parts := []Part{
		{Text: fmt.Sprintf(listingInstruction, lang)},
		{Text: buildListingData(input, lang)},
	}
	if input.Photo.Present() {
		parts = append(parts, Part{Data: input.Photo.Data, MIMEType: strings.TrimSpace(input.Photo.MIMEType)})
	}

	return Request{
		Parts: parts,
		Tools: []Tool{ToolWebSearch, ToolMapLookup},
	}
}

func buildListingData(input ListingInput, lang Language) string {
	builder := &strings.Builder{}
	fmt.Fprintf(builder, "ANALYZE THIS LISTING (%s):\n", lang)
	fmt.Fprintf(builder, "- Title: %s\n", input.Title)
	fmt.Fprintf(builder, "- Address: %s\n", input.Address)
	fmt.Fprintf(builder, "- Listed Price: %s%s\n", currency, formatNumber(input.Price))
	if input.MedianPrice != nil {
		fmt.Fprintf(builder, "- Median Area Price: %s%s\n", currency, formatNumber(*input.MedianPrice))
	} else {
		fmt.Fprintf(builder, "- Median Area Price: %s\n", medianUnknown)
	}
	fmt.Fprintf(builder, "- Sqft: %s\n", formatNumber(input.Sqft))
	owner := input.OwnerName
	if strings.TrimSpace(owner) == "" {
		owner = ownerUnknown
	}
	fmt.Fprintf(builder, "- Landlord/Owner Name Claimed: %s\n", owner)
	fmt.Fprintf(builder, "- Description: \"%s\"\n", input.Description)
	return builder.String()
}

// BuildDocumentRequest renders the reverse-image check prompt.
func BuildDocumentRequest(image Image, lang Language) (Request, error) {
	if !image.Present() {
		return Request{}, ErrMissingImage
	}
	lang = ParseLanguage(string(lang))
	return Request{
		Parts: []Part{
			{Text: fmt.Sprintf(documentInstruction, lang)},
			{Data: image.Data, MIMEType: strings.TrimSpace(image.MIMEType)},
		},
		Tools: []Tool{ToolWebSearch},
	}, nil
}

// BuildGeocodeRequest renders the coordinate lookup prompt.
func BuildGeocodeRequest(lat, lng float64, lang Language) Request {
	lang = ParseLanguage(string(lang))
	return Request{
		Parts: []Part{
			{Text: fmt.Sprintf(geocodeInstruction, formatNumber(lat), formatNumber(lng), lang)},
		},
		Tools: []Tool{ToolWebSearch, ToolMapLookup},
	}
}

// BuildChatRequest renders one chat turn with the caller's prior history.
func BuildChatRequest(message string, history []ChatTurn, lang Language) Request {
	lang = ParseLanguage(string(lang))
	prior := make([]ChatTurn, 0, len(history))
	for _, turn := range history {
		if turn.IsError || strings.TrimSpace(turn.Text) == "" {
			continue
		}
		prior = append(prior, turn)
	}
	return Request{
		Parts:             []Part{{Text: message}},
		SystemInstruction: fmt.Sprintf(chatInstruction, lang),
		History:           prior,
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
