package api

import (
	"time"

	"tenant-guardian/backend/internal/ai"
	"tenant-guardian/backend/internal/state"
	"tenant-guardian/backend/internal/store"
)

// LoginRequest carries demo account credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest creates the local profile and signs in.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// GoogleLoginRequest picks one of the mock social accounts.
type GoogleLoginRequest struct {
	Email string `json:"email"`
}

// GoogleAccount is a selectable mock social account.
type GoogleAccount struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

var mockGoogleAccounts = []GoogleAccount{
	{Name: "Alex Google", Email: "alex.google@gmail.com"},
	{Name: "Sarah Tenant", Email: "sarah.tenant@gmail.com"},
	{Name: "Rahul Sharma", Email: "rahul.s@gmail.com"},
}

// AuthStatus reports the sign-in flag with the profile when signed in.
type AuthStatus struct {
	Authenticated bool           `json:"authenticated"`
	Profile       *state.Profile `json:"profile,omitempty"`
}

// ProfileResponse is the profile with its completion percentage.
type ProfileResponse struct {
	state.Profile
	Completion int `json:"completion"`
}

// ImagePayload is a base64 image sent inside a JSON body.
type ImagePayload struct {
	Data     []byte `json:"data"`
	MIMEType string `json:"mimeType"`
}

// AnalyzeRequest is the JSON form of a listing submission.
type AnalyzeRequest struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Address     string        `json:"address"`
	Price       float64       `json:"price"`
	Sqft        float64       `json:"sqft"`
	MedianPrice *float64      `json:"medianPrice"`
	OwnerName   string        `json:"ownerName"`
	Language    string        `json:"language"`
	Photo       *ImagePayload `json:"photo"`
}

func (r AnalyzeRequest) toInput(lang ai.Language) ai.ListingInput {
	input := ai.ListingInput{
		Title:       r.Title,
		Description: r.Description,
		Address:     r.Address,
		Price:       r.Price,
		Sqft:        r.Sqft,
		MedianPrice: r.MedianPrice,
		OwnerName:   r.OwnerName,
		Language:    lang,
	}
	if r.Photo != nil && len(r.Photo.Data) > 0 {
		input.Photo = &ai.Image{Data: r.Photo.Data, MIMEType: r.Photo.MIMEType}
	}
	return input
}

// AnalyzeResponse is the validated assessment plus its tier and history id.
type AnalyzeResponse struct {
	ai.RiskAssessment
	ID   string  `json:"id,omitempty"`
	Tier ai.Tier `json:"tier"`
}

// AssessmentDTO is the API representation for a stored assessment.
type AssessmentDTO struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Address      string             `json:"address"`
	Price        float64            `json:"price"`
	Language     string             `json:"language"`
	RiskScore    int                `json:"riskScore"`
	Verdict      string             `json:"verdict"`
	VerdictColor string             `json:"verdictColor"`
	Tier         string             `json:"tier"`
	CreatedAt    time.Time          `json:"createdAt"`
	Result       *ai.RiskAssessment `json:"result,omitempty"`
}

// AssessmentListResponse holds one page of history with the total.
type AssessmentListResponse struct {
	Items []AssessmentDTO `json:"items"`
	Total int64           `json:"total"`
}

func toAssessmentDTO(row store.Assessment) AssessmentDTO {
	return AssessmentDTO{
		ID:           row.ID,
		Title:        row.Title,
		Address:      row.Address,
		Price:        row.Price,
		Language:     row.Language,
		RiskScore:    row.RiskScore,
		Verdict:      row.Verdict,
		VerdictColor: row.VerdictColor,
		Tier:         row.Tier,
		CreatedAt:    row.CreatedAt,
	}
}

func newAssessmentRecord(input ai.ListingInput, result ai.RiskAssessment) (*store.Assessment, error) {
	record := &store.Assessment{
		Title:        input.Title,
		Address:      input.Address,
		Price:        input.Price,
		Language:     string(input.Language),
		RiskScore:    result.RiskScore,
		Verdict:      result.Verdict,
		VerdictColor: result.VerdictColor,
		Tier:         string(result.Tier()),
	}
	if err := record.SetResult(result); err != nil {
		return nil, err
	}
	return record, nil
}

// ChatRequest is one chat message with the history the client holds.
type ChatRequest struct {
	Message  string        `json:"message"`
	History  []ai.ChatTurn `json:"history"`
	Language string        `json:"language"`
}

// ChatEvent is a websocket chat payload.
type ChatEvent struct {
	Type      string       `json:"type"`
	SessionID string       `json:"session_id"`
	Text      string       `json:"text,omitempty"`
	Turn      *ai.ChatTurn `json:"turn,omitempty"`
	Message   string       `json:"message,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}
