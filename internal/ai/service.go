package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"tenant-guardian/backend/internal/util"
)

// Service is the listing risk adapter: it builds prompts, calls the model and
// validates what comes back.
type Service struct {
	model    Model
	resolver Resolver
	inflight singleflight.Group
}

// NewService wires the adapter over a model transport. A nil model leaves
// analysis disabled while coordinate lookups still answer from the fallback.
func NewService(model Model) *Service {
	var primary Resolver
	if model != nil {
		primary = ModelResolver{Model: model}
	}
	return &Service{
		model:    model,
		resolver: WithFallback(primary, CoordinateFallback{}),
	}
}

// Enabled reports whether model-backed operations are available.
func (s *Service) Enabled() bool {
	return s != nil && s.model != nil && s.model.Enabled()
}

// AnalyzeListing requests a fraud-risk assessment for a listing. Identical
// submissions in flight at the same time share one model call.
func (s *Service) AnalyzeListing(ctx context.Context, input ListingInput) (RiskAssessment, error) {
	timer := util.StartTimer()
	if err := validateListing(input); err != nil {
		return RiskAssessment{}, s.fail(OpAnalyze, err, timer)
	}

	req := BuildListingRequest(input)
	detached := context.WithoutCancel(ctx)
	value, err, shared := s.inflight.Do(requestKey(req), func() (any, error) {
		raw, err := s.generate(detached, req)
		if err != nil {
			return nil, err
		}
		return ParseRiskAssessment(raw)
	})
	if err != nil {
		return RiskAssessment{}, s.fail(OpAnalyze, err, timer)
	}

	assessment := value.(RiskAssessment)
	logrus.WithFields(logrus.Fields{
		"op":          OpAnalyze,
		"risk_score":  assessment.RiskScore,
		"tier":        assessment.Tier(),
		"shared":      shared,
		"duration_ms": timer.ElapsedMs(),
	}).Info("listing analyzed")
	return assessment, nil
}

// VerifyDocument runs a reverse-image check on an uploaded document or photo.
func (s *Service) VerifyDocument(ctx context.Context, image Image, lang Language) (DocumentCheckResult, error) {
	timer := util.StartTimer()
	req, err := BuildDocumentRequest(image, lang)
	if err != nil {
		return DocumentCheckResult{}, s.fail(OpDocument, err, timer)
	}
	raw, err := s.generate(ctx, req)
	if err != nil {
		return DocumentCheckResult{}, s.fail(OpDocument, err, timer)
	}
	result, err := ParseDocumentCheck(raw)
	if err != nil {
		return DocumentCheckResult{}, s.fail(OpDocument, err, timer)
	}
	logrus.WithFields(logrus.Fields{
		"op":          OpDocument,
		"verdict":     result.Verdict,
		"sources":     len(result.Sources),
		"duration_ms": timer.ElapsedMs(),
	}).Info("document verified")
	return result, nil
}

// ResolveCoordinates returns the address for a map click. It never fails: any
// lookup error yields the coordinates formatted as the address.
func (s *Service) ResolveCoordinates(ctx context.Context, lat, lng float64, lang Language) GeoDetails {
	details, err := s.resolver.Resolve(ctx, lat, lng, lang)
	if err != nil {
		details, _ = CoordinateFallback{}.Resolve(ctx, lat, lng, lang)
	}
	return details
}

// Chat sends the next message with the caller's history and streams the reply.
// The caller owns the history and appends the collected reply itself.
func (s *Service) Chat(ctx context.Context, message string, history []ChatTurn, lang Language) (*Stream, error) {
	timer := util.StartTimer()
	if strings.TrimSpace(message) == "" {
		return nil, s.fail(OpChat, fmt.Errorf("%w: message is empty", ErrInvalidInput), timer)
	}
	if !s.Enabled() {
		return nil, s.fail(OpChat, ErrDisabled, timer)
	}
	stream, err := s.model.Stream(ctx, BuildChatRequest(message, history, lang))
	if err != nil {
		return nil, s.fail(OpChat, err, timer)
	}
	return stream, nil
}

func (s *Service) generate(ctx context.Context, req Request) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}
	raw, err := s.model.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(raw) == "" {
		return "", ErrEmptyResponse
	}
	return raw, nil
}

func (s *Service) fail(op string, err error, timer util.Timer) *Failure {
	failure := newFailure(op, err)
	logrus.WithError(err).WithFields(logrus.Fields{
		"op":          op,
		"cause":       failure.Cause.String(),
		"duration_ms": timer.ElapsedMs(),
	}).Warn("ai request failed")
	return failure
}

func validateListing(input ListingInput) error {
	switch {
	case strings.TrimSpace(input.Address) == "":
		return fmt.Errorf("%w: address is required", ErrInvalidInput)
	case strings.TrimSpace(input.Description) == "":
		return fmt.Errorf("%w: description is required", ErrInvalidInput)
	case input.Price <= 0:
		return fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	case input.Sqft < 0:
		return fmt.Errorf("%w: sqft must not be negative", ErrInvalidInput)
	case input.MedianPrice != nil && *input.MedianPrice <= 0:
		return fmt.Errorf("%w: median price must be positive when given", ErrInvalidInput)
	case input.Photo != nil && len(input.Photo.Data) > 0 && !input.Photo.Present():
		return fmt.Errorf("%w: photo media type is required", ErrInvalidInput)
	}
	return nil
}

func requestKey(req Request) string {
	hash := sha256.New()
	for _, part := range req.Parts {
		hash.Write([]byte(part.Text))
		hash.Write([]byte{0})
		hash.Write([]byte(part.MIMEType))
		hash.Write([]byte{0})
		hash.Write(part.Data)
		hash.Write([]byte{1})
	}
	for _, tool := range req.Tools {
		hash.Write([]byte(tool))
		hash.Write([]byte{2})
	}
	return hex.EncodeToString(hash.Sum(nil))
}
