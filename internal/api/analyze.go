package api

import (
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tenant-guardian/backend/internal/ai"
	"tenant-guardian/backend/internal/store"
)

func (s *Server) handleAnalyze(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.bodyLimit())

	var (
		input ai.ListingInput
		err   error
	)
	if c.ContentType() == "multipart/form-data" {
		input, err = s.listingFromForm(c)
	} else {
		var req AnalyzeRequest
		if err = c.ShouldBindJSON(&req); err == nil {
			input = req.toInput(languageFrom(c, req.Language))
		}
	}
	if err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}

	result, err := s.service.AnalyzeListing(c.Request.Context(), input)
	if err != nil {
		s.renderFailure(c, err)
		return
	}

	resp := AnalyzeResponse{RiskAssessment: result, Tier: result.Tier()}
	if s.history != nil {
		record, err := newAssessmentRecord(input, result)
		if err == nil {
			err = s.history.SaveAssessment(c.Request.Context(), record)
		}
		if err != nil {
			logrus.WithError(err).Warn("save assessment history")
		} else {
			resp.ID = record.ID
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listingFromForm(c *gin.Context) (ai.ListingInput, error) {
	input := ai.ListingInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Address:     c.PostForm("address"),
		OwnerName:   c.PostForm("ownerName"),
		Language:    languageFrom(c, c.PostForm("language")),
	}
	var err error
	if input.Price, err = parseNumber(c.PostForm("price"), "price"); err != nil {
		return input, err
	}
	if raw := strings.TrimSpace(c.PostForm("sqft")); raw != "" {
		if input.Sqft, err = parseNumber(raw, "sqft"); err != nil {
			return input, err
		}
	}
	if raw := strings.TrimSpace(c.PostForm("medianPrice")); raw != "" {
		median, err := parseNumber(raw, "medianPrice")
		if err != nil {
			return input, err
		}
		input.MedianPrice = &median
	}
	header, err := c.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		return input, nil
	}
	if err != nil {
		return input, err
	}
	photo, err := readFormImage(header)
	if err != nil {
		return input, err
	}
	input.Photo = photo
	return input, nil
}

func (s *Server) handleVerifyDocument(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.bodyLimit())

	header, err := c.FormFile("file")
	if err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("file is required: %w", err))
		return
	}
	image, err := readFormImage(header)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	result, err := s.service.VerifyDocument(c.Request.Context(), *image, languageFrom(c, c.PostForm("language")))
	if err != nil {
		s.renderFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleGeocode(c *gin.Context) {
	lat, err := parseCoordinate(c.Query("lat"), "lat", 90)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	lng, err := parseCoordinate(c.Query("lng"), "lng", 180)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, s.service.ResolveCoordinates(c.Request.Context(), lat, lng, languageFrom(c)))
}

func (s *Server) handleListAssessments(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusOK, AssessmentListResponse{Items: []AssessmentDTO{}})
		return
	}
	offset, limit := parsePage(c)
	rows, total, err := s.history.ListAssessments(c.Request.Context(), offset, limit)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	items := make([]AssessmentDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, toAssessmentDTO(row))
	}
	c.JSON(http.StatusOK, AssessmentListResponse{Items: items, Total: total})
}

func (s *Server) handleGetAssessment(c *gin.Context) {
	if s.history == nil {
		s.renderError(c, http.StatusNotFound, store.ErrNotFound)
		return
	}
	row, err := s.history.GetAssessment(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if errors.Is(err, store.ErrNotFound) {
		s.renderError(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	dto := toAssessmentDTO(*row)
	var result ai.RiskAssessment
	if err := row.Result(&result); err != nil {
		logrus.WithError(err).WithField("id", row.ID).Warn("decode stored assessment")
	} else {
		dto.Result = &result
	}
	c.JSON(http.StatusOK, dto)
}

// bodyLimit leaves room for base64 inflation of a JSON-embedded photo.
func (s *Server) bodyLimit() int64 {
	return s.maxUploadBytes*4/3 + 64<<10
}

func readFormImage(header *multipart.FileHeader) (*ai.Image, error) {
	if header == nil {
		return nil, errors.New("file header is nil")
	}
	src, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("file is empty")
	}
	mimeType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return &ai.Image{Data: data, MIMEType: mimeType}, nil
}

// parseCoordinate accepts a finite value within [-limit, limit].
func parseCoordinate(value, field string, limit float64) (float64, error) {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(parsed) || parsed < -limit || parsed > limit {
		return 0, fmt.Errorf("invalid %s: %s", field, value)
	}
	return parsed, nil
}

func parseNumber(value, field string) (float64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("%s is required", field)
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", field, err)
	}
	return parsed, nil
}
