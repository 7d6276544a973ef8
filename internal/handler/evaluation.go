package handler

import (
	"errors"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/ieltsgo/agent/internal/auth"
	"github.com/ieltsgo/agent/internal/recorder"
	"github.com/ieltsgo/agent/internal/service"
	"github.com/ieltsgo/agent/pkg/response"
)

const maxAudioSize = 50 * 1024 * 1024 // 50MB

// EvaluationHandler exposes the AI submission workflow to the local UI.
type EvaluationHandler struct {
	service   *service.EvaluationService
	rec       *recorder.Recorder
	validator *validator.Validate
	token     string
}

func NewEvaluationHandler(svc *service.EvaluationService, rec *recorder.Recorder, v *validator.Validate, token string) *EvaluationHandler {
	return &EvaluationHandler{
		service:   svc,
		rec:       rec,
		validator: v,
		token:     token,
	}
}

type submitWritingRequest struct {
	ExerciseID       string `json:"exerciseId" validate:"required"`
	SubmissionID     string `json:"submissionId"`
	EssayText        string `json:"essayText" validate:"required"`
	TimeSpentSeconds int    `json:"timeSpentSeconds"`
}

// SubmitWriting handles POST /api/evaluations/writing
func (h *EvaluationHandler) SubmitWriting(c *fiber.Ctx) error {
	var req submitWritingRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, err.Error(), nil)
	}
	if err := auth.CheckUsable(h.token); err != nil {
		return response.PermissionError(c, err.Error())
	}

	job, err := h.service.SubmitWriting(c.Context(), &service.SubmitWritingInput{
		ExerciseID:       req.ExerciseID,
		SubmissionID:     req.SubmissionID,
		EssayText:        req.EssayText,
		TimeSpentSeconds: req.TimeSpentSeconds,
	})
	if err != nil {
		return evaluationError(c, err)
	}
	return response.Accepted(c, job)
}

// SubmitSpeaking handles POST /api/evaluations/speaking. The audio comes as
// the audio_file multipart part or, when absent, from the recorder's
// finalized artifact.
func (h *EvaluationHandler) SubmitSpeaking(c *fiber.Ctx) error {
	exerciseID := c.FormValue("exerciseId")
	if exerciseID == "" {
		return response.ValidationError(c, "exerciseId is required", nil)
	}
	submissionID := c.FormValue("submissionId")

	if err := auth.CheckUsable(h.token); err != nil {
		return response.PermissionError(c, err.Error())
	}

	in := &service.SubmitSpeakingInput{
		ExerciseID:   exerciseID,
		SubmissionID: submissionID,
	}

	if file, err := c.FormFile("audio_file"); err == nil {
		if file.Size > maxAudioSize {
			return response.ValidationError(c, "audio file exceeds 50MB limit", fiber.Map{"fileSize": file.Size})
		}
		f, err := file.Open()
		if err != nil {
			return response.ServiceError(c, "failed to open audio file")
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return response.ServiceError(c, "failed to read audio file")
		}
		in.Audio = data
		in.Filename = file.Filename
		in.ContentType = file.Header.Get("Content-Type")
	} else if artifact := h.rec.Artifact(); artifact != nil {
		in.Audio = artifact.Data
		in.Filename = "answer" + extensionFor(artifact.MIMEType)
		in.ContentType = artifact.MIMEType
		in.DurationSeconds = int(artifact.Duration.Seconds())
	}

	job, err := h.service.SubmitSpeaking(c.Context(), in)
	if err != nil {
		return evaluationError(c, err)
	}
	return response.Accepted(c, job)
}

// Status handles GET /api/evaluations/:jobId
func (h *EvaluationHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	job, ok := h.service.Job(jobID)
	if !ok {
		return response.NotFound(c, "unknown evaluation job")
	}
	return response.OK(c, job)
}

func evaluationError(c *fiber.Ctx, err error) error {
	var vErr *service.ValidationError
	if errors.As(err, &vErr) {
		return response.ValidationError(c, vErr.Message, nil)
	}
	var sErr *service.SubmissionError
	if errors.As(err, &sErr) {
		return response.SubmissionError(c, sErr.Error())
	}
	return response.ServiceError(c, err.Error())
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/ogg":
		return ".ogg"
	default:
		return ".webm"
	}
}
