// Package public wires the speech inference routes onto the Fiber app.
package public

import (
	"errors"
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/podcraft/speech-gateway/internal/app"
	"github.com/podcraft/speech-gateway/internal/httpserver/httputil"
	"github.com/podcraft/speech-gateway/internal/limits"
	"github.com/podcraft/speech-gateway/internal/pipeline"
)

// Register wires up the public speech API routes.
func Register(fiberApp *fiber.App, container *app.Container) {
	h := &speechHandler{container: container}
	limit := rateLimit(container)
	fiberApp.Post("/transcribe", limit, h.transcribe)
	fiberApp.Post("/align", limit, h.align)
	fiberApp.Post("/synthesize", limit, h.synthesize)
	fiberApp.Post("/assess-quality", limit, h.assessQuality)
}

type speechHandler struct {
	container *app.Container
}

// rateLimit enforces the optional per-client requests-per-minute bound
// before any pipeline work starts. Redis trouble fails open.
func rateLimit(container *app.Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := container.RateLimiter.Allow(c.UserContext(), c.IP())
		if err == nil {
			return c.Next()
		}
		if errors.Is(err, limits.ErrLimitExceeded) {
			return httputil.WriteError(c, fiber.StatusTooManyRequests, "rate limit exceeded")
		}
		container.Logger.Warn("rate limiter unavailable", "error", err)
		return c.Next()
	}
}

func writePipelineError(c *fiber.Ctx, perr *pipeline.Error) error {
	status := fiber.StatusInternalServerError
	switch perr.Class {
	case pipeline.ClassInput:
		status = fiber.StatusBadRequest
	case pipeline.ClassInfrastructure, pipeline.ClassQueueTimeout:
		status = fiber.StatusServiceUnavailable
	case pipeline.ClassOutput:
		status = fiber.StatusBadGateway
	}
	return httputil.WriteError(c, status, perr.ClientMessage())
}

func openUpload(c *fiber.Ctx, field string) (multipart.File, string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, "", fmt.Errorf("%s is required", field)
	}
	src, err := fh.Open()
	if err != nil {
		return nil, "", fmt.Errorf("failed to open %s", field)
	}
	return src, fh.Filename, nil
}

func (h *speechHandler) transcribe(c *fiber.Ctx) error {
	src, filename, err := openUpload(c, "file")
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, err.Error())
	}
	defer src.Close()

	resp, perr := h.container.Pipeline.Transcribe(c.UserContext(), pipeline.TranscribeRequest{
		Upload:   src,
		Filename: filename,
		Language: c.FormValue("language"),
	})
	if perr != nil {
		return writePipelineError(c, perr)
	}
	return c.JSON(resp)
}

func (h *speechHandler) align(c *fiber.Ctx) error {
	src, filename, err := openUpload(c, "file")
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, err.Error())
	}
	defer src.Close()

	resp, perr := h.container.Pipeline.Align(c.UserContext(), pipeline.AlignRequest{
		Upload:   src,
		Filename: filename,
		Text:     c.FormValue("text"),
		Language: c.FormValue("language"),
	})
	if perr != nil {
		return writePipelineError(c, perr)
	}
	return c.JSON(resp)
}

func (h *speechHandler) synthesize(c *fiber.Ctx) error {
	src, filename, err := openUpload(c, "reference_audio")
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, err.Error())
	}
	defer src.Close()

	res, perr := h.container.Pipeline.Synthesize(c.UserContext(), pipeline.SynthesizeRequest{
		Text:              c.FormValue("text"),
		ReferenceAudio:    src,
		ReferenceFilename: filename,
		ReferenceText:     c.FormValue("reference_text"),
		Language:          c.FormValue("language"),
	})
	if perr != nil {
		return writePipelineError(c, perr)
	}

	c.Set("Content-Type", "audio/wav")
	c.Set("X-Inference-Time-Seconds", formatFloat(res.InferenceTimeSeconds))
	c.Set("X-Audio-Duration-Seconds", formatFloat(res.AudioDurationSeconds))
	c.Set("X-Model-Used", res.ModelUsed)
	if res.PeakMemoryGB != nil {
		c.Set("X-Peak-Memory-GB", formatFloat(*res.PeakMemoryGB))
	}
	if res.DeltaMemoryGB != nil {
		c.Set("X-Delta-Memory-GB", formatFloat(*res.DeltaMemoryGB))
	}
	return c.Send(res.WAV)
}

func (h *speechHandler) assessQuality(c *fiber.Ctx) error {
	src, filename, err := openUpload(c, "file")
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, err.Error())
	}
	defer src.Close()

	window, err := optionalFloat(c, "window_seconds")
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, err.Error())
	}
	minWindow, err := optionalFloat(c, "min_window_seconds")
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, err.Error())
	}

	resp, perr := h.container.Pipeline.AssessQuality(c.UserContext(), pipeline.QualityRequest{
		Upload:           src,
		Filename:         filename,
		WindowSeconds:    window,
		MinWindowSeconds: minWindow,
	})
	if perr != nil {
		return writePipelineError(c, perr)
	}
	return c.JSON(resp)
}

func optionalFloat(c *fiber.Ctx, field string) (*float64, error) {
	raw := strings.TrimSpace(c.FormValue(field))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", field)
	}
	return &v, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
