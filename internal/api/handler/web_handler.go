package handler

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aibutler/butler-api/internal/api/metrics"
	"github.com/aibutler/butler-api/internal/core/domain"
	"github.com/aibutler/butler-api/internal/core/ports"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

// WebHandler serves a plain HTML form over the retrieval answering flow.
// Form questions carry no caller.
type WebHandler struct {
	conversations ports.ConversationService
	metrics       *metrics.Metrics
}

func NewWebHandler(conversations ports.ConversationService, m *metrics.Metrics) *WebHandler {
	return &WebHandler{conversations: conversations, metrics: m}
}

type pageData struct {
	Business string
	Question string
	Answer   string
	Error    string
}

// Form renders the empty question form.
//
// @Summary  Question form
// @Tags     web
// @Produce  html
// @Success  200
// @Router   /web [get]
func (h *WebHandler) Form(c echo.Context) error {
	return render(c, http.StatusOK, pageData{})
}

// Ask answers a submitted form and renders the answer below it. Failures are
// shown on the page instead of the JSON error envelope.
//
// @Summary  Ask from the question form
// @Tags     web
// @Accept   x-www-form-urlencoded
// @Produce  html
// @Param    business  formData  string  true  "Business name"
// @Param    question  formData  string  true  "Question"
// @Success  200
// @Failure  400
// @Failure  503
// @Router   /ask-web [post]
func (h *WebHandler) Ask(c echo.Context) error {
	start := time.Now()
	req, err := bindAsk(c)
	data := pageData{Business: req.Business, Question: req.Question}
	if err != nil {
		h.metrics.ObserveAsk(metrics.ModeRAG, metrics.OutcomeInvalid, time.Since(start))
		var he *echo.HTTPError
		if errors.As(err, &he) {
			data.Error, _ = he.Message.(string)
		}
		return render(c, http.StatusBadRequest, data)
	}

	res, err := h.conversations.Ask(c.Request().Context(), ports.AskInput{
		Business:     req.Business,
		Question:     req.Question,
		UseRetrieval: true,
	})
	h.metrics.ObserveAsk(metrics.ModeRAG, askOutcome(err), time.Since(start))
	switch {
	case err == nil:
		data.Answer = res.Answer
		return render(c, http.StatusOK, data)
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		data.Error = "The answering service is temporarily unavailable. Please try again."
		return render(c, http.StatusServiceUnavailable, data)
	case errors.Is(err, domain.ErrInvalidInput):
		data.Error = err.Error()
		return render(c, http.StatusBadRequest, data)
	default:
		return err
	}
}

func render(c echo.Context, code int, data pageData) error {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return err
	}
	return c.HTMLBlob(code, buf.Bytes())
}
