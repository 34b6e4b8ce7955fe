package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aibutler/butler-api/internal/api/metrics"
	"github.com/aibutler/butler-api/internal/core/domain"
	"github.com/aibutler/butler-api/internal/core/ports"
)

type ConversationHandler struct {
	conversations ports.ConversationService
	metrics       *metrics.Metrics
}

func NewConversationHandler(conversations ports.ConversationService, m *metrics.Metrics) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, metrics: m}
}

type askRequest struct {
	Business string `json:"business" query:"business" form:"business" validate:"required,max=80"`
	Question string `json:"question" query:"question" form:"question" validate:"required,min=5,max=400"`
}

type askResponse struct {
	Answer         string           `json:"answer"`
	Passages       []domain.Passage `json:"passages"`
	ConversationID int64            `json:"conversation_id"`
}

type anonymousAskResponse struct {
	Answer string `json:"answer"`
}

type listConversationsQuery struct {
	Search string `query:"q"      validate:"max=400"`
	Offset int    `query:"offset" validate:"gte=0"`
	Limit  int    `query:"limit"  validate:"gte=0,lte=100"`
}

// Ask answers a question about a business using the FAQ index.
//
// @Summary      Ask a question (authenticated)
// @Description  Retrieves FAQ passages, generates an answer and stores the conversation.
// @Tags         conversations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      askRequest  true  "Business and question"
// @Success      200   {object}  askResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /ask [post]
func (h *ConversationHandler) Ask(c echo.Context) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}

	start := time.Now()
	req, err := bindAsk(c)
	if err != nil {
		h.metrics.ObserveAsk(metrics.ModeRAG, metrics.OutcomeInvalid, time.Since(start))
		return err
	}

	res, err := h.conversations.Ask(c.Request().Context(), ports.AskInput{
		Business:     req.Business,
		Question:     req.Question,
		Caller:       &identity,
		UseRetrieval: true,
	})
	h.metrics.ObserveAsk(metrics.ModeRAG, askOutcome(err), time.Since(start))
	if err != nil {
		return err
	}

	passages := res.Passages
	if passages == nil {
		passages = []domain.Passage{}
	}
	return c.JSON(http.StatusOK, askResponse{
		Answer:         res.Answer,
		Passages:       passages,
		ConversationID: res.Conversation.ID,
	})
}

// AskAnonymous answers a question without authentication using the built-in examples.
//
// @Summary      Ask a question (anonymous)
// @Tags         conversations
// @Produce      json
// @Param        business  query     string  true  "Business name"
// @Param        question  query     string  true  "Question"
// @Success      200  {object}  anonymousAskResponse
// @Failure      400  {object}  map[string]string
// @Failure      429  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /ask [get]
func (h *ConversationHandler) AskAnonymous(c echo.Context) error {
	start := time.Now()
	req, err := bindAsk(c)
	if err != nil {
		h.metrics.ObserveAsk(metrics.ModeAnonymous, metrics.OutcomeInvalid, time.Since(start))
		return err
	}

	res, err := h.conversations.Ask(c.Request().Context(), ports.AskInput{
		Business: req.Business,
		Question: req.Question,
	})
	h.metrics.ObserveAsk(metrics.ModeAnonymous, askOutcome(err), time.Since(start))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, anonymousAskResponse{Answer: res.Answer})
}

// List returns the caller's conversations, or every conversation for admins.
//
// @Summary      List conversations
// @Tags         conversations
// @Produce      json
// @Security     BearerAuth
// @Param        q       query     string  false  "Search question and answer text"
// @Param        offset  query     int     false  "Rows to skip"
// @Param        limit   query     int     false  "Max rows (default 20, max 100)"
// @Success      200     {array}   domain.Conversation
// @Failure      400     {object}  map[string]string
// @Failure      401     {object}  map[string]string
// @Router       /conversations [get]
func (h *ConversationHandler) List(c echo.Context) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}

	var q listConversationsQuery
	if err := bindAndValidate(c, &q); err != nil {
		return err
	}

	items, err := h.conversations.List(c.Request().Context(), ports.ListConversationsInput{
		Caller: identity,
		Search: strings.TrimSpace(q.Search),
		Page:   ports.Page{Offset: q.Offset, Limit: q.Limit},
	})
	if err != nil {
		return err
	}
	if items == nil {
		items = []*domain.Conversation{}
	}
	return c.JSON(http.StatusOK, items)
}

// Get returns one conversation visible to the caller.
//
// @Summary      Get a conversation
// @Tags         conversations
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Conversation ID"
// @Success      200  {object}  domain.Conversation
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /conversations/{id} [get]
func (h *ConversationHandler) Get(c echo.Context) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	conv, err := h.conversations.Get(c.Request().Context(), identity, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, conv)
}

// Delete removes a conversation.
//
// @Summary      Delete a conversation (admin)
// @Tags         conversations
// @Security     BearerAuth
// @Param        id   path  int  true  "Conversation ID"
// @Success      204
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /conversations/{id} [delete]
func (h *ConversationHandler) Delete(c echo.Context) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.conversations.Delete(c.Request().Context(), identity, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// bindAsk trims the business name before validating so blank names are rejected.
func bindAsk(c echo.Context) (askRequest, error) {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return req, echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	req.Business = strings.TrimSpace(req.Business)
	if err := c.Validate(&req); err != nil {
		return req, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return req, nil
}

func askOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return metrics.OutcomeUpstream
	case errors.Is(err, domain.ErrInvalidInput):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}
