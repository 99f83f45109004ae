// Package api exposes the bridge's HTTP surface: the status probe and the
// three print endpoints a browser-based POS client calls. Every response
// shares one schema, and a request that reaches the retry coordinator
// eventually answers 200 unless one of its commands cannot be encoded —
// the coordinator never surfaces a printer error to this layer.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	apperr "github.com/reika/escpos-bridge/internal/errors"
	"github.com/reika/escpos-bridge/internal/escpos"
)

const offlineMessage = "The thermal printer is either not plugged in, or is in a not ready state."

// PrintEngine is the subset of retry.Engine the HTTP layer depends on.
// Handlers never touch usbtransport or the retry loop directly, so tests
// can substitute a fake engine without a USB stack.
type PrintEngine interface {
	Execute(ctx context.Context, commands []escpos.Command) error
	ExecuteReprint(ctx context.Context, commands []escpos.Command) error
	ExecuteTest(ctx context.Context, testPage bool, testLine string) error
	CheckConnection(ctx context.Context) bool
}

// response is the single JSON shape every endpoint answers with.
type response struct {
	IsConnected bool   `json:"is_connected"`
	Error       string `json:"error,omitempty"`
}

// Handlers holds the dependencies the print endpoints dispatch to.
type Handlers struct {
	engine PrintEngine
}

// NewHandlers returns a Handlers bound to engine.
func NewHandlers(engine PrintEngine) *Handlers {
	return &Handlers{engine: engine}
}

// GetPrintTest answers GET /print/test: a health probe that writes only an
// Init to the printer and never retries or reconnects. It always answers 200; printer
// health travels in the body, not the status code.
func (h *Handlers) GetPrintTest(c *gin.Context) {
	if h.engine.CheckConnection(c.Request.Context()) {
		c.JSON(http.StatusOK, response{IsConnected: true})
		return
	}
	c.JSON(http.StatusOK, response{IsConnected: false, Error: offlineMessage})
}

type printTestRequest struct {
	TestLine string `json:"test_line"`
	TestPage bool   `json:"test_page"`
}

// PostPrintTest answers POST /print/test: prints a diagnostic page, a
// caller-supplied line, or both, retrying internally until it succeeds.
func (h *Handlers) PostPrintTest(c *gin.Context) {
	var req printTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, apperr.InvalidInput("malformed request body: %v", err))
		return
	}

	if err := h.engine.ExecuteTest(c.Request.Context(), req.TestPage, req.TestLine); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response{IsConnected: true})
}

type printRequest struct {
	Commands []escpos.Command `json:"commands"`
}

// PostPrint answers POST /print: validates the command list, then hands it
// to the retry coordinator. A malformed command in the list fails the bind
// and the whole request is rejected before anything reaches the printer.
// A command whose parameters parse but cannot be encoded (e.g. an
// out-of-range Size) is rejected with 400 when the job reaches it; the
// commands before it have already been sent.
func (h *Handlers) PostPrint(c *gin.Context) {
	var req printRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, apperr.InvalidInput("%v", err))
		return
	}

	if err := h.engine.Execute(c.Request.Context(), req.Commands); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response{IsConnected: true})
}

// PostPrintReprint answers POST /print/reprint: same validation as
// PostPrint, but the command list is run through the marker injector
// before it reaches the retry coordinator, and the event is not logged as
// a new transaction.
func (h *Handlers) PostPrintReprint(c *gin.Context) {
	var req printRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, apperr.InvalidInput("%v", err))
		return
	}

	if err := h.engine.ExecuteReprint(c.Request.Context(), req.Commands); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response{IsConnected: true})
}

func respondInvalid(c *gin.Context, err *apperr.AppError) {
	c.JSON(http.StatusBadRequest, response{IsConnected: false, Error: err.Error()})
}

// respondError maps any error surfaced past bind-time to its HTTP status.
// In practice h.engine never returns a KindPrinter error here (the retry
// coordinator absorbs those), so this fires for KindInvalidInput (a
// command that cannot be encoded, answered 400) and for KindInternal or a
// non-AppError such as a canceled context (answered 500).
func respondError(c *gin.Context, err error) {
	appErr, ok := err.(*apperr.AppError)
	if !ok {
		c.JSON(http.StatusInternalServerError, response{IsConnected: false, Error: err.Error()})
		return
	}
	c.JSON(appErr.HTTPStatus(), response{IsConnected: false, Error: appErr.Error()})
}
