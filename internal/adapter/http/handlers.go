package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/outlive-sh/outlive/internal/domain"
	"github.com/outlive-sh/outlive/internal/domain/bounty"
	"github.com/outlive-sh/outlive/internal/domain/tool"
	"github.com/outlive-sh/outlive/internal/port/database"
	"github.com/outlive-sh/outlive/internal/service"
)

const defaultTurnLimit = 20

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Loop     *service.LoopService
	Tools    *service.ToolService
	Scraper  *service.ScraperService
	Contexts *service.ContextService
	Store    database.Store
}

// GetStatus returns the agent's current status snapshot.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Loop.Status(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// ListTurns returns the most recent turns, newest last.
func (h *Handlers) ListTurns(w http.ResponseWriter, r *http.Request) {
	limit := defaultTurnLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 200")
			return
		}
		limit = n
	}

	turns, err := h.Store.GetRecentTurns(r.Context(), limit)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turns)
}

type manualTurnRequest struct {
	Input string `json:"input"`
}

// ExecuteTurn triggers one decision cycle. An optional input seeds the cycle
// as an operator request.
func (h *Handlers) ExecuteTurn(w http.ResponseWriter, r *http.Request) {
	var input string
	if r.ContentLength > 0 {
		req, ok := readJSON[manualTurnRequest](w, r)
		if !ok {
			return
		}
		input = req.Input
	}

	var err error
	var t any
	if input == "" {
		t, err = h.Loop.ExecuteTurn(r.Context())
	} else {
		t, err = h.Loop.ExecuteManualTurn(r.Context(), input)
	}
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ListBounties returns stored bounties, optionally filtered by status.
func (h *Handlers) ListBounties(w http.ResponseWriter, r *http.Request) {
	var filter database.BountyFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := bounty.Status(raw)
		switch status {
		case bounty.StatusOpen, bounty.StatusClaimed, bounty.StatusSubmitted, bounty.StatusCompleted:
			filter.Status = &status
		default:
			writeError(w, http.StatusBadRequest, "unknown bounty status")
			return
		}
	}

	bounties, err := h.Store.GetBounties(r.Context(), filter)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if bounties == nil {
		bounties = []bounty.Bounty{}
	}
	writeJSON(w, http.StatusOK, bounties)
}

// GetBounty returns one bounty by id.
func (h *Handlers) GetBounty(w http.ResponseWriter, r *http.Request) {
	b, err := h.Store.GetBounty(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "bounty not found")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ScanBounties runs a discovery pass across all configured sources.
func (h *Handlers) ScanBounties(w http.ResponseWriter, r *http.Request) {
	result, err := h.Scraper.ScanAll(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type toolRequest struct {
	Input string `json:"input"`
}

type toolResponse struct {
	Tool   string `json:"tool"`
	Output string `json:"output"`
}

// ExecuteTool dispatches one named tool with the current tier's capabilities.
// Tools the tier does not allow return 403.
func (h *Handlers) ExecuteTool(w http.ResponseWriter, r *http.Request) {
	name := urlParam(r, "name")

	var input string
	if r.ContentLength > 0 {
		req, ok := readJSON[toolRequest](w, r)
		if !ok {
			return
		}
		input = req.Input
	}

	ac := h.Contexts.Build(r.Context())
	output, err := h.Tools.Dispatch(r.Context(), tool.Call{Name: tool.Name(name), Input: input}, ac.Capabilities)
	if err != nil {
		switch {
		case strings.Contains(err.Error(), "unknown tool"):
			writeError(w, http.StatusNotFound, "unknown tool")
		case errors.Is(err, domain.ErrCapabilityDenied):
			writeError(w, http.StatusForbidden, err.Error())
		default:
			// Tool failures are operator-visible outcomes, not server faults.
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, toolResponse{Tool: name, Output: output})
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
