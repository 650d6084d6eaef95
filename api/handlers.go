/*
handlers.go - HTTP API handlers for the contract engine

PURPOSE:
  Exposes the contract lifecycle and the two simulators over REST.
  Handles HTTP request/response, JSON serialization, and delegates to
  the contracts service. No business arithmetic happens here.

ENDPOINTS:
  Simulations:
    POST   /api/simulations/savings         Savings schedule (nothing persisted)
    POST   /api/simulations/credit          Amortization schedule

  Contracts:
    POST   /api/contracts                   Create contract (DRAFT)
    GET    /api/contracts/{id}              Contract with refreshed status
    GET    /api/contracts/{id}/schedule     Authoritative schedule
    GET    /api/contracts/{id}/payments     Payment ledger
    POST   /api/contracts/{id}/payments     Record installment
    POST   /api/contracts/{id}/withdrawal   Request early withdrawal
    GET    /api/contracts/{id}/refunds      Refunds for the contract
    POST   /api/contracts/{id}/refunds      Compute and record a refund
    POST   /api/contracts/{id}/rescind      Rescind a defaulted contract

  Refunds:
    POST   /api/refunds/{id}/settle         Mark payout disbursed

  Members:
    GET    /api/members/{id}/contracts      Contracts of a member

  Settings:
    GET    /api/settings?caisse_type=...    List versions
    POST   /api/settings                    Create inactive version (JSON table)
    POST   /api/settings/{id}/activate      Atomic activation

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Contract/settings/refund not found
  - 409: Duplicate installment
  - 422: No active settings (creation blocked)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mutuelle/caisse-engine/contracts"
	"github.com/mutuelle/caisse-engine/engine"
	"github.com/mutuelle/caisse-engine/factory"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds the service the HTTP layer delegates to.
type Handler struct {
	Service *contracts.Service
}

// NewHandler creates a handler around the contracts service.
func NewHandler(svc *contracts.Service) *Handler {
	return &Handler{Service: svc}
}

// =============================================================================
// SIMULATION HANDLERS
// =============================================================================

// SimulateSavings builds a projected savings schedule. Nothing is
// persisted; a missing settings record still yields a zero-bonus table
// with no_active_settings set.
func (h *Handler) SimulateSavings(w http.ResponseWriter, r *http.Request) {
	var req simulateSavingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid simulation input", err)
		return
	}

	schedule, err := h.Service.Simulate(r.Context(), in)
	if err != nil {
		writeDomainError(w, "Failed to simulate schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleDTO(schedule))
}

// SimulateCredit builds a declining-balance amortization schedule.
func (h *Handler) SimulateCredit(w http.ResponseWriter, r *http.Request) {
	var req simulateCreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	credit, err := req.toContract()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid credit input", err)
		return
	}

	items, err := h.Service.AmortizationSchedule(credit)
	if err != nil {
		if errors.Is(err, engine.ErrUnboundedAmortization) {
			writeError(w, http.StatusUnprocessableEntity, "Schedule does not terminate", err)
			return
		}
		writeDomainError(w, "Failed to build amortization schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, toAmortizationDTO(items))
}

// =============================================================================
// CONTRACT HANDLERS
// =============================================================================

// CreateContract validates and persists a new contract in DRAFT. Returns
// the contract and its authoritative schedule.
func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var req createContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.MemberID == "" {
		writeError(w, http.StatusBadRequest, "member_id is required", nil)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid contract input", err)
		return
	}

	c, schedule, err := h.Service.CreateContract(r.Context(),
		in.CaisseType, engine.MemberID(req.MemberID), in)
	if err != nil {
		writeDomainError(w, "Failed to create contract", err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		Contract contractDTO `json:"contract"`
		Schedule scheduleDTO `json:"schedule"`
	}{toContractDTO(c), toScheduleDTO(schedule)})
}

// GetContract returns a contract with its status projection refreshed.
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	id := engine.ContractID(chi.URLParam(r, "id"))
	c, err := h.Service.GetContract(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get contract", err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(c))
}

// GetSchedule returns the contract's schedule computed from its pinned
// settings version.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id := engine.ContractID(chi.URLParam(r, "id"))
	schedule, err := h.Service.Schedule(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to build schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleDTO(schedule))
}

// ListMemberContracts returns all contracts held by a member.
func (h *Handler) ListMemberContracts(w http.ResponseWriter, r *http.Request) {
	member := engine.MemberID(chi.URLParam(r, "id"))
	list, err := h.Service.ContractsByMember(r.Context(), member)
	if err != nil {
		writeDomainError(w, "Failed to list contracts", err)
		return
	}
	dtos := make([]contractDTO, 0, len(list))
	for i := range list {
		dtos = append(dtos, toContractDTO(&list[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Rescind records the administrative rescission of a defaulted contract.
func (h *Handler) Rescind(w http.ResponseWriter, r *http.Request) {
	id := engine.ContractID(chi.URLParam(r, "id"))
	if err := h.Service.Rescind(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to rescind contract", err)
		return
	}
	c, err := h.Service.GetContract(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get contract", err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(c))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// RecordPayment appends an installment to the ledger with its penalty.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id := engine.ContractID(chi.URLParam(r, "id"))

	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	paidAt, err := time.Parse(dateLayout, req.PaidAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid paid_at date", err)
		return
	}
	mode := engine.PaymentMode(req.Mode)
	if mode == "" {
		mode = engine.PayModeCash
	}

	p, err := h.Service.RecordPayment(r.Context(), id, req.DueIndex, paidAt, mode)
	if err != nil {
		writeDomainError(w, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentDTO(*p))
}

// ListPayments returns the contract's ledger ordered by due index.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id := engine.ContractID(chi.URLParam(r, "id"))
	payments, err := h.Service.Payments(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to list payments", err)
		return
	}
	dtos := make([]paymentDTO, 0, len(payments))
	for _, p := range payments {
		dtos = append(dtos, toPaymentDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// WITHDRAWAL AND REFUND HANDLERS
// =============================================================================

// RequestWithdrawal records the member's early-exit request.
func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	id := engine.ContractID(chi.URLParam(r, "id"))
	if err := h.Service.RequestEarlyWithdrawal(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to request withdrawal", err)
		return
	}
	c, err := h.Service.GetContract(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get contract", err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(c))
}

// RecordRefund computes and persists the withdrawal payout.
func (h *Handler) RecordRefund(w http.ResponseWriter, r *http.Request) {
	id := engine.ContractID(chi.URLParam(r, "id"))

	var req recordRefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	typ := engine.RefundType(req.Type)
	if typ != engine.RefundEarly && typ != engine.RefundFinal {
		writeError(w, http.StatusBadRequest, "type must be early or final", nil)
		return
	}

	refund, err := h.Service.RecordRefund(r.Context(), id, typ)
	if err != nil {
		writeDomainError(w, "Failed to record refund", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRefundDTO(refund))
}

// ListRefunds returns the refunds recorded against a contract.
func (h *Handler) ListRefunds(w http.ResponseWriter, r *http.Request) {
	id := engine.ContractID(chi.URLParam(r, "id"))
	refunds, err := h.Service.Refunds(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to list refunds", err)
		return
	}
	dtos := make([]refundDTO, 0, len(refunds))
	for i := range refunds {
		dtos = append(dtos, toRefundDTO(&refunds[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SettleRefund marks the payout as disbursed, closing the contract.
func (h *Handler) SettleRefund(w http.ResponseWriter, r *http.Request) {
	id := engine.RefundID(chi.URLParam(r, "id"))
	if err := h.Service.SettleRefund(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to settle refund", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SETTINGS HANDLERS
// =============================================================================

// ListSettings returns all settings versions for a caisse type.
func (h *Handler) ListSettings(w http.ResponseWriter, r *http.Request) {
	t := engine.CaisseType(r.URL.Query().Get("caisse_type"))
	if !t.Valid() {
		writeError(w, http.StatusBadRequest, "caisse_type query parameter is required", nil)
		return
	}
	list, err := h.Service.ListSettings(r.Context(), t)
	if err != nil {
		writeDomainError(w, "Failed to list settings", err)
		return
	}
	dtos := make([]settingsDTO, 0, len(list))
	for _, s := range list {
		dtos = append(dtos, toSettingsDTO(s))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateSettings parses a JSON bonus table into a new inactive version.
func (h *Handler) CreateSettings(w http.ResponseWriter, r *http.Request) {
	var in factory.SettingsJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	parsed, err := factory.FromJSON(in)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid settings definition", err)
		return
	}

	created, err := h.Service.CreateSettings(r.Context(), *parsed)
	if err != nil {
		writeDomainError(w, "Failed to create settings", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSettingsDTO(*created))
}

// ActivateSettings atomically activates a version and deactivates its
// siblings.
func (h *Handler) ActivateSettings(w http.ResponseWriter, r *http.Request) {
	id := engine.SettingsID(chi.URLParam(r, "id"))
	if err := h.Service.ActivateSettings(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to activate settings", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := errorDTO{Error: message}
	if err != nil {
		resp.Error = message + ": " + err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, engine.ErrDuplicateInstallment):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, engine.ErrNoActiveSettings):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case engine.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
