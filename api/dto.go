/*
dto.go - Request/response shapes for the HTTP surface

PURPOSE:
  Maps between JSON wire types and engine types. Amounts travel as
  strings so decimal precision survives the round-trip; dates are
  YYYY-MM-DD. No business logic lives here.
*/
package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mutuelle/caisse-engine/engine"
)

const dateLayout = "2006-01-02"

// =============================================================================
// REQUESTS
// =============================================================================

type simulateSavingsRequest struct {
	CaisseType        string `json:"caisse_type"`
	InstallmentAmount string `json:"installment_amount"`
	Installments      int    `json:"installments"`
	StartDate         string `json:"start_date"`
}

func (r simulateSavingsRequest) toInput() (engine.ScheduleInput, error) {
	amount, err := decimal.NewFromString(r.InstallmentAmount)
	if err != nil {
		return engine.ScheduleInput{}, fmt.Errorf("invalid installment_amount: %w", err)
	}
	start, err := time.Parse(dateLayout, r.StartDate)
	if err != nil {
		return engine.ScheduleInput{}, fmt.Errorf("invalid start_date: %w", err)
	}
	return engine.ScheduleInput{
		CaisseType:        engine.CaisseType(r.CaisseType),
		InstallmentAmount: amount,
		Installments:      r.Installments,
		StartDate:         start,
	}, nil
}

type simulateCreditRequest struct {
	Amount           string `json:"amount"`
	InterestRate     string `json:"interest_rate"`
	MonthlyPayment   string `json:"monthly_payment"`
	FirstPaymentDate string `json:"first_payment_date"`
	MaxDuration      int    `json:"max_duration"`
}

func (r simulateCreditRequest) toContract() (engine.CreditContract, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return engine.CreditContract{}, fmt.Errorf("invalid amount: %w", err)
	}
	rate, err := decimal.NewFromString(r.InterestRate)
	if err != nil {
		return engine.CreditContract{}, fmt.Errorf("invalid interest_rate: %w", err)
	}
	payment, err := decimal.NewFromString(r.MonthlyPayment)
	if err != nil {
		return engine.CreditContract{}, fmt.Errorf("invalid monthly_payment: %w", err)
	}
	first, err := time.Parse(dateLayout, r.FirstPaymentDate)
	if err != nil {
		return engine.CreditContract{}, fmt.Errorf("invalid first_payment_date: %w", err)
	}
	maxDuration := r.MaxDuration
	if maxDuration == 0 {
		maxDuration = 360 // default safety bound
	}
	return engine.CreditContract{
		Amount:           amount,
		InterestRate:     rate,
		MonthlyPayment:   payment,
		FirstPaymentDate: first,
		MaxDuration:      maxDuration,
	}, nil
}

type createContractRequest struct {
	simulateSavingsRequest
	MemberID string `json:"member_id"`
}

type recordPaymentRequest struct {
	DueIndex int    `json:"due_index"`
	PaidAt   string `json:"paid_at"`
	Mode     string `json:"mode,omitempty"`
}

type recordRefundRequest struct {
	Type string `json:"type"` // "early" | "final"
}

// =============================================================================
// RESPONSES
// =============================================================================

type scheduleRowDTO struct {
	Index       int    `json:"index"`
	DueAt       string `json:"due_at"`
	Amount      string `json:"amount"`
	BonusRate   string `json:"bonus_rate"`
	BonusAmount string `json:"bonus_amount"`
	BonusLabel  string `json:"bonus_label"`
}

type scheduleDTO struct {
	Rows             []scheduleRowDTO `json:"rows"`
	TotalAmount      string           `json:"total_amount"`
	TotalBonus       string           `json:"total_bonus"`
	NoActiveSettings bool             `json:"no_active_settings"`
}

func toScheduleDTO(s *engine.Schedule) scheduleDTO {
	out := scheduleDTO{
		Rows:             make([]scheduleRowDTO, 0, len(s.Rows)),
		TotalAmount:      s.TotalAmount.String(),
		TotalBonus:       s.TotalBonus.String(),
		NoActiveSettings: s.NoActiveSettings,
	}
	for _, row := range s.Rows {
		out.Rows = append(out.Rows, scheduleRowDTO{
			Index:       row.Index,
			DueAt:       row.DueAt.Format(dateLayout),
			Amount:      row.Amount.String(),
			BonusRate:   row.BonusRate.String(),
			BonusAmount: row.BonusAmount.String(),
			BonusLabel:  row.BonusLabel,
		})
	}
	return out
}

type amortizationItemDTO struct {
	Month     int    `json:"month"`
	Date      string `json:"date"`
	Payment   string `json:"payment"`
	Interest  string `json:"interest"`
	Principal string `json:"principal"`
	Remaining string `json:"remaining"`
}

func toAmortizationDTO(items []engine.ScheduleItem) []amortizationItemDTO {
	out := make([]amortizationItemDTO, 0, len(items))
	for _, item := range items {
		out = append(out, amortizationItemDTO{
			Month:     item.Month,
			Date:      item.Date.Format(dateLayout),
			Payment:   item.Payment.String(),
			Interest:  item.Interest.String(),
			Principal: item.Principal.String(),
			Remaining: item.Remaining.String(),
		})
	}
	return out
}

type contractDTO struct {
	ID                string `json:"id"`
	CaisseType        string `json:"caisse_type"`
	MemberID          string `json:"member_id"`
	InstallmentAmount string `json:"installment_amount"`
	Installments      int    `json:"installments"`
	StartDate         string `json:"start_date"`
	Status            string `json:"status"`
	SettingsID        string `json:"settings_id,omitempty"`
	CreatedAt         string `json:"created_at"`
}

func toContractDTO(c *engine.Contract) contractDTO {
	return contractDTO{
		ID:                string(c.ID),
		CaisseType:        string(c.CaisseType),
		MemberID:          string(c.MemberID),
		InstallmentAmount: c.InstallmentAmount.String(),
		Installments:      c.Installments,
		StartDate:         c.StartDate.Format(dateLayout),
		Status:            string(c.Status),
		SettingsID:        string(c.SettingsID),
		CreatedAt:         c.CreatedAt.Format(time.RFC3339),
	}
}

type paymentDTO struct {
	ContractID     string `json:"contract_id"`
	DueIndex       int    `json:"due_index"`
	DueAt          string `json:"due_at"`
	PaidAt         string `json:"paid_at,omitempty"`
	Amount         string `json:"amount"`
	PenaltyApplied string `json:"penalty_applied"`
	Mode           string `json:"mode,omitempty"`
}

func toPaymentDTO(p engine.Payment) paymentDTO {
	out := paymentDTO{
		ContractID:     string(p.ContractID),
		DueIndex:       p.DueIndex,
		DueAt:          p.DueAt.Format(dateLayout),
		Amount:         p.Amount.String(),
		PenaltyApplied: p.PenaltyApplied.String(),
		Mode:           string(p.Mode),
	}
	if p.PaidAt != nil {
		out.PaidAt = p.PaidAt.Format(dateLayout)
	}
	return out
}

type refundDTO struct {
	ID            string `json:"id"`
	ContractID    string `json:"contract_id"`
	Type          string `json:"type"`
	AmountNominal string `json:"amount_nominal"`
	AmountBonus   string `json:"amount_bonus"`
	Total         string `json:"total"`
	Status        string `json:"status"`
}

func toRefundDTO(r *engine.Refund) refundDTO {
	return refundDTO{
		ID:            string(r.ID),
		ContractID:    string(r.ContractID),
		Type:          string(r.Type),
		AmountNominal: r.AmountNominal.String(),
		AmountBonus:   r.AmountBonus.String(),
		Total:         r.Total().String(),
		Status:        string(r.Status),
	}
}

type settingsDTO struct {
	ID          string            `json:"id"`
	CaisseType  string            `json:"caisse_type"`
	BonusTable  map[string]string `json:"bonus_table"`
	Active      bool              `json:"active"`
	Version     int               `json:"version"`
	EffectiveAt string            `json:"effective_at,omitempty"`
}

func toSettingsDTO(s engine.BonusSettings) settingsDTO {
	table := make(map[string]string, len(s.BonusTable))
	for idx, rate := range s.BonusTable {
		table[fmt.Sprintf("%d", idx)] = rate.String()
	}
	out := settingsDTO{
		ID:         string(s.ID),
		CaisseType: string(s.CaisseType),
		BonusTable: table,
		Active:     s.Active,
		Version:    s.Version,
	}
	if !s.EffectiveAt.IsZero() {
		out.EffectiveAt = s.EffectiveAt.Format(dateLayout)
	}
	return out
}

type errorDTO struct {
	Error string `json:"error"`
}
