package audit

import (
	"time"

	"veriledger/pkg/domain"
)

// Kind classifies an audit event.
type Kind string

const (
	KindTransferApproved Kind = "transfer_approved"
	KindTransferRejected Kind = "transfer_rejected"
	KindBalanceModified  Kind = "balance_modified"
	KindAdminAction      Kind = "admin_action"
	KindCustodyChanged   Kind = "custody_changed"
)

// Event is emitted from the engine to capture every decision and
// administrative mutation. Keep it transport-agnostic so stores and sinks can
// fan out.
type Event struct {
	ID        string              `json:"id"`
	Timestamp time.Time           `json:"timestamp"`
	Kind      Kind                `json:"kind"`
	Token     domain.TokenID      `json:"token,omitempty"`
	Caller    domain.InvestorID   `json:"caller,omitempty"`
	From      domain.InvestorID   `json:"from,omitempty"`
	To        domain.InvestorID   `json:"to,omitempty"`
	Amount    uint64              `json:"amount,omitempty"`
	Action    string              `json:"action,omitempty"`
	Code      string              `json:"code,omitempty"`
	Detail    string              `json:"detail,omitempty"`
}
