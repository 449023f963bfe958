package models

import "time"

// TransactionType classifies an append-only ledger entry.
type TransactionType string

const (
	TxIncome       TransactionType = "INCOME"
	TxCommission   TransactionType = "COMMISSION"
	TxExpertCredit TransactionType = "EXPERT_CREDIT"
	TxWithdrawal   TransactionType = "WITHDRAWAL"
	TxRefund       TransactionType = "REFUND"
)

// FinancialTransaction is one immutable ledger row. Rows are only ever
// inserted, inside the same database transaction as the state change that
// produced them.
type FinancialTransaction struct {
	ID          string          `json:"id"`
	Type        TransactionType `json:"type"`
	Amount      int64           `json:"amount"`
	Description string          `json:"description"`
	OrderID     *string         `json:"order_id,omitempty"`
	ActorID     *string         `json:"actor_id,omitempty"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

// LedgerSummary aggregates totals per transaction type.
type LedgerSummary struct {
	TotalIncome       int64 `json:"total_income"`
	TotalCommission   int64 `json:"total_commission"`
	TotalExpertCredit int64 `json:"total_expert_credit"`
	TotalWithdrawal   int64 `json:"total_withdrawal"`
	TotalRefund       int64 `json:"total_refund"`
}
