package handler

import (
	"time"

	"acctgate/internal/account/models"
	"acctgate/pkg/domain"
)

type submitRequest struct {
	Target  domain.Address `json:"target"`
	Value   uint64         `json:"value"`
	Payload []byte         `json:"payload,omitempty"`
}

type proposeRecoveryRequest struct {
	ReplacedOwner domain.Address `json:"replaced_owner"`
	NewOwner      domain.Address `json:"new_owner"`
}

type submitResponse struct {
	Index uint64 `json:"index"`
}

type confirmResponse struct {
	Index  uint64          `json:"index"`
	Status models.TxStatus `json:"status"`
}

type predicateResponse struct {
	Result bool `json:"result"`
}

type accountResponse struct {
	Address          domain.Address   `json:"address"`
	Owners           []domain.Address `json:"owners"`
	ConfirmThreshold uint64           `json:"confirm_threshold"`
	GuardianDigests  []domain.Digest  `json:"guardian_digests"`
	RecoverThreshold uint64           `json:"recover_threshold"`
	Whitelist        []domain.Address `json:"whitelist,omitempty"`

	IsFreezing      bool   `json:"is_freezing"`
	UnfreezeRound   uint64 `json:"unfreeze_round"`
	UnfreezeCounter uint64 `json:"unfreeze_counter"`

	IsRecovering bool   `json:"is_recovering"`
	RecoverRound uint64 `json:"recover_round"`

	Nonce            uint64    `json:"nonce"`
	TransactionCount uint64    `json:"transaction_count"`
	CreatedAt        time.Time `json:"created_at"`
}

func newAccountResponse(state *models.AccountState) accountResponse {
	a := state.Account
	return accountResponse{
		Address:          a.Address,
		Owners:           a.Owners,
		ConfirmThreshold: a.ConfirmThreshold,
		GuardianDigests:  a.GuardianDigests,
		RecoverThreshold: a.RecoverThreshold,
		Whitelist:        a.Whitelist,
		IsFreezing:       a.IsFreezing,
		UnfreezeRound:    a.UnfreezeRound,
		UnfreezeCounter:  a.UnfreezeCounter,
		IsRecovering:     a.IsRecovering,
		RecoverRound:     a.RecoverRound,
		Nonce:            a.Nonce,
		TransactionCount: uint64(len(state.Transactions)),
		CreatedAt:        a.CreatedAt,
	}
}

type transactionResponse struct {
	Index        uint64          `json:"index"`
	Target       domain.Address  `json:"target"`
	Value        uint64          `json:"value"`
	Payload      []byte          `json:"payload,omitempty"`
	ConfirmCount uint64          `json:"confirm_count"`
	Deadline     time.Time       `json:"deadline"`
	Status       models.TxStatus `json:"status"`
	SubmittedBy  domain.Address  `json:"submitted_by"`
	SubmittedAt  time.Time       `json:"submitted_at"`
}

func newTransactionResponse(tx *models.Transaction, status models.TxStatus) transactionResponse {
	return transactionResponse{
		Index:        tx.Index,
		Target:       tx.Target,
		Value:        tx.Value,
		Payload:      tx.Payload,
		ConfirmCount: tx.ConfirmCount,
		Deadline:     tx.Deadline,
		Status:       status,
		SubmittedBy:  tx.SubmittedBy,
		SubmittedAt:  tx.SubmittedAt,
	}
}
