package debittokens

import "encoding/json"

type Input struct {
	Extension     string       `json:"extension"`
	Tokens        *json.Number `json:"tokens,omitempty"`
	OperationType string       `json:"operation_type,omitempty"`
}

type Output struct {
	Message          string `json:"message"`
	TenantID         string `json:"tenant_id"`
	BillingUserEmail string `json:"billing_user_email,omitempty"`
	TokensDebited    int64  `json:"tokens_debited"`
	NewBalance       *int64 `json:"new_balance,omitempty"`
	OperationType    string `json:"operation_type"`
	PaymentEnforced  bool   `json:"payment_enforced"`
	Warning          string `json:"warning,omitempty"`
}
