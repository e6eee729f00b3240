package accountstatus

import "time"

type Input struct {
	UserEmail string `json:"user_email"`
}

type Output struct {
	Message              string    `json:"message"`
	UserEmail            string    `json:"user_email"`
	TokenBalance         int64     `json:"token_balance"`
	TotalTokensPurchased int64     `json:"total_tokens_purchased"`
	AccountStatus        string    `json:"account_status"`
	ManagedTenants       []string  `json:"managed_tenants"`
	LastActivity         time.Time `json:"last_activity"`
}
