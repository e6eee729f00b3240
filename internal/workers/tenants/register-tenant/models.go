package registertenant

import "time"

type Input struct {
	Email             string   `json:"email"`
	Tenants           []string `json:"tenants,omitempty"`
	GoogleAccessToken string   `json:"google_access_token"`
}

type Output struct {
	Success       bool      `json:"success"`
	Message       string    `json:"message"`
	UserEmail     string    `json:"user_email"`
	GoogleUserID  string    `json:"google_user_id"`
	TokenBalance  int64     `json:"token_balance"`
	Tenants       []string  `json:"tenants"`
	FailedTenants []string  `json:"failed_tenants"`
	AllTenants    []string  `json:"all_tenants"`
	CreatedAt     time.Time `json:"created_at"`
}
