package authenticate

// Input carries a Google access token. Extension is optional; without it the
// caller gets no tenant permissions.
type Input struct {
	Extension         string `json:"extension,omitempty"`
	GoogleAccessToken string `json:"google_access_token"`
}

// Permissions is the tenant grant plus whether the caller owns a billing
// account.
type Permissions struct {
	Read    bool `json:"read"`
	Write   bool `json:"write"`
	Admin   bool `json:"admin"`
	Billing bool `json:"billing"`
}

type Output struct {
	Message       string      `json:"message"`
	TenantID      string      `json:"tenantId"`
	Authenticated bool        `json:"authenticated"`
	AuthType      string      `json:"auth_type"`
	GoogleUserID  string      `json:"google_user_id"`
	UserEmail     string      `json:"user_email"`
	Permissions   Permissions `json:"permissions"`
	TokenBalance  int64       `json:"token_balance"`
}
