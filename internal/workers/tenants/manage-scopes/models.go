package managescopes

import (
	"schema-host/internal/common/auth"
	"schema-host/internal/dispatch"
	"schema-host/internal/repository"
)

const (
	ActionSet    = "set"
	ActionGet    = "get"
	ActionRemove = "remove"
)

type Input struct {
	Extension string   `json:"extension"`
	UserEmail string   `json:"user_email"`
	Scopes    []string `json:"scopes,omitempty"`
	Action    string   `json:"action,omitempty"`

	// AccessToken is the bearer token of the Authorization header.
	AccessToken string `json:"-"`
}

func (in *Input) BindHeaders(h dispatch.Headers) {
	if token, ok := auth.BearerToken(h.Get("Authorization")); ok {
		in.AccessToken = token
	}
}

type Output struct {
	Message         string                  `json:"message"`
	TenantID        string                  `json:"tenant_id"`
	UserEmail       string                  `json:"user_email"`
	TargetUserEmail string                  `json:"target_user_email,omitempty"`
	Scopes          []string                `json:"scopes,omitempty"`
	Permissions     *repository.Permissions `json:"permissions,omitempty"`
	ManagedBy       string                  `json:"managed_by,omitempty"`
}
