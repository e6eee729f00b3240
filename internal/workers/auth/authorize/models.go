package authorize

import "schema-host/internal/dispatch"

// Input is a gateway authorizer event. The Authorization header is used when
// the event carries no token.
type Input struct {
	AuthorizationToken string `json:"authorizationToken"`
	MethodArn          string `json:"methodArn"`
}

func (in *Input) BindHeaders(h dispatch.Headers) {
	if in.AuthorizationToken == "" {
		in.AuthorizationToken = h.Get("Authorization")
	}
}

type Statement struct {
	Action   string `json:"Action"`
	Effect   string `json:"Effect"`
	Resource string `json:"Resource"`
}

type PolicyDocument struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

type Policy struct {
	PrincipalID    string         `json:"principalId"`
	PolicyDocument PolicyDocument `json:"policyDocument"`
}
