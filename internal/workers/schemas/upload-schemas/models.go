package uploadschemas

import "schema-host/internal/dispatch"

const billingUserHeader = "X-Billing-User"

type Input struct {
	Extension         string                 `json:"extension"`
	Schema            []string               `json:"schema"`
	Properties        map[string]interface{} `json:"properties,omitempty"`
	Endpoints         []string               `json:"endpoints,omitempty"`
	GoogleAccessToken string                 `json:"google_access_token,omitempty"`

	// BillingUser comes from the X-Billing-User header and names the account
	// that pays for the tenant.
	BillingUser string `json:"-"`
}

func (in *Input) BindHeaders(h dispatch.Headers) {
	in.BillingUser = h.Get(billingUserHeader)
}

type Output struct {
	Message         string   `json:"message"`
	UploadedSchemas []string `json:"uploaded_schemas"`
	FailedSchemas   []string `json:"failed_schemas,omitempty"`
}
