package billstorage

import "schema-host/internal/billing"

// Input is empty; the run covers every billed tenant.
type Input struct{}

type Output struct {
	Message       string                 `json:"message"`
	TenantsBilled int                    `json:"tenants_billed"`
	TokensMetered int64                  `json:"tokens_metered"`
	Failed        int                    `json:"failed"`
	Charges       []billing.TenantCharge `json:"charges"`
}
