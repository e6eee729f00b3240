package admindelete

type Input struct {
	AdminTenant   string `json:"admin_tenant"`
	AdminPasscode string `json:"admin_passcode"`
	TargetTenant  string `json:"target_tenant"`
}

type Output struct {
	Message         string `json:"message"`
	DeletedObjects  int    `json:"deleted_objects"`
	DeletedRecords  int64  `json:"deleted_records"`
	DeletedCatalog  bool   `json:"deleted_catalog_entries"`
	ReleasedBilling bool   `json:"released_billing"`
}
