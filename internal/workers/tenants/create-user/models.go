package createuser

type Input struct {
	Extension    string `json:"extension"`
	Passcode     string `json:"passcode"`
	UserID       string `json:"user_id"`
	UserPasscode string `json:"user_passcode"`
}

type Output struct {
	Message      string `json:"message"`
	UserID       string `json:"userId"`
	ParentTenant string `json:"parentTenant"`
}
