// Package dispatch routes a request envelope to the operation registered for
// its kind.
package dispatch

// Kind is the closed set of request types the service accepts.
type Kind string

const (
	KindUploadSchemas   Kind = "json"
	KindDeleteSchemas   Kind = "del"
	KindSearchSchemas   Kind = "search"
	KindGenerateSchemas Kind = "llm"
	KindPreloadObject   Kind = "llm-preload"
	KindRegister        Kind = "register"
	KindAuthenticate    Kind = "auth"
	KindAuthorize       Kind = "authorize"
	KindCreateUser      Kind = "create_user"
	KindAdminDelete     Kind = "admin_delete"
	KindManageScopes    Kind = "manage_oauth_scopes"
	KindDebitTokens     Kind = "debit_tokens"
	KindAccountStatus   Kind = "check_account_status"
	KindBillStorage     Kind = "bill"
)

var allKinds = []Kind{
	KindUploadSchemas,
	KindDeleteSchemas,
	KindSearchSchemas,
	KindGenerateSchemas,
	KindPreloadObject,
	KindRegister,
	KindAuthenticate,
	KindAuthorize,
	KindCreateUser,
	KindAdminDelete,
	KindManageScopes,
	KindDebitTokens,
	KindAccountStatus,
	KindBillStorage,
}

// AllKinds returns every request kind in a stable order.
func AllKinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

func ParseKind(s string) (Kind, bool) {
	for _, k := range allKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// RequiresTenant reports whether the body must carry an extension.
// Token authentication and the authorizer identify the tenant themselves and
// storage billing runs across every tenant.
func (k Kind) RequiresTenant() bool {
	switch k {
	case KindAuthenticate, KindAuthorize, KindBillStorage:
		return false
	}
	return true
}

func (k Kind) String() string { return string(k) }
