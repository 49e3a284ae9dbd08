package constants

type contextKey string

const (
	TxKey          contextKey = "tx"
	PoolKey        contextKey = "pool"
	LoggerKey      contextKey = "logger"
	ParamsKey      contextKey = "params"
	TenantIDKey    contextKey = "tenantID"
	TenantKey      contextKey = "tenant"
	UserKey        contextKey = "user"
	SessionKey     contextKey = "session"
	LocalizerKey   contextKey = "localizer"
	LocaleKey      contextKey = "locale"
	PageContextKey contextKey = "pageContext"
)
