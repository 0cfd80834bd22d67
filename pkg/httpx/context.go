package httpx

type ctxKey string

const (
	// CtxKeyUserID carries the authenticated principal's ID for downstream
	// handlers and per-user rate limit keying.
	CtxKeyUserID ctxKey = "user_id"
)
