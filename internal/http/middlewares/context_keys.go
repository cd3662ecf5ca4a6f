package middlewares

// gin context keys shared with the handlers
const (
	CtxRequestID = "request_id"
	CtxCaller    = "auth.caller"
)
