package logging

// Field names shared by every log line.
const (
	FieldService   = "service"
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldClientIP  = "client_ip"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldUserID    = "user_id"
	FieldMessageID = "message_id"
	FieldComponent = "component"
)
