package log

// Common field names for structured logging.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldUserID     = "user_id"
	FieldRoomID     = "room_id"
	FieldBillID     = "bill_id"
	FieldImageKey   = "image_key"
	FieldAmount     = "amount_cents"
)

// Components defines standard component names.
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentAuth    = "auth"
	ComponentRoom    = "room"
	ComponentBill    = "bill"
	ComponentEngine  = "engine"
	ComponentStorage = "storage"
	ComponentBlob    = "blob"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentCache   = "cache"
)

// Operations defines standard operation names.
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpDelete   = "delete"
	OpList     = "list"
	OpJoin     = "join"
	OpUpload   = "upload"
	OpParse    = "parse"
	OpSummary  = "summary"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
