package types

type RunMode string

const (
	// ModeLocal runs the API server, the outbox dispatcher and the consumers in one process
	ModeLocal RunMode = "local"
	// ModeAPI runs just the API server
	ModeAPI RunMode = "api"
	// ModeConsumer runs the outbox dispatcher and the event consumers
	ModeConsumer RunMode = "consumer"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// EventBusProvider selects the transport used between the outbox dispatcher and the consumers
type EventBusProvider string

const (
	EventBusMemory EventBusProvider = "memory"
	EventBusKafka  EventBusProvider = "kafka"
)
