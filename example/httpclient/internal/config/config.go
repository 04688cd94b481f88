package config

const (
	// Upstream configuration
	UsersTarget = "users"
	UsersURL    = "https://jsonplaceholder.typicode.com"

	// Redis shares the breaker state between instances
	RedisAddr = "localhost:6379"

	// Server configuration
	MetricsPort = ":2112"

	// OpenTelemetry configuration
	OTLPEndpoint   = "localhost:4317"
	ServiceName    = "relay-httpclient-example"
	ServiceVersion = "0.1.0"

	// Call intervals
	CallInterval = 5 // seconds
)
