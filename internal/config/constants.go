package config

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// MinStateSigningKeyLength is the minimum accepted HMAC key length in bytes
const MinStateSigningKeyLength = 32

// Example values shipped in .env.example that must not reach production
const (
	ExampleAPIKey          = "generate_with_openssl_rand_hex_32"
	ExampleStateSigningKey = "generate_with_openssl_rand_hex_32_for_state"
	ExampleDBPassword      = "change_this_secure_password"
)
