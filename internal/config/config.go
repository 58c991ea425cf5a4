package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	// Token signing surface. The codec is constructed from these values only;
	// there is no process-global signing state.
	JWTSecret              string
	JWTIssuer              string
	JWTAudience            string
	AccessTokenExpiryMin   int
	RefreshTokenExpiryDays int

	BcryptCost int

	OTPExpiryMinutes int

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SNSRegion string

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users             string
	Tokens            string
	Devices           string
	VerificationCodes string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:             getEnv("DYNAMO_TABLE_USERS", "users"),
			Tokens:            getEnv("DYNAMO_TABLE_TOKENS", "auth_tokens"),
			Devices:           getEnv("DYNAMO_TABLE_DEVICES", "auth_devices"),
			VerificationCodes: getEnv("DYNAMO_TABLE_VERIFICATION_CODES", "auth_one_time_pins"),
		},

		JWTSecret:              getEnv("JWT_SECRET_KEY", ""),
		JWTIssuer:              getEnv("JWT_ISSUER", "auth-otp-api"),
		JWTAudience:            getEnv("JWT_AUDIENCE", "auth-otp-api:client"),
		AccessTokenExpiryMin:   getEnvInt("JWT_ACCESS_TOKEN_EXPIRE_MINUTES", 15),
		RefreshTokenExpiryDays: getEnvInt("JWT_REFRESH_TOKEN_EXPIRE_DAYS", 30),

		BcryptCost: getEnvInt("BCRYPT_COST", 14),

		OTPExpiryMinutes: getEnvInt("OTP_EXPIRE_MINUTES", 55),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		SNSRegion: getEnv("SNS_REGION", "us-east-1"),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
