package http

import (
	"github.com/auth-otp-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/auth-otp-api/internal/infrastructure/jwt"
	"github.com/auth-otp-api/internal/infrastructure/smtp"
	"github.com/auth-otp-api/internal/infrastructure/sns"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo         *dynamo.UserRepo
	TokenRepo        *dynamo.TokenRepo
	DeviceRepo       *dynamo.DeviceRepo
	VerificationRepo *dynamo.VerificationRepo
	Mailer           smtp.Mailer
	SMSSender        sns.SMSSender
	Codec            *jwtinfra.Codec
}
