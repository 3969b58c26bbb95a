package middleware

import (
	"github.com/MicahParks/keyfunc/v3"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"github.com/lexgraph/lexgraph/pkg/ai"
	"github.com/lexgraph/lexgraph/pkg/config"
)

// AuthInfo is the caller identity resolved by the auth middleware. Tenant is
// the raw tenant id from the token; handlers validate it into a
// model.TenantID before touching storage.
type AuthInfo struct {
	Tenant      string
	Role        string
	Permissions []string
}

// App holds the shared process-wide dependencies handed to every request.
type App struct {
	DB       *pgxpool.Pool
	Queue    *amqp091.Channel
	Key      *keyfunc.Keyfunc
	S3       *s3.Client
	AiClient ai.Client
	Config   config.Config

	MasterAPIKey string
	MasterTenant string
}

type AppContext struct {
	echo.Context
	App  *App
	Auth *AuthInfo
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{c, app, nil})
		}
	}
}
