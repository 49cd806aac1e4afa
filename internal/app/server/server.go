package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/trackflow/trackflow/internal/app/repository"
	"github.com/trackflow/trackflow/internal/app/service"
	inthttp "github.com/trackflow/trackflow/internal/http/handler"
	"github.com/trackflow/trackflow/internal/http/middleware"
	httpUtil "github.com/trackflow/trackflow/internal/http/util"
	"go.uber.org/zap"
)

// Dependencies bundles the services and infrastructure the HTTP server needs.
type Dependencies struct {
	Logger       *zap.Logger
	Redis        *redis.Client
	Offers       repository.OfferRepository
	Clicks       *service.ClickService
	Resolver     *service.RuleResolver
	Conversions  *service.ConversionService
	Inbound      *service.InboundService
	Issuer       *service.LinkIssuer
	OfferService *service.OfferService
	Checksum     *httpUtil.ChecksumSigner
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with default routes.
func New(deps Dependencies) *Server {
	app := fiber.New()

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerMiddleware()
	s.registerRoutes()
	return s
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the underlying Fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) registerMiddleware() {
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Recovery(s.deps.Logger))
	s.app.Use(middleware.Logger(s.deps.Logger))
	s.app.Use(middleware.CORS())
	if s.deps.Redis != nil {
		s.app.Use(middleware.RateLimit(s.deps.Redis, middleware.DefaultRateLimitConfig(), s.deps.Logger))
	}
}

func (s *Server) registerRoutes() {
	trackHandler := inthttp.NewTrackHandler(inthttp.TrackDeps{
		Logger:   s.deps.Logger,
		Offers:   s.deps.Offers,
		Clicks:   s.deps.Clicks,
		Resolver: s.deps.Resolver,
		Checksum: s.deps.Checksum,
	})
	trackHandler.Register(s.app)

	postbackHandler := inthttp.NewPostbackHandler(inthttp.PostbackDeps{
		Logger:      s.deps.Logger,
		Inbound:     s.deps.Inbound,
		Conversions: s.deps.Conversions,
	})
	postbackHandler.Register(s.app)

	apiHandler := inthttp.NewAPIHandler(inthttp.APIDeps{
		Logger: s.deps.Logger,
		Issuer: s.deps.Issuer,
		Offers: s.deps.OfferService,
	})
	apiHandler.Register(s.app)
}
