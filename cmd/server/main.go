package main

import (
	"context"
	"log"
	"net/http"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"pengu-backend/internal/config"
	appmw "pengu-backend/internal/middleware"
	"pengu-backend/internal/models"
	"pengu-backend/internal/modules/auth"
	"pengu-backend/internal/modules/expert"
	"pengu-backend/internal/modules/ledger"
	"pengu-backend/internal/modules/order"
	"pengu-backend/internal/modules/quote"
	"pengu-backend/internal/modules/request"
	"pengu-backend/internal/modules/review"
	"pengu-backend/internal/modules/withdrawal"
	"pengu-backend/internal/notify"
	"pengu-backend/pkg/payment"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}

	// Repositories
	authRepo := auth.NewRepository(pool)
	requestRepo := request.NewRepository(pool)
	quoteRepo := quote.NewRepository(pool)
	orderRepo := order.NewRepository(pool)
	expertRepo := expert.NewRepository(pool)
	withdrawalRepo := withdrawal.NewRepository(pool)
	reviewRepo := review.NewRepository(pool)
	ledgerRepo := ledger.NewRepository(pool)

	notifier := buildNotifier(ctx, cfg, authRepo)
	paymentSvc := payment.NewStripeService(cfg.StripeAPIKey)

	// Services
	authSvc := auth.NewService(authRepo, cfg.JWTSecret)
	requestSvc := request.NewService(requestRepo)
	quoteSvc := quote.NewService(quoteRepo, paymentSvc, notifier)
	expertSvc := expert.NewService(expertRepo)
	orderSvc := order.NewService(orderRepo, expertSvc, notifier, cfg.CommissionPct)
	withdrawalSvc := withdrawal.NewService(withdrawalRepo, expertRepo, notifier)
	reviewSvc := review.NewService(reviewRepo, notifier)
	ledgerSvc := ledger.NewService(ledgerRepo)

	// Handlers
	authHandler := auth.NewHandler(authSvc)
	requestHandler := request.NewHandler(requestSvc)
	quoteHandler := quote.NewHandler(quoteSvc)
	orderHandler := order.NewHandler(orderSvc)
	expertHandler := expert.NewHandler(expertSvc)
	withdrawalHandler := withdrawal.NewHandler(withdrawalSvc)
	reviewHandler := review.NewHandler(reviewSvc)
	ledgerHandler := ledger.NewHandler(ledgerSvc)

	e := echo.New()
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{cfg.ClientOrigin},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowCredentials: true,
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/ready", func(c echo.Context) error {
		if err := pool.Ping(c.Request().Context()); err != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})

	jwtGuard := appmw.JWT(cfg.JWTSecret)
	studentOnly := appmw.RequireRoles(models.RoleStudent)
	expertOnly := appmw.RequireRoles(models.RoleExpert)
	adminOnly := appmw.RequireRoles(models.RoleAdmin)
	payoutActors := appmw.RequireRoles(models.RoleStudent, models.RoleExpert)

	// Auth. Signup and login are rate limited per IP.
	authGroup := e.Group("/auth", echomw.RateLimiter(echomw.NewRateLimiterMemoryStore(10)))
	authGroup.POST("/signup", authHandler.Signup)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", authHandler.Me, jwtGuard)

	// Public expert directory.
	e.GET("/experts", expertHandler.ListExperts)
	e.GET("/experts/:id", expertHandler.GetExpert)
	e.GET("/experts/:id/reviews", reviewHandler.ListExpertReviews)

	api := e.Group("", jwtGuard)

	// Requests
	api.POST("/requests", requestHandler.SubmitRequest, studentOnly)
	api.GET("/requests", requestHandler.ListMyRequests, studentOnly)
	api.GET("/requests/:id", requestHandler.GetRequest)
	api.POST("/requests/:id/expire", requestHandler.ExpireRequest, adminOnly)

	// Quotes
	api.POST("/quotes", quoteHandler.CreateQuote, adminOnly)
	api.GET("/quotes/:id", quoteHandler.GetQuote)
	api.POST("/quotes/:id/negotiate", quoteHandler.Negotiate)
	api.POST("/quotes/:id/accept", quoteHandler.AcceptQuote, studentOnly)
	api.POST("/quotes/:id/reject", quoteHandler.RejectQuote, studentOnly)

	// Orders and milestones
	api.GET("/orders", orderHandler.ListMyOrders)
	api.GET("/orders/:id", orderHandler.GetOrder)
	api.POST("/orders/:id/assign", orderHandler.AssignExpert, adminOnly)
	api.PATCH("/orders/:id/milestones/:mid", orderHandler.UpdateMilestone)
	api.POST("/orders/:id/dispute", orderHandler.OpenDispute)
	api.POST("/orders/:id/dispute/resolve", orderHandler.ResolveDispute, adminOnly)

	// Reviews
	api.POST("/orders/:id/review", reviewHandler.SubmitReview, studentOnly)
	api.GET("/orders/:id/review", reviewHandler.GetOrderReview)
	api.PUT("/reviews/:id", reviewHandler.ModerateReview, adminOnly)

	// Expert profiles
	api.POST("/experts", expertHandler.RegisterExpert, expertOnly)
	api.PATCH("/experts/me/online", expertHandler.SetOnline, expertOnly)
	api.PATCH("/experts/:id/status", expertHandler.SetStatus, adminOnly)
	api.POST("/experts/me/payout-methods", expertHandler.AddPayoutMethod, payoutActors)
	api.GET("/experts/me/payout-methods", expertHandler.ListPayoutMethods, payoutActors)

	// Withdrawals
	api.POST("/withdrawals", withdrawalHandler.RequestWithdrawal, payoutActors)
	api.GET("/withdrawals", withdrawalHandler.ListMyWithdrawals, payoutActors)
	api.GET("/withdrawals/:id", withdrawalHandler.GetWithdrawal)
	api.PATCH("/withdrawals/:id", withdrawalHandler.ResolveWithdrawal, adminOnly)

	// Admin
	admin := api.Group("/admin", adminOnly)
	admin.GET("/requests", requestHandler.ListAllRequests)
	admin.GET("/quotes", quoteHandler.ListQuotes)
	admin.POST("/quotes/expire", quoteHandler.ExpireDueQuotes)
	admin.GET("/orders", orderHandler.ListAllOrders)
	admin.GET("/withdrawals", withdrawalHandler.ListWithdrawals)
	admin.GET("/reviews", reviewHandler.ListReviews)
	admin.GET("/transactions", ledgerHandler.ListTransactions)
	admin.GET("/transactions/summary", ledgerHandler.Summarize)

	e.Logger.Fatal(e.Start(":" + cfg.ServerPort))
}

// buildNotifier wires SES when a sender address is configured and falls
// back to log output for local development.
func buildNotifier(ctx context.Context, cfg *config.Config, resolver notify.RecipientResolver) notify.Notifier {
	if cfg.NotifyFromEmail == "" {
		log.Println("NOTIFY_FROM_EMAIL not set, using log notifier")
		return notify.LogNotifier{}
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		log.Printf("failed to load AWS config, using log notifier: %v", err)
		return notify.LogNotifier{}
	}
	return notify.NewSESNotifier(sesv2.NewFromConfig(awsCfg), resolver, cfg.NotifyFromEmail)
}
