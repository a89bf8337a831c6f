package main

import (
	"database/sql"
	"log"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/fransoakusi/quickbill-360-sub009/internal/config"
	"github.com/fransoakusi/quickbill-360-sub009/internal/handlers"
	"github.com/fransoakusi/quickbill-360-sub009/internal/repositories"
	"github.com/fransoakusi/quickbill-360-sub009/internal/services"
	"github.com/fransoakusi/quickbill-360-sub009/utils"
)

type application struct {
	errorLog *log.Logger
	infoLog  *log.Logger
	db       *sql.DB

	signingKey string

	accountRepo *repositories.AccountRepository
	billRepo    *repositories.BillRepository
	paymentRepo *repositories.PaymentRepository

	balance    *services.BalanceService
	gateway    *services.PaystackService
	reconciler *services.ReconciliationService

	accountHandler *handlers.AccountHandler
	billHandler    *handlers.BillHandler
	paymentHandler *handlers.PaymentHandler
	authHandler    *handlers.AuthHandler
}

func initializeApp(db *sql.DB, rdb *redis.Client, cfg config.Config, errorLog, infoLog *log.Logger, slogger *slog.Logger) (*application, error) {
	// Repositories
	accountRepo := repositories.NewAccountRepository(db)
	billRepo := repositories.NewBillRepository(db)
	paymentRepo := repositories.NewPaymentRepository(db)

	// Services
	balance := &services.BalanceService{
		AccountRepo: accountRepo,
		BillRepo:    billRepo,
		PaymentRepo: paymentRepo,
	}
	gateway, err := services.NewPaystackService(services.PaystackConfig{
		SecretKey:   cfg.Paystack.SecretKey,
		BaseURL:     cfg.Paystack.BaseURL,
		CallbackURL: cfg.Paystack.CallbackURL,
		Currency:    cfg.Paystack.Currency,
		Logger:      slogger,
	})
	if err != nil {
		return nil, err
	}
	reconciler := &services.ReconciliationService{
		BillRepo:    billRepo,
		AccountRepo: accountRepo,
		PaymentRepo: paymentRepo,
		Gateway:     gateway,
		Currency:    gateway.Currency(),
		Logger:      slogger,
	}
	if rdb != nil {
		reconciler.Locks = services.NewReferenceLock(rdb)
	}

	tokens, err := utils.NewManager(cfg.Admin.SigningKey)
	if err != nil {
		return nil, err
	}

	// Handlers
	app := &application{
		errorLog:       errorLog,
		infoLog:        infoLog,
		db:             db,
		signingKey:     cfg.Admin.SigningKey,
		accountRepo:    accountRepo,
		billRepo:       billRepo,
		paymentRepo:    paymentRepo,
		balance:        balance,
		gateway:        gateway,
		reconciler:     reconciler,
		accountHandler: handlers.NewAccountHandler(accountRepo, balance),
		billHandler:    handlers.NewBillHandler(billRepo, balance),
		paymentHandler: handlers.NewPaymentHandler(reconciler, gateway, billRepo, paymentRepo, balance),
		authHandler:    handlers.NewAuthHandler(tokens, cfg.Admin.Username, cfg.Admin.Password),
	}
	return app, nil
}
