package main

import (
	"os"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"drawwin/internal/config"
	"drawwin/internal/database"
	"drawwin/internal/handlers"
	"drawwin/internal/inquiry"
	"drawwin/internal/mailer"
	"drawwin/internal/membership"
	"drawwin/internal/payment"
	"drawwin/internal/winner"
	"drawwin/internal/withdrawal"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)
	log.Info("Starting drawwin service...")

	cfg := config.LoadConfig()

	var (
		db  *gorm.DB
		err error
	)
	if cfg.DBDriver == "sqlite" {
		db, err = database.ConnectSQLite(cfg.SQLitePath)
	} else {
		db, err = database.ConnectPostgres(cfg)
	}
	if err != nil {
		log.WithError(err).Fatal("Could not connect to database")
	}

	rdb, err := database.ConnectRedis(cfg)
	if err != nil {
		log.WithError(err).Fatal("Could not connect to redis")
	}

	sender := mailer.NewSMTPEmailSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
	dispatcher := mailer.NewDispatcher(db, sender)
	dispatcher.Start()
	defer dispatcher.Stop()

	payClient := payment.NewClient(cfg.PaygateShopID, cfg.PaygateKey, cfg.PaygateURL)
	orders := payment.NewOrderStore(rdb)
	reconciler := payment.NewReconciler(db, dispatcher, cfg.EntryFee, cfg.FeeCurrency)
	ledger := membership.NewLedger(db, dispatcher)
	winners := winner.NewService(db, dispatcher)
	withdrawals := withdrawal.NewService(db, dispatcher, cfg.EntryFee)
	inquiries := inquiry.NewService(db, dispatcher)

	httpHandler := handlers.NewHTTPHandler(cfg, ledger, reconciler, payClient, orders, winners, withdrawals, inquiries)

	r := gin.Default()
	httpHandler.RegisterRoutes(r)

	log.WithField("addr", cfg.ListenAddr).Info("Server starting")
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.WithError(err).Fatal("Failed to run server")
	}
}
