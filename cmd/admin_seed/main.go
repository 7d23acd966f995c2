package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"bookingpay/internal/config"
	"bookingpay/internal/logger"
	"bookingpay/internal/models"
	"bookingpay/internal/repositories"
	"bookingpay/internal/services/auth"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Prints the ADMIN_PASSWORD_HASH for ADMIN_PASSWORD and, with SEED_DEMO=true,
// inserts a demo booking with a pending payment.
func main() {
	config.LoadEnv()

	adminPassword := config.GetEnv("ADMIN_PASSWORD", "")
	if adminPassword == "" {
		log.Fatal("ADMIN_PASSWORD must be set in environment")
	}

	hash, err := auth.HashPassword(adminPassword)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	fmt.Printf("ADMIN_EMAIL=%s\n", config.GetEnv("ADMIN_EMAIL", "admin@localhost.localdomain"))
	fmt.Printf("ADMIN_PASSWORD_HASH=%s\n", hash)

	if !config.GetBoolEnv("SEED_DEMO", false) {
		return
	}

	zlog, err := logger.New("", true)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	db, err := repositories.InitDB(config.DatabaseFromEnv().DSN(), zlog)
	if err != nil {
		zlog.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer func() {
		if err := repositories.Close(db); err != nil {
			zlog.Warn("Failed to close database connection", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	currency := strings.ToUpper(config.GetEnv("CURRENCY", "EUR"))
	checkIn := time.Now().UTC().AddDate(0, 0, 14).Truncate(24 * time.Hour)

	booking := &models.Booking{
		Reference:         fmt.Sprintf("DEMO-%d", time.Now().Unix()),
		CustomerFirstName: "Ada",
		CustomerLastName:  "Lovelace",
		CustomerEmail:     "guest@example.com",
		CheckInDate:       checkIn,
		CheckOutDate:      checkIn.AddDate(0, 0, 2),
		TotalPrice:        decimal.RequireFromString("103.00"),
		ProcessingFee:     decimal.RequireFromString("3.00"),
		Currency:          currency,
	}
	if err := repositories.NewBookingRepository(db).Create(ctx, booking); err != nil {
		zlog.Fatal("Failed to create demo booking", zap.Error(err))
	}

	payment := &models.Payment{
		BookingID: booking.ID,
		Amount:    booking.TotalPrice,
		Currency:  currency,
		Status:    models.PaymentStatusPending,
	}
	if err := repositories.NewPaymentRepository(db).Create(ctx, payment); err != nil {
		zlog.Fatal("Failed to create demo payment", zap.Error(err))
	}

	zlog.Info("Demo payment created",
		zap.String("booking", booking.Reference),
		zap.String("payment_id", payment.ID.String()),
		zap.String("amount", payment.Amount.StringFixed(2)+" "+currency),
	)
}
