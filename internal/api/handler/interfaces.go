package handler

import (
	"context"

	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/application"
	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/domain/reservation"
)

// CartServiceInterface はカートサービスのインターフェース
type CartServiceInterface interface {
	AddToCart(ctx context.Context, userID, vehicleID string) (*reservation.Reservation, error)
	RemoveFromCart(ctx context.Context, userID, vehicleID string) error
	ListCart(ctx context.Context, userID string) ([]*reservation.Reservation, error)
	VehicleAvailability(ctx context.Context, vehicleID string) (string, error)
}

// CheckoutServiceInterface はチェックアウトサービスのインターフェース
type CheckoutServiceInterface interface {
	Checkout(ctx context.Context, userID string) (*application.CheckoutResult, error)
}
