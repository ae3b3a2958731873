package repositories

import (
	"errors"

	"lanchonete/internal/models"
)

// ErrOrderNotFound is returned when an order id does not exist (or was
// already deleted).
var ErrOrderNotFound = errors.New("order not found")

// ErrStaleStatus is returned by UpdateStatus when the order exists but
// its stored status no longer matches the expected one, meaning a
// concurrent transition won the race.
var ErrStaleStatus = errors.New("order status changed concurrently")

// OrderRepository defines the persistence contract for orders. Each
// call executes within its own transaction boundary.
type OrderRepository interface {
	// Create persists the order together with its items atomically.
	Create(order *models.Order) error
	GetAll() ([]models.Order, error)
	GetByID(id uint) (*models.Order, error)
	// UpdateStatus moves the order from the expected current status to
	// the new one in a single compare-and-set write. It returns
	// ErrStaleStatus when the stored status differs from `from`, so the
	// caller can reload and re-check the state machine.
	UpdateStatus(id uint, from, to models.OrderStatus) (*models.Order, error)
	// Delete hard-deletes the order and cascades to its items.
	Delete(id uint) error
}
