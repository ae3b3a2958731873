package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"

	"lanchonete/internal/gateways"
	"lanchonete/internal/models"
	"lanchonete/internal/repositories"

	"github.com/google/uuid"
)

var (
	// ErrEmptyItems rejects checkout requests without line items.
	ErrEmptyItems = errors.New("order must contain at least one item")
	// ErrInvalidQuantity rejects non-positive item quantities.
	ErrInvalidQuantity = errors.New("item quantity must be positive")
	// ErrProductUnavailable rejects items the catalog marks unavailable.
	ErrProductUnavailable = errors.New("product is not available")
	// ErrNotPayable is returned when payment is requested for an order
	// that is neither RECEIVED nor PAYMENT_FAILED.
	ErrNotPayable = errors.New("order is not in a payable state")
	// ErrPublishFailed is returned when the payment request could not
	// be handed to the broker. The status transition is compensated
	// before this error is returned.
	ErrPublishFailed = errors.New("failed to publish payment request")
)

// statusUpdateRetries bounds the reload-and-retry loop when a
// compare-and-set status write loses a race.
const statusUpdateRetries = 3

// Publisher is the broker surface the order service needs.
type Publisher interface {
	Publish(queue string, body []byte) error
}

// ItemRequest is one line of a checkout request.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

// OrderService implements the order use cases: create, list, get,
// update status, delete, request payment, and apply payment outcomes.
type OrderService struct {
	orderRepo repositories.OrderRepository
	productGw gateways.ProductGateway
	userGw    gateways.UserGateway
	publisher Publisher
}

// NewOrderService creates a new OrderService.
func NewOrderService(orderRepo repositories.OrderRepository, productGw gateways.ProductGateway,
	userGw gateways.UserGateway, publisher Publisher) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
		productGw: productGw,
		userGw:    userGw,
		publisher: publisher,
	}
}

// CreateOrder validates and prices the requested items against the
// product service, optionally resolves a customer by CPF, and persists
// the order in RECEIVED. Duplicate product ids are merged by summing
// quantities, keeping one line per product.
//
// Product service failures (not found or unavailable) abort the whole
// creation with nothing persisted. A user service outage degrades to an
// order without customer linkage; an unknown CPF aborts.
func (s *OrderService) CreateOrder(ctx context.Context, items []ItemRequest, cpf string) (*models.Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}

	merged, err := mergeItems(items)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(merged))
	for _, item := range merged {
		ids = append(ids, item.ProductID)
	}

	products, err := s.productGw.FetchProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("order creation failed: %w", err)
	}

	orderItems := make([]models.OrderItem, 0, len(merged))
	for _, item := range merged {
		product := products[item.ProductID]
		if !product.Available {
			return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, item.ProductID)
		}
		orderItems = append(orderItems, models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   product.Price,
		})
	}

	order := &models.Order{
		Status: models.StatusReceived,
		Items:  orderItems,
	}
	order.TotalPrice = order.ComputeTotal()

	if cpf != "" {
		customer, err := s.userGw.ResolveCustomer(ctx, cpf)
		switch {
		case err == nil:
			order.CustomerCPF = &customer.CPF
			if customer.Name != "" {
				order.CustomerName = &customer.Name
			}
			if customer.Email != "" {
				order.CustomerEmail = &customer.Email
			}
		case errors.Is(err, gateways.ErrCustomerNotFound):
			return nil, fmt.Errorf("order creation failed: %w", err)
		case errors.Is(err, gateways.ErrServiceUnavailable):
			// Customer linkage is non-essential; create the order
			// anonymously rather than failing checkout.
			log.Printf("user service unavailable, creating order without customer (cpf %s): %v", cpf, err)
		default:
			return nil, fmt.Errorf("order creation failed: %w", err)
		}
	}

	if err := s.orderRepo.Create(order); err != nil {
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}

	log.Printf("order %d created with %d items, total %s", order.ID, len(order.Items), order.TotalPrice)
	return order, nil
}

// statusPriority orders statuses "most actionable first" for listing.
var statusPriority = map[models.OrderStatus]int{
	models.StatusPaymentPending: 0,
	models.StatusReceived:       0,
	models.StatusPreparing:      0,
	models.StatusPaymentFailed:  0,
	models.StatusReady:          1,
	models.StatusCompleted:      2,
	models.StatusCancelled:      2,
}

// ListOrders returns all orders, actionable statuses first, ties broken
// by earliest creation time.
func (s *OrderService) ListOrders() ([]models.Order, error) {
	orders, err := s.orderRepo.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	sort.SliceStable(orders, func(i, j int) bool {
		pi, pj := statusPriority[orders[i].Status], statusPriority[orders[j].Status]
		if pi != pj {
			return pi < pj
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})

	return orders, nil
}

// GetOrder retrieves a single order by id.
func (s *OrderService) GetOrder(id uint) (*models.Order, error) {
	return s.orderRepo.GetByID(id)
}

// UpdateOrderStatus applies a state-machine transition to the order and
// persists it with a compare-and-set write. A lost race reloads the
// order and re-checks the transition, so two concurrent updates can
// never interleave into an invalid state.
func (s *OrderService) UpdateOrderStatus(id uint, status models.OrderStatus) (*models.Order, error) {
	var lastErr error
	for attempt := 0; attempt < statusUpdateRetries; attempt++ {
		order, err := s.orderRepo.GetByID(id)
		if err != nil {
			return nil, err
		}

		if !order.Status.CanTransitionTo(status) {
			return nil, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, order.Status, status)
		}

		updated, err := s.orderRepo.UpdateStatus(id, order.Status, status)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, repositories.ErrStaleStatus) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// DeleteOrder hard-deletes the order and its items. Deleting an absent
// order is an error, not an idempotent success.
func (s *OrderService) DeleteOrder(id uint) error {
	return s.orderRepo.Delete(id)
}

// RequestPayment transitions the order to PAYMENT_PENDING, persists
// the transition, then publishes a payment request. Payment can be
// requested from RECEIVED or, as a retry, from PAYMENT_FAILED. If the
// publish fails the transition is compensated back to the previous
// status, so the order never sits in PAYMENT_PENDING with no request
// in flight.
func (s *OrderService) RequestPayment(id uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	from := order.Status
	if from != models.StatusReceived && from != models.StatusPaymentFailed {
		return nil, fmt.Errorf("%w: order %d is %s", ErrNotPayable, id, from)
	}

	updated, err := s.orderRepo.UpdateStatus(id, from, models.StatusPaymentPending)
	if err != nil {
		if errors.Is(err, repositories.ErrStaleStatus) {
			return nil, fmt.Errorf("%w: order %d is no longer %s", ErrNotPayable, id, from)
		}
		return nil, err
	}

	request := models.PaymentRequest{
		OrderID:       updated.ID,
		Amount:        updated.TotalPrice,
		CorrelationID: uuid.New().String(),
	}
	if updated.CustomerCPF != nil {
		request.Customer = &models.CustomerRef{CPF: *updated.CustomerCPF}
		if updated.CustomerName != nil {
			request.Customer.Name = *updated.CustomerName
		}
		if updated.CustomerEmail != nil {
			request.Customer.Email = *updated.CustomerEmail
		}
	}

	body, err := json.Marshal(request)
	if err != nil {
		s.revertPaymentPending(id, from)
		return nil, fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}

	if err := s.publisher.Publish(models.PaymentRequestQueue, body); err != nil {
		s.revertPaymentPending(id, from)
		return nil, fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}

	log.Printf("payment requested for order %d (correlation %s, amount %s)",
		updated.ID, request.CorrelationID, request.Amount)
	return updated, nil
}

func (s *OrderService) revertPaymentPending(id uint, previous models.OrderStatus) {
	if _, err := s.orderRepo.UpdateStatus(id, models.StatusPaymentPending, previous); err != nil {
		// The order is stuck in PAYMENT_PENDING; operators need the id.
		log.Printf("CRITICAL: failed to revert order %d to %s after publish failure: %v", id, previous, err)
	}
}

// ApplyPaymentOutcome drives the state machine from an asynchronous
// payment result. The apply is idempotent with respect to the order's
// current state: if the order already left PAYMENT_PENDING the event is
// a duplicate (or stale) delivery and becomes a logged no-op.
func (s *OrderService) ApplyPaymentOutcome(orderID uint, outcome string) error {
	var next models.OrderStatus
	switch outcome {
	case models.PaymentApproved:
		// Approved payments return the order to RECEIVED; staff moves
		// it on to PREPARING from there.
		next = models.StatusReceived
	case models.PaymentDeclined:
		next = models.StatusPaymentFailed
	default:
		return fmt.Errorf("unknown payment outcome %q for order %d", outcome, orderID)
	}

	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order.Status != models.StatusPaymentPending {
		log.Printf("duplicate payment outcome %q for order %d ignored (status %s)", outcome, orderID, order.Status)
		return nil
	}

	if _, err := s.orderRepo.UpdateStatus(orderID, models.StatusPaymentPending, next); err != nil {
		if errors.Is(err, repositories.ErrStaleStatus) {
			// A concurrent delivery already applied an outcome.
			log.Printf("payment outcome %q for order %d lost the race, ignored", outcome, orderID)
			return nil
		}
		return err
	}

	log.Printf("order %d moved to %s after %s payment", orderID, next, outcome)
	return nil
}

// mergeItems collapses duplicate product ids by summing quantities,
// validating quantities along the way. A quantity of zero defaults to 1.
func mergeItems(items []ItemRequest) ([]ItemRequest, error) {
	merged := make([]ItemRequest, 0, len(items))
	index := make(map[string]int, len(items))

	for _, item := range items {
		if item.Quantity == 0 {
			item.Quantity = 1
		}
		if item.Quantity < 0 {
			return nil, fmt.Errorf("%w: product %s has quantity %d", ErrInvalidQuantity, item.ProductID, item.Quantity)
		}
		if pos, ok := index[item.ProductID]; ok {
			merged[pos].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}

	return merged, nil
}
