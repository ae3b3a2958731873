package handlers

import (
	"errors"
	"fmt"
	"log"

	"lanchonete/internal/gateways"
	"lanchonete/internal/models"
	"lanchonete/internal/repositories"
	"lanchonete/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleListOrders)
	orderRoutes.Post("/checkout", h.HandleCheckout)
	orderRoutes.Get("/:id", h.HandleGetOrder)
	orderRoutes.Put("/:id", h.HandleUpdateOrderStatus)
	orderRoutes.Delete("/:id", h.HandleDeleteOrder)
	orderRoutes.Post("/:id/request-payment", h.HandleRequestPayment)
}

// CheckoutItem is one line of a checkout request body.
type CheckoutItem struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"omitempty,gte=1"`
}

// CheckoutRequest is the body of POST /orders/checkout.
type CheckoutRequest struct {
	Items []CheckoutItem `json:"items" validate:"required,min=1,dive"`
	CPF   string         `json:"cpf" validate:"omitempty,len=11,numeric"`
}

// HandleCheckout creates a new order from the requested items.
func (h *OrderHandler) HandleCheckout(c *fiber.Ctx) error {
	var req CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing checkout request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	if err := h.validate.Struct(req); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		errorMessages := make(map[string]string)
		for _, e := range validationErrors {
			errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  errorMessages,
		})
	}

	items := make([]services.ItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, services.ItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	order, err := h.service.CreateOrder(c.UserContext(), items, req.CPF)
	if err != nil {
		log.Printf("Error creating order: %v", err)
		return respondError(c, err, "Could not create order")
	}

	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleListOrders retrieves all orders, most actionable first.
func (h *OrderHandler) HandleListOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListOrders()
	if err != nil {
		log.Printf("Error listing orders: %v", err)
		return respondError(c, err, "Could not retrieve orders")
	}
	return c.JSON(orders)
}

// HandleGetOrder retrieves a single order by its id.
func (h *OrderHandler) HandleGetOrder(c *fiber.Ctx) error {
	id, err := orderID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid order id",
		})
	}

	order, err := h.service.GetOrder(id)
	if err != nil {
		log.Printf("Error getting order %d: %v", id, err)
		return respondError(c, err, "Could not retrieve order")
	}
	return c.JSON(order)
}

// HandleUpdateOrderStatus applies a status transition to an order.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	id, err := orderID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid order id",
		})
	}

	var updateData struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&updateData); err != nil {
		log.Printf("Error parsing status update body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body for status update",
			"error":   err.Error(),
		})
	}

	status, err := models.ParseOrderStatus(updateData.Status)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid order status",
			"error":   err.Error(),
		})
	}

	order, err := h.service.UpdateOrderStatus(id, status)
	if err != nil {
		log.Printf("Error updating status of order %d: %v", id, err)
		return respondError(c, err, "Could not update order status")
	}
	return c.JSON(order)
}

// HandleDeleteOrder hard-deletes an order and its items.
func (h *OrderHandler) HandleDeleteOrder(c *fiber.Ctx) error {
	id, err := orderID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid order id",
		})
	}

	if err := h.service.DeleteOrder(id); err != nil {
		log.Printf("Error deleting order %d: %v", id, err)
		return respondError(c, err, "Could not delete order")
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Order %d deleted", id),
	})
}

// HandleRequestPayment starts the payment flow for an order.
func (h *OrderHandler) HandleRequestPayment(c *fiber.Ctx) error {
	id, err := orderID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid order id",
		})
	}

	order, err := h.service.RequestPayment(id)
	if err != nil {
		log.Printf("Error requesting payment for order %d: %v", id, err)
		return respondError(c, err, "Could not request payment")
	}
	return c.Status(fiber.StatusAccepted).JSON(order)
}

func orderID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid order id %q", c.Params("id"))
	}
	return uint(id), nil
}

// respondError maps the domain error taxonomy onto HTTP status codes.
func respondError(c *fiber.Ctx, err error, message string) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, repositories.ErrOrderNotFound),
		errors.Is(err, gateways.ErrProductNotFound),
		errors.Is(err, gateways.ErrCustomerNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrInvalidStatus),
		errors.Is(err, services.ErrEmptyItems),
		errors.Is(err, services.ErrInvalidQuantity),
		errors.Is(err, services.ErrProductUnavailable),
		errors.Is(err, services.ErrNotPayable):
		status = fiber.StatusBadRequest
	case errors.Is(err, gateways.ErrServiceUnavailable):
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{
		"message": message,
		"error":   err.Error(),
	})
}
