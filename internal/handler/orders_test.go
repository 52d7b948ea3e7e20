package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/testutil"
)

func TestOrderCreateAppliesDefaultPriority(t *testing.T) {
	t.Parallel()

	orders := testutil.NewFakeOrderRepository()
	h := NewOrderHandler(orders)

	c, w := newTestContext(http.MethodPost, "/orders", CreateOrderRequest{
		Pickup:  LatLng{Lat: 1, Lng: 1},
		Dropoff: LatLng{Lat: 1.02, Lng: 1.02},
	})
	h.Create(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("Create() status = %d, want 201, body: %s", w.Code, w.Body.String())
	}
	var resp OrderResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.BasePriority != 5 {
		t.Errorf("BasePriority = %d, want default 5", resp.BasePriority)
	}
	if resp.Status != string(domain.OrderStatusPending) {
		t.Errorf("Status = %s, want pending", resp.Status)
	}
}

func TestOrderCreateEnqueuesMatchingTrigger(t *testing.T) {
	t.Parallel()

	orders := testutil.NewFakeOrderRepository()
	queue := testutil.NewFakeQueue()
	h := NewOrderHandler(orders).WithQueue(queue)

	c, w := newTestContext(http.MethodPost, "/orders", CreateOrderRequest{
		Pickup:  LatLng{Lat: 1, Lng: 1},
		Dropoff: LatLng{Lat: 1.02, Lng: 1.02},
	})
	h.Create(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("Create() status = %d, want 201, body: %s", w.Code, w.Body.String())
	}
	jobs := queue.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("Create() enqueued %d jobs, want 1", len(jobs))
	}
	if jobs[0].Reason != "order_created" {
		t.Errorf("enqueued job Reason = %q, want order_created", jobs[0].Reason)
	}
}

func TestOrderCreateRejectsInvalidCoordinates(t *testing.T) {
	t.Parallel()

	h := NewOrderHandler(testutil.NewFakeOrderRepository())
	c, w := newTestContext(http.MethodPost, "/orders", CreateOrderRequest{
		Pickup:  LatLng{Lat: 999, Lng: 1},
		Dropoff: LatLng{Lat: 1, Lng: 1},
	})
	h.Create(c)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Create() with invalid pickup coordinates status = %d, want 400", w.Code)
	}
}

func TestOrderGetReturnsNotFoundForMissingOrder(t *testing.T) {
	t.Parallel()

	h := NewOrderHandler(testutil.NewFakeOrderRepository())
	c, w := newTestContext(http.MethodGet, "/orders/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	h.Get(c)

	if w.Code != http.StatusNotFound {
		t.Errorf("Get() for a missing order status = %d, want 404", w.Code)
	}
}

func TestOrderGetReturnsExistingOrder(t *testing.T) {
	t.Parallel()

	orders := testutil.NewFakeOrderRepository()
	orders.AddOrder(&domain.Order{ID: "order-1", Status: domain.OrderStatusPending, BasePriority: 7})
	h := NewOrderHandler(orders)

	c, w := newTestContext(http.MethodGet, "/orders/order-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "order-1"}}
	h.Get(c)

	if w.Code != http.StatusOK {
		t.Fatalf("Get() status = %d, want 200", w.Code)
	}
	var resp OrderResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "order-1" {
		t.Errorf("ID = %s, want order-1", resp.ID)
	}
}
