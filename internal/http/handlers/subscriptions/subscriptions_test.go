package subscriptions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-manager/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-manager/internal/models"
)

// MockService реализует интерфейс subscriptions.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Create(ctx context.Context, req models.NewSubscription) (*models.Subscription, error) {
	args := m.Called(ctx, req)
	s, _ := args.Get(0).(*models.Subscription)
	return s, args.Error(1)
}

func (m *MockService) Get(ctx context.Context, id int64) (*models.SubscriptionDetail, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*models.SubscriptionDetail)
	return s, args.Error(1)
}

func (m *MockService) List(ctx context.Context, limit, offset int) ([]*models.SubscriptionDetail, error) {
	args := m.Called(ctx, limit, offset)
	s, _ := args.Get(0).([]*models.SubscriptionDetail)
	return s, args.Error(1)
}

func (m *MockService) ListByUser(ctx context.Context, userID int64) ([]*models.Subscription, error) {
	args := m.Called(ctx, userID)
	s, _ := args.Get(0).([]*models.Subscription)
	return s, args.Error(1)
}

func (m *MockService) ActiveForUser(ctx context.Context, userID int64) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	s, _ := args.Get(0).(*models.Subscription)
	return s, args.Error(1)
}

func (m *MockService) Update(ctx context.Context, id int64, upd models.SubscriptionUpdate) (*models.Subscription, error) {
	args := m.Called(ctx, id, upd)
	s, _ := args.Get(0).(*models.Subscription)
	return s, args.Error(1)
}

func (m *MockService) Cancel(ctx context.Context, id int64) (*models.Subscription, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*models.Subscription)
	return s, args.Error(1)
}

func (m *MockService) Delete(ctx context.Context, id int64) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

func newRequest(method, url string, body any, key, value string) *http.Request {
	var buf io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		buf = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		buf = bytes.NewBuffer(raw)
	}
	r := httptest.NewRequest(method, url, buf)
	if key != "" {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add(key, value)
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	return r
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var start = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func activeSub(id int64) *models.Subscription {
	return &models.Subscription{ID: id, UserID: 1, PlanID: 2, Status: models.StatusActive, StartDate: start}
}

func TestCreateHandler(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    any
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:        "успешное создание",
			requestBody: map[string]any{"user_id": 1, "plan_id": 2, "start_date": "2025-03-01T00:00:00Z"},
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, mock.MatchedBy(func(req models.NewSubscription) bool {
					return req.UserID == 1 && req.PlanID == 2 && req.StartDate.Equal(start) && req.EndDate == nil
				})).Return(activeSub(10), nil)
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   `"status":"active"`,
		},
		{
			name:           "некорректный JSON",
			requestBody:    "{broken",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"failed to decode request"}`,
		},
		{
			name:           "ошибка валидации",
			requestBody:    map[string]any{"user_id": 0, "plan_id": 2},
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field UserID is a required field`,
		},
		{
			name:        "уже есть активная подписка",
			requestBody: map[string]any{"user_id": 1, "plan_id": 2, "start_date": "2025-03-01T00:00:00Z"},
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, mock.Anything).
					Return(nil, apperr.Conflict("user already has an active subscription"))
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `user already has an active subscription`,
		},
		{
			name:        "тариф не найден",
			requestBody: map[string]any{"user_id": 1, "plan_id": 99, "start_date": "2025-03-01T00:00:00Z"},
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, mock.Anything).Return(nil, apperr.NotFound("plan"))
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `plan not found`,
		},
		{
			name:        "ошибка сервиса",
			requestBody: map[string]any{"user_id": 1, "plan_id": 2, "start_date": "2025-03-01T00:00:00Z"},
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("tx aborted"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `could not create subscription`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)
			h := New(discardLogger(), svc)

			rr := httptest.NewRecorder()
			h.Create(rr, newRequest(http.MethodPost, "/subscriptions", tt.requestBody, "", ""))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}

func TestGetHandler(t *testing.T) {
	detail := &models.SubscriptionDetail{
		Subscription: *activeSub(10),
		User:         models.User{ID: 1, Email: "a@example.com", Mode: models.ModeLive},
		Plan:         models.Plan{ID: 2, Name: "Pro", Tier: models.TierPro, Price: decimal.RequireFromString("19.99")},
	}

	svc := new(MockService)
	svc.On("Get", mock.Anything, int64(10)).Return(detail, nil)
	svc.On("Get", mock.Anything, int64(11)).Return(nil, apperr.NotFound("subscription"))
	h := New(discardLogger(), svc)

	rr := httptest.NewRecorder()
	h.Get(rr, newRequest(http.MethodGet, "/subscriptions/10", nil, "id", "10"))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Status string                    `json:"status"`
		Data   models.SubscriptionDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "OK", body.Status)
	assert.Equal(t, int64(10), body.Data.ID)
	assert.Equal(t, "a@example.com", body.Data.User.Email)
	assert.Equal(t, models.TierPro, body.Data.Plan.Tier)

	rr = httptest.NewRecorder()
	h.Get(rr, newRequest(http.MethodGet, "/subscriptions/11", nil, "id", "11"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"status":"Error","error":"subscription not found"}`, rr.Body.String())

	svc.AssertExpectations(t)
}

func TestListHandler(t *testing.T) {
	svc := new(MockService)
	svc.On("List", mock.Anything, 20, 40).Return([]*models.SubscriptionDetail{}, nil)
	h := New(discardLogger(), svc)

	rr := httptest.NewRecorder()
	h.List(rr, newRequest(http.MethodGet, "/subscriptions?limit=20&offset=40", nil, "", ""))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.List(rr, newRequest(http.MethodGet, "/subscriptions?offset=x", nil, "", ""))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	svc.AssertExpectations(t)
}

func TestListByUserHandler(t *testing.T) {
	svc := new(MockService)
	svc.On("ListByUser", mock.Anything, int64(1)).Return([]*models.Subscription{activeSub(10), activeSub(11)}, nil)
	svc.On("ListByUser", mock.Anything, int64(2)).Return(nil, apperr.NotFound("user"))
	h := New(discardLogger(), svc)

	rr := httptest.NewRecorder()
	h.ListByUser(rr, newRequest(http.MethodGet, "/subscriptions/user/1", nil, "user_id", "1"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"id":11`)

	rr = httptest.NewRecorder()
	h.ListByUser(rr, newRequest(http.MethodGet, "/subscriptions/user/2", nil, "user_id", "2"))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	h.ListByUser(rr, newRequest(http.MethodGet, "/subscriptions/user/0", nil, "user_id", "0"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), `invalid user_id`)

	svc.AssertExpectations(t)
}

func TestActiveForUserHandler(t *testing.T) {
	svc := new(MockService)
	svc.On("ActiveForUser", mock.Anything, int64(1)).Return(activeSub(10), nil)
	svc.On("ActiveForUser", mock.Anything, int64(3)).Return(nil, apperr.NotFound("active subscription"))
	h := New(discardLogger(), svc)

	rr := httptest.NewRecorder()
	h.ActiveForUser(rr, newRequest(http.MethodGet, "/subscriptions/user/1/active", nil, "user_id", "1"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"id":10`)

	rr = httptest.NewRecorder()
	h.ActiveForUser(rr, newRequest(http.MethodGet, "/subscriptions/user/3/active", nil, "user_id", "3"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), `active subscription not found`)

	svc.AssertExpectations(t)
}

func TestUpdateHandler(t *testing.T) {
	cancelled := models.StatusCancelled
	planID := int64(5)

	tests := []struct {
		name           string
		id             string
		requestBody    any
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:        "смена тарифа",
			id:          "10",
			requestBody: map[string]any{"plan_id": 5},
			setupMock: func(m *MockService) {
				m.On("Update", mock.Anything, int64(10), models.SubscriptionUpdate{PlanID: &planID}).
					Return(activeSub(10), nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"id":10`,
		},
		{
			name:        "отмена через статус",
			id:          "10",
			requestBody: map[string]any{"status": "cancelled"},
			setupMock: func(m *MockService) {
				sub := activeSub(10)
				sub.Status = models.StatusCancelled
				m.On("Update", mock.Anything, int64(10), models.SubscriptionUpdate{Status: &cancelled}).
					Return(sub, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"cancelled"`,
		},
		{
			name:        "недопустимый переход",
			id:          "12",
			requestBody: map[string]any{"status": "active"},
			setupMock: func(m *MockService) {
				m.On("Update", mock.Anything, int64(12), mock.Anything).
					Return(nil, apperr.InvalidOperation("cannot change subscription status from expired to active"))
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `cannot change subscription status from expired to active`,
		},
		{
			name:           "неизвестный статус",
			id:             "10",
			requestBody:    map[string]any{"status": "paused"},
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `failed to decode request`,
		},
		{
			name:           "некорректный тариф",
			id:             "10",
			requestBody:    map[string]any{"plan_id": -1},
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field PlanID must be greater than 0`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)
			h := New(discardLogger(), svc)

			rr := httptest.NewRecorder()
			h.Update(rr, newRequest(http.MethodPatch, "/subscriptions/"+tt.id, tt.requestBody, "id", tt.id))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}

func TestCancelHandler(t *testing.T) {
	now := time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)
	cancelled := activeSub(10)
	cancelled.Status = models.StatusCancelled
	cancelled.CancelledAt = &now

	svc := new(MockService)
	svc.On("Cancel", mock.Anything, int64(10)).Return(cancelled, nil).Once()
	svc.On("Cancel", mock.Anything, int64(10)).
		Return(nil, apperr.InvalidOperation("only active subscriptions can be cancelled")).Once()
	h := New(discardLogger(), svc)

	rr := httptest.NewRecorder()
	h.Cancel(rr, newRequest(http.MethodPost, "/subscriptions/10/cancel", nil, "id", "10"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"cancelled_at":"2025-03-15T09:00:00Z"`)

	rr = httptest.NewRecorder()
	h.Cancel(rr, newRequest(http.MethodPost, "/subscriptions/10/cancel", nil, "id", "10"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), `only active subscriptions can be cancelled`)

	svc.AssertExpectations(t)
}

func TestDeleteHandler(t *testing.T) {
	svc := new(MockService)
	svc.On("Delete", mock.Anything, int64(10)).Return(1, nil)
	svc.On("Delete", mock.Anything, int64(11)).Return(0, apperr.NotFound("subscription"))
	h := New(discardLogger(), svc)

	rr := httptest.NewRecorder()
	h.Delete(rr, newRequest(http.MethodDelete, "/subscriptions/10", nil, "id", "10"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"OK","data":{"deleted_count":1}}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.Delete(rr, newRequest(http.MethodDelete, "/subscriptions/11", nil, "id", "11"))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	svc.AssertExpectations(t)
}
