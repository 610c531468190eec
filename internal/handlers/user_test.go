package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"geochat-service/internal/config"
	"geochat-service/internal/mocks"
	"geochat-service/internal/models"
	"geochat-service/internal/services"
)

func setupUserRouter(users *mocks.UserRepositoryMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewUserHandler(services.NewProximityService(users, config.GeoConfig{DefaultRadiusKm: 5}))
	r := gin.New()
	r.Use(withUser(1))
	r.PUT("/api/users/me/location", handler.UpdateLocation)
	r.GET("/api/users/nearby", handler.Nearby)
	return r
}

func ptr(v float64) *float64 { return &v }

func TestUpdateLocationSuccess(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	router := setupUserRouter(users)

	users.On("UpdateLocation", mock.Anything, int64(1), 40.4168, -3.7038).Return(nil).Once()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/users/me/location", bytes.NewBufferString(`{"latitude":40.4168,"longitude":-3.7038}`))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Location updated successfully","latitude":40.4168,"longitude":-3.7038}`, rec.Body.String())
	users.AssertExpectations(t)
}

func TestUpdateLocationAcceptsZero(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	router := setupUserRouter(users)

	users.On("UpdateLocation", mock.Anything, int64(1), 0.0, 0.0).Return(nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/users/me/location", bytes.NewBufferString(`{"latitude":0,"longitude":0}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	users.AssertExpectations(t)
}

func TestUpdateLocationInvalid(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	router := setupUserRouter(users)

	for _, body := range []string{`{"latitude":95,"longitude":0}`, `{"latitude":10}`, `{"latitude":10,"longitude":-200}`} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/users/me/location", bytes.NewBufferString(body)))
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	users.AssertNotCalled(t, "UpdateLocation", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestNearbyRoundsDistances(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	router := setupUserRouter(users)

	users.On("GetByID", mock.Anything, int64(1)).Return(models.User{ID: 1, Latitude: ptr(40.4168), Longitude: ptr(-3.7038), IsActive: true}, nil).Once()
	users.On("ListEligibleExcept", mock.Anything, int64(1)).Return([]models.NearbyUser{
		{ID: 2, Name: "Beto", Email: "beto@example.com", Latitude: 40.42, Longitude: -3.71},
	}, nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/nearby", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.EqualValues(t, 1, resp["count"])
	found := resp["users"].([]any)[0].(map[string]any)
	assert.Equal(t, "beto@example.com", found["email"])
	d := found["distance_km"].(float64)
	assert.InDelta(t, 0.62, d, 0.05)
	assert.Equal(t, d, float64(int(d*100+0.5))/100)
	users.AssertExpectations(t)
}

func TestNearbyLocationNotSet(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	router := setupUserRouter(users)

	users.On("GetByID", mock.Anything, int64(1)).Return(models.User{ID: 1, Latitude: ptr(40.4168)}, nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/nearby?radius=2", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "LOCATION_NOT_SET", decode(t, rec)["error"])
}

func TestNearbyBadRadius(t *testing.T) {
	router := setupUserRouter(new(mocks.UserRepositoryMock))

	for _, q := range []string{"abc", "0", "-3", "NaN", "Inf"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/nearby?radius="+q, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}
