package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/i474232898/weather-risk/internal/auth"
	"github.com/i474232898/weather-risk/internal/prediction"
	"github.com/i474232898/weather-risk/internal/store"
	"github.com/i474232898/weather-risk/internal/weather"
)

var validate = validator.New()

// PredictionService is the prediction workflow exposed over HTTP.
type PredictionService interface {
	Predict(ctx context.Context, q prediction.Query, email string) (prediction.Result, error)
	Trends(ctx context.Context, q prediction.Query, date string) (prediction.Trends, error)
	Recent(ctx context.Context, limit int, email string) ([]store.Prediction, error)
}

// AuthService registers and authenticates accounts.
type AuthService interface {
	Register(ctx context.Context, email, password, fullName string) (store.User, error)
	Login(ctx context.Context, email, password string) (store.User, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, predictions PredictionService, accounts AuthService) {
	app.Post("/predict", func(c *fiber.Ctx) error {
		var req predictRequest
		if err := bindJSON(c, &req); err != nil {
			return err
		}

		q, err := req.query()
		if err != nil {
			return err
		}

		res, err := predictions.Predict(c.UserContext(), q, req.Email)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(res)
	})

	app.Post("/weather-trends", func(c *fiber.Ctx) error {
		var req trendsRequest
		if err := bindJSON(c, &req); err != nil {
			return err
		}

		q, err := req.query()
		if err != nil {
			return err
		}

		trends, err := predictions.Trends(c.UserContext(), q, req.Date)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(trends)
	})

	app.Get("/recent-predictions", func(c *fiber.Ctx) error {
		limit := prediction.DefaultRecentLimit
		if s := c.Query("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				return fiber.NewError(fiber.StatusBadRequest, "limit must be a positive integer")
			}
			limit = n
		}

		items, err := predictions.Recent(c.UserContext(), limit, c.Query("email"))
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(items)
	})

	authGroup := app.Group("/api/auth")

	authGroup.Post("/register", func(c *fiber.Ctx) error {
		var req registerRequest
		if err := bindJSON(c, &req); err != nil {
			return err
		}

		if _, err := accounts.Register(c.UserContext(), req.Email, req.Password, req.FullName); err != nil {
			return toHTTPError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "User registered successfully"})
	})

	authGroup.Post("/login", func(c *fiber.Ctx) error {
		var req loginRequest
		if err := bindJSON(c, &req); err != nil {
			return err
		}

		u, err := accounts.Login(c.UserContext(), req.Email, req.Password)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(fiber.Map{
			"message": "Login successful",
			"user": fiber.Map{
				"email":    u.Email,
				"fullName": u.FullName,
			},
		})
	})
}

// RegisterOperational adds the liveness and metrics endpoints.
func RegisterOperational(app *fiber.App, service string, metrics http.Handler) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "Backend running"})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": service,
		})
	})

	if metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(metrics))
	}
}

// ErrorHandler renders every error with the same envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// toHTTPError maps domain errors onto status codes.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, weather.ErrInvalidInput):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, weather.ErrPlaceNotFound):
		return fiber.NewError(fiber.StatusBadRequest, "Location not found")
	case errors.Is(err, prediction.ErrWeatherUnavailable):
		return fiber.NewError(fiber.StatusBadGateway, "Weather fetch failed")
	case errors.Is(err, weather.ErrTimelineUnavailable):
		return fiber.NewError(fiber.StatusBadGateway, "Weather trends fetch failed")
	case errors.Is(err, auth.ErrMissingCredentials),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrPasswordTooLong):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrUserExists):
		return fiber.NewError(fiber.StatusBadRequest, "User already exists")
	case errors.Is(err, auth.ErrInvalidCredentials):
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusGatewayTimeout, "upstream timeout")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "Internal server error")
	}
}

func bindJSON(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "No input provided")
	}
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// locationRequest names a place by free text or by coordinates.
type locationRequest struct {
	City string   `json:"city" validate:"max=200"`
	Lat  *float64 `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lon  *float64 `json:"lon" validate:"omitempty,gte=-180,lte=180"`
}

// query prefers coordinates over the city. A lone lat or lon is rejected.
func (l locationRequest) query() (prediction.Query, error) {
	if (l.Lat == nil) != (l.Lon == nil) {
		return prediction.Query{}, fiber.NewError(fiber.StatusBadRequest, "lat and lon must be given together")
	}
	q := prediction.Query{Text: l.City}
	if l.Lat != nil {
		q.At = &weather.Coordinates{Lat: *l.Lat, Lon: *l.Lon}
	}
	return q, nil
}

type predictRequest struct {
	locationRequest
	Email string `json:"email" validate:"max=254"`
}

type trendsRequest struct {
	locationRequest
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// Presence and password rules are enforced by the auth service.
type registerRequest struct {
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password"`
	FullName string `json:"fullName" validate:"max=200"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
