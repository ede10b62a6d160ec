package middleware

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// CircuitBreaker sheds API load with 503 once handler failures pass 60% of
// at least three requests in a minute.
func CircuitBreaker(name string, log *zap.Logger) fiber.Handler {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return fe.Code < fiber.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return func(c *fiber.Ctx) error {
		_, err := cb.Execute(func() (interface{}, error) {
			if err := c.Next(); err != nil {
				return nil, err
			}
			if c.Response().StatusCode() >= fiber.StatusInternalServerError {
				return nil, fiber.NewError(c.Response().StatusCode())
			}
			return nil, nil
		})

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Service temporarily unavailable",
			})
		}
		var fe *fiber.Error
		if errors.As(err, &fe) && fe.Code >= fiber.StatusInternalServerError && c.Response().StatusCode() == fe.Code {
			// Handler already wrote the 5xx response.
			return nil
		}
		return err
	}
}
