package analytics

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidInput fails a whole call before any upstream work happens.
var ErrInvalidInput = errors.New("invalid input")

var validate = validator.New(validator.WithRequiredStructEnabled())

var portfolioDays = map[string]int{"30d": 30, "90d": 90, "1y": 365}

var tokenDays = map[string]int{"24h": 1, "7d": 7, "30d": 30}

type PortfolioRequest struct {
	PortfolioID string `json:"portfolioId" validate:"required,max=128"`
	Timeframe   string `json:"timeframe" validate:"required,oneof=30d 90d 1y"`
}

func (r PortfolioRequest) Days() int { return portfolioDays[r.Timeframe] }

type TokenRequest struct {
	TokenID   string `json:"tokenId" validate:"required,max=128"`
	Timeframe string `json:"timeframe" validate:"required,oneof=24h 7d 30d"`
}

func (r TokenRequest) Days() int { return tokenDays[r.Timeframe] }

type PriceRequest struct {
	TokenIDs []string `json:"ids" validate:"required,min=1,max=250,dive,required,max=128"`
}

func check(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
}

// ReportKey is the store key for the latest report of a kind.
func ReportKey(kind, id, timeframe string) string {
	return kind + ":" + id + ":" + timeframe
}
