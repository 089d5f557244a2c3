package negotiation

import (
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// InvalidPriceMessage is shown for any draft that is not a positive number.
const InvalidPriceMessage = "Please enter a valid price greater than 0"

var validate = validator.New()

type priceInput struct {
	Price float64 `validate:"gt=0"`
}

// ValidationError is a local input failure. No request was sent.
type ValidationError struct {
	Input   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ParsePrice parses a draft into a finite price greater than zero.
func ParsePrice(draft string) (float64, error) {
	text := strings.TrimSpace(draft)
	invalid := &ValidationError{Input: draft, Message: InvalidPriceMessage}

	price, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, invalid
	}
	if err := validate.Struct(priceInput{Price: price}); err != nil {
		return 0, invalid
	}
	return price, nil
}
