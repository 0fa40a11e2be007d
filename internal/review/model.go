package review

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

const (
	MinRating = 1
	MaxRating = 5

	ReasonAlreadyReviewed = "Already reviewed"
	ReasonNotPurchased    = "Not purchased"
)

type Review struct {
	ID         uuid.UUID  `json:"id"`
	ProductID  uuid.UUID  `json:"productId"`
	UserID     uuid.UUID  `json:"userId"`
	OrderID    *uuid.UUID `json:"orderId,omitempty"`
	Rating     int        `json:"rating"`
	Comment    *string    `json:"comment"`
	IsVerified bool       `json:"isVerified"`
	UserName   string     `json:"userName,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

type Eligibility struct {
	CanReview bool   `json:"canReview"`
	Reason    string `json:"reason,omitempty"`
}

// AggregateRating is the mean of ratings rounded to one decimal place,
// together with the count. No ratings gives 0.0.
func AggregateRating(ratings []int) (decimal.Decimal, int) {
	if len(ratings) == 0 {
		return decimal.Zero, 0
	}

	sum := int64(0)
	for _, r := range ratings {
		sum += int64(r)
	}

	mean := decimal.NewFromInt(sum).Div(decimal.NewFromInt(int64(len(ratings))))
	return mean.Round(1), len(ratings)
}
