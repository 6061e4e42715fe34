package service

import (
	"errors"

	"go.uber.org/multierr"

	"simbot/internal/domain"
)

var (
	ErrWrongPhone    = errors.New("phone number is not correct")
	ErrWrongBranch   = errors.New("branch number is not correct")
	ErrWrongQuantity = errors.New("quantity is not correct")
)

const maxItemQuantity = 100000

// ValidationError carries the field the customer has to send again.
type ValidationError struct {
	Type    string
	Field   domain.Field
	Message string
	Details map[string]interface{}
	Err     error
}

func (e ValidationError) Error() string {
	return e.Message
}

func (e ValidationError) Unwrap() error {
	return e.Err
}

// ValidateOrder checks a complete draft before it is accepted. Every problem
// is reported, combined with multierr.
func ValidateOrder(order domain.OrderDraft) error {
	var errs error

	digits := nonDigitRe.ReplaceAllString(order.Phone, "")
	if len(digits) < 9 || len(digits) > 13 {
		errs = multierr.Append(errs, ValidationError{
			Type:    "wrong_phone",
			Field:   domain.FieldPhone,
			Message: "phone number is not correct",
			Details: map[string]interface{}{"digits": len(digits)},
			Err:     ErrWrongPhone,
		})
	}

	if order.Delivery.HasBranch() && !order.Delivery.HasAddress() && digitsRe.FindString(order.Delivery.Branch) == "" {
		errs = multierr.Append(errs, ValidationError{
			Type:    "wrong_branch",
			Field:   domain.FieldDelivery,
			Message: "branch number is not correct",
			Details: map[string]interface{}{"branch": order.Delivery.Branch},
			Err:     ErrWrongBranch,
		})
	}

	for _, item := range order.Items {
		if item.Quantity > maxItemQuantity {
			errs = multierr.Append(errs, ValidationError{
				Type:    "wrong_quantity",
				Field:   domain.FieldItems,
				Message: "quantity is not correct",
				Details: map[string]interface{}{"country": item.Country, "qty": item.Quantity},
				Err:     ErrWrongQuantity,
			})
			break
		}
	}

	return errs
}

// InvalidFields lists the fields named by the validation errors in err, in
// prompt order.
func InvalidFields(err error) []domain.Field {
	if err == nil {
		return nil
	}
	bad := map[domain.Field]bool{}
	for _, e := range multierr.Errors(err) {
		var ve ValidationError
		if errors.As(e, &ve) {
			bad[ve.Field] = true
		}
	}
	var out []domain.Field
	for _, f := range domain.RequiredFields {
		if bad[f] {
			out = append(out, f)
		}
	}
	return out
}

// ClearFields drops the given fields from the draft so they are asked again.
func ClearFields(draft domain.OrderDraft, fields []domain.Field) domain.OrderDraft {
	out := draft.Clone()
	for _, f := range fields {
		switch f {
		case domain.FieldName:
			out.FullName = ""
		case domain.FieldPhone:
			out.Phone = ""
		case domain.FieldDelivery:
			out.Delivery = domain.Delivery{}
		case domain.FieldItems:
			out.Items = nil
		}
	}
	return out
}
