package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"simbot/internal/domain"
	"simbot/internal/service"
)

func TestValidateOrderAcceptsSample(t *testing.T) {
	assert.NoError(t, service.ValidateOrder(sampleOrder()))
}

func TestValidateOrderReportsEveryProblem(t *testing.T) {
	order := sampleOrder()
	order.Phone = "12345"
	order.Delivery.Branch = "центральне"
	order.Items[0].Quantity = 500000

	err := service.ValidateOrder(order)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 3)
	assert.ErrorIs(t, err, service.ErrWrongPhone)
	assert.ErrorIs(t, err, service.ErrWrongBranch)
	assert.ErrorIs(t, err, service.ErrWrongQuantity)

	assert.Equal(t, []domain.Field{domain.FieldPhone, domain.FieldDelivery, domain.FieldItems}, service.InvalidFields(err))
}

func TestClearFields(t *testing.T) {
	got := service.ClearFields(sampleOrder(), []domain.Field{domain.FieldPhone, domain.FieldItems})

	assert.Empty(t, got.Phone)
	assert.Empty(t, got.Items)
	assert.Equal(t, "Jane Doe", got.FullName)
	assert.Equal(t, service.MissingFields(got), []domain.Field{domain.FieldPhone, domain.FieldItems})
}
