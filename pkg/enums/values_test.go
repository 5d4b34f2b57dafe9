package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIsExact(t *testing.T) {
	got, err := ParseOrderStatus("PENDING_PAYMENT")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusPendingPayment, got)

	_, err = ParseOrderStatus("pending_payment")
	require.EqualError(t, err, `invalid order status "pending_payment"`)

	_, err = ParseCurrency("")
	assert.Error(t, err)
}

func TestOrderStatusesReturnsCopy(t *testing.T) {
	all := OrderStatuses()
	require.Len(t, all, 9)
	assert.Equal(t, OrderStatusPendingPayment, all[0])

	all[0] = "MUTATED"
	assert.Equal(t, OrderStatusPendingPayment, OrderStatuses()[0])
}

func TestIsValid(t *testing.T) {
	assert.True(t, PaymentMethodCard.IsValid())
	assert.False(t, PaymentMethod("CHEQUE").IsValid())
	assert.True(t, OutboxDLQReasonNonRetryable.IsValid())
	assert.True(t, ActorRoleSystem.IsPrivileged())
	assert.False(t, ActorRoleCustomer.IsPrivileged())
}
