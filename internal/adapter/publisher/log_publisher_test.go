package publisher

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epandurski/swpt-debtors/internal/domain"
)

func TestLogPublisher_Publish(t *testing.T) {
	log, hook := test.NewNullLogger()
	msg := &domain.OutboxMessage{
		ID:       3,
		Kind:     domain.KindConfigureAccount,
		DebtorID: -1,
		Payload:  []byte(`{"debtor_id":"-1"}`),
	}

	err := NewLogPublisher(log).Publish(context.Background(), msg)

	require.NoError(t, err)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, domain.KindConfigureAccount, entry.Data["kind"])
	assert.Equal(t, int64(-1), entry.Data["debtor_id"])
	assert.Equal(t, `{"debtor_id":"-1"}`, entry.Data["payload"])
}
