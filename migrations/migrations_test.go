package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedSchemaCoversEveryTable(t *testing.T) {
	names, err := Names()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "0001_init.sql", names[0])

	body, err := files.ReadFile(names[0])
	require.NoError(t, err)
	schema := string(body)
	for _, table := range []string{
		"products", "stock_logs", "stores", "store_prices", "employees",
		"orders", "order_items", "deliveries", "delivery_orders", "delivery_workers",
		"payments", "idempotency_keys", "activity_logs", "settings",
	} {
		assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table+" (", table)
	}
	assert.True(t, strings.Contains(schema, "idempotency_key TEXT UNIQUE"))
}
