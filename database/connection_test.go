package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db:3306", User: "shop", Password: "pw", DBName: "storefront"}

	dsn := cfg.DSN()

	assert.Equal(t, "shop:pw@tcp(db:3306)/storefront?parseTime=true&loc=UTC&multiStatements=true", dsn)
	// A held order lock is only refused when unchanged rows count as zero.
	assert.NotContains(t, dsn, "clientFoundRows")
}
