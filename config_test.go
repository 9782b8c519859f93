package mysqlcdc

import (
	"testing"

	"github.com/neverchanje/chgcap-mysql/cdcerrors"
	"github.com/stretchr/testify/assert"
)

func TestConfig_ValidateRequiresHostnameAndUsername(t *testing.T) {
	c := Config{Port: 3306}
	err := c.Validate()
	assert.True(t, cdcerrors.Is(err, cdcerrors.ConfigInvalid))

	c = Config{Hostname: "db", Port: 3306}
	err = c.Validate()
	assert.True(t, cdcerrors.Is(err, cdcerrors.ConfigInvalid))

	c = Config{Hostname: "db", Username: "root", Port: 3306}
	assert.NoError(t, c.Validate())
}

func TestConfig_ValidatePortRange(t *testing.T) {
	c := Config{Hostname: "db", Username: "root", Port: 0}
	assert.Error(t, c.Validate())

	c.Port = 70000
	assert.Error(t, c.Validate())
}

func TestConfig_WithDefaults(t *testing.T) {
	c := Config{Hostname: "db", Username: "root", Port: 3306}
	d := c.withDefaults()
	assert.NotZero(t, d.ServerID)
	assert.NotNil(t, d.ServerTimezone)
	assert.NotZero(t, d.ConnectTimeout)
	assert.NotZero(t, d.TxnBufferCapacity)
}

func TestConfig_Addr(t *testing.T) {
	c := Config{Hostname: "db.internal", Port: 3306}
	assert.Equal(t, "db.internal:3306", c.Addr())
}
