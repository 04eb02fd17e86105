package exporters

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRedisExporterAppliesDefaults(t *testing.T) {
	exp := NewRedisExporter(RedisConfig{Addr: "localhost:6379"})
	defer exp.Close()

	assert.Equal(t, "redis", exp.Name())
	assert.Equal(t, "llamabridge:metrics", exp.stream)
	assert.EqualValues(t, 10000, exp.maxLen)
}

func TestNewRedisExporterHonorsConfiguredStream(t *testing.T) {
	exp := NewRedisExporter(RedisConfig{Addr: "localhost:6379", Stream: "custom", MaxLen: 50})
	defer exp.Close()

	assert.Equal(t, "custom", exp.stream)
	assert.EqualValues(t, 50, exp.maxLen)
}
