package clickhouse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildDSN(t *testing.T) {
	dsn := BuildDSN(ClientConfig{
		Host:        "ch",
		Port:        9000,
		Database:    "market",
		User:        "default",
		Password:    "p@ss",
		DialTimeout: 5 * time.Second,
		MaxExecTime: 30 * time.Second,
	})

	assert.Equal(t, "clickhouse://default:p%40ss@ch:9000/market?dial_timeout=5s&max_execution_time=30", dsn)
}

func TestBuildDSNHTTP(t *testing.T) {
	dsn := BuildDSN(ClientConfig{Host: "ch", Port: 8123, Database: "market", User: "u", UseHTTP: true})
	assert.Equal(t, "http://u:@ch:8123/market", dsn)
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient()
	assert.Error(t, err)
}
