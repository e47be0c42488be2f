package llmclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripFencesPlain(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences(`{"a":1}`))
}

func TestStripFencesJSONLabeled(t *testing.T) {
	in := "```json\n{\"a\":1}\n```"
	assert.Equal(t, `{"a":1}`, stripFences(in))
}

func TestStripFencesBare(t *testing.T) {
	in := "```\n{\"a\":1}\n```"
	assert.Equal(t, `{"a":1}`, stripFences(in))
}

func TestIsRetryableRateLimit(t *testing.T) {
	assert.True(t, isRetryable(assertErr("rate limit exceeded")))
	assert.True(t, isRetryable(assertErr("502 Bad Gateway")))
	assert.False(t, isRetryable(assertErr("invalid api key")))
	assert.False(t, isRetryable(nil))
}

type stringErr string

func (e stringErr) Error() string { return string(e) }

func assertErr(msg string) error { return stringErr(msg) }
