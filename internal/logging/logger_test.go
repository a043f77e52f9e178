package logging

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecretRedaction(t *testing.T) {
	s := Secret("sk_live_supersecret")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%#v", s))
}

func TestRedact(t *testing.T) {
	out := Redact("token=sk_live_abc123 used", []string{"sk_live_abc123"})
	assert.Equal(t, "token=[REDACTED] used", out)
}

func TestRedactSkipsTrivialValues(t *testing.T) {
	out := Redact("x=abc", []string{"abc", ""})
	assert.Equal(t, "x=abc", out)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "***", Mask(""))
	assert.Equal(t, "***", Mask("abcd"))
	assert.Equal(t, "***3456", Mask("123456"))
	assert.Equal(t, "***cdef", Mask("sk_live_abcdef"))
}
