package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/showcase/core"
)

func TestRollbarLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(log.New(&buf, "", 0), &core.Config{Env: "TEST", Debug: true})

	logger.Warn("contributor search failed", errors.New("timeout"), core.Person{ID: "u1"})
	logger.Info("project submitted", map[string]interface{}{"project_id": "p1"})

	out := buf.String()
	assert.Contains(t, out, "WARN: contributor search failed")
	assert.Contains(t, out, "timeout")
	assert.Contains(t, out, "INFO: project submitted")
	assert.Contains(t, out, "project_id:p1")
}
