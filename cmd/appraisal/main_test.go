package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staff-appraisal/pkg/staff"
	"staff-appraisal/pkg/workflow"
)

// run executes the root command against a fresh in-memory store.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("APPRAISAL_STORAGE_DRIVER", "memory")
	t.Setenv("APPRAISAL_LOG_LEVEL", "error")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		if instance != nil {
			instance.Close()
			instance = nil
		}
		jsonOut = false
	})
	err := rootCmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestRegisterStaffPrintsRecord(t *testing.T) {
	out, err := run(t, "staff", "register", "--name", "Ada", "--email", "ada@example.com", "--department", "eng", "--workload", "3")
	require.NoError(t, err)

	var member staff.Staff
	require.NoError(t, json.Unmarshal([]byte(out), &member))
	assert.NotEmpty(t, member.ID)
	assert.Equal(t, staff.RoleStaff, member.Role)
	assert.Equal(t, 3, member.Workload)
	assert.Zero(t, member.OverallEfficiency)
}

func TestInvalidInputIsReturned(t *testing.T) {
	_, err := run(t, "staff", "register", "--name", "Bob", "--email", "not-an-email", "--department", "eng")
	assert.Error(t, err)
}

func TestStatusOnEmptyStore(t *testing.T) {
	out, err := run(t, "status")
	require.NoError(t, err)

	var stats workflow.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, workflow.Stats{}, stats)
}

func TestAuditVerifyOnEmptyChain(t *testing.T) {
	out, err := run(t, "audit", "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "chain intact: 0 events")
}

func TestSubtaskCommandsRequireID(t *testing.T) {
	_, err := run(t, "subtask", "complete")
	assert.Error(t, err)
}
