// SPDX-License-Identifier: AGPL-3.0-or-later
package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestInitRecordOperationAndVerdict(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Init(reg))

	RecordOperation("mask", "ok", 0.01)
	RecordVerdict("trusted", true)

	families, err := reg.Gather()
	require.NoError(t, err)

	var sawOperations, sawVerdicts bool
	for _, mf := range families {
		switch mf.GetName() {
		case "masklink_operations_total":
			sawOperations = true
			require.NotEmpty(t, mf.GetMetric())
		case "masklink_verify_remote_resource_verdicts_total":
			sawVerdicts = true
			require.NotEmpty(t, mf.GetMetric())
		}
	}
	require.True(t, sawOperations)
	require.True(t, sawVerdicts)
}

func TestRecordOperationBeforeInitDoesNotPanic(t *testing.T) {
	// Reset package state to simulate a call before Init.
	lock.Lock()
	operationsTotal = nil
	operationDuration = nil
	verdictTotal = nil
	lock.Unlock()

	require.NotPanics(t, func() {
		RecordOperation("mask", "ok", 0.01)
		RecordVerdict("trusted", true)
	})

	reg := prometheus.NewRegistry()
	require.NoError(t, Init(reg))
}
