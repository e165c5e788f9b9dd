package vtest_test

import (
	"testing"

	"github.com/go-via/testbench/via/vtest"
	"github.com/stretchr/testify/require"
)

func TestCounterWithStepSignal(t *testing.T) {
	t.Parallel()

	page := vtest.VisitWith(vtest.NewCounterWithStepApp(), "/")
	defer page.Close()

	page.AssertText(t, "Count: 0")
	page.AssertText(t, "Step: 1")

	require.NoError(t, page.Click("+"))
	page.AssertText(t, "Count: 1")

	require.NoError(t, page.Fill("step", "5"))
	page.AssertText(t, "Step: 5")

	require.NoError(t, page.Click("+"))
	page.AssertText(t, "Count: 6")

	require.NoError(t, page.Click("+"))
	page.AssertText(t, "Count: 11")

	require.NoError(t, page.Click("-"))
	page.AssertText(t, "Count: 6")

	require.NoError(t, page.Fill("step", "10"))
	page.AssertText(t, "Step: 10")

	require.NoError(t, page.Click("-"))
	page.AssertText(t, "Count: -4")
}
