package gateway_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/notifyhub/pushsched/internal/gateway"
)

func TestBatches_SplitsAtMaxSize(t *testing.T) {
	tokens := make([]string, gateway.MaxBatchTokens+1)
	for i := range tokens {
		tokens[i] = "t"
	}

	batches := gateway.Batches(tokens)
	require.Len(t, batches, 2)
	require.Len(t, batches[0], gateway.MaxBatchTokens)
	require.Len(t, batches[1], 1)
}

func TestBatches_EmptyInputYieldsNoBatches(t *testing.T) {
	require.Nil(t, gateway.Batches(nil))
}

func TestMockGateway_DefaultsToAllSuccess(t *testing.T) {
	g := gateway.NewMockGateway()
	result, err := g.SendMulticast(context.Background(), []string{"a", "b"}, gateway.Payload{Title: "hi"})
	require.NoError(t, err)
	require.Equal(t, 2, result.SuccessCount)
	require.Equal(t, 1, g.Calls())
}

func TestMockGateway_CustomResponder(t *testing.T) {
	g := gateway.NewMockGateway()
	g.Respond = func(tokens []string, _ gateway.Payload) (gateway.MulticastResult, error) {
		return gateway.MulticastResult{
			SuccessCount: 1,
			FailureCount: 1,
			Failures:     []gateway.FailureDetail{{Token: tokens[1], ErrorCode: "timeout"}},
		}, nil
	}
	result, err := g.SendMulticast(context.Background(), []string{"a", "b"}, gateway.Payload{})
	require.NoError(t, err)
	require.Equal(t, 1, result.FailureCount)
	require.Equal(t, "timeout", result.Failures[0].ErrorCode)
}
