package escore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpcasterChainPassThroughWhenNoneApply(t *testing.T) {
	chain := NewUpcasterChain(0)
	results, err := chain.Apply("BookAdded", map[string]any{"payload": map[string]any{}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "BookAdded", results[0].Type)
	assert.NotNil(t, results[0].Data)
}

func TestUpcasterChainRenamesType(t *testing.T) {
	v1ToV2 := UpcasterFunc{
		FromType: "BookAddedV1",
		Fn: func(typeString string, data map[string]any) (string, map[string]any, error) {
			data["payload"].(map[string]any)["title"] = data["payload"].(map[string]any)["name"]
			return "BookAddedV2", data, nil
		},
	}
	chain := NewUpcasterChain(0, v1ToV2)

	results, err := chain.Apply("BookAddedV1", map[string]any{"payload": map[string]any{"name": "Go"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "BookAddedV2", results[0].Type)
	assert.Equal(t, "Go", results[0].Data["payload"].(map[string]any)["title"])
}

func TestUpcasterChainDetectsAmbiguity(t *testing.T) {
	a := UpcasterFunc{FromType: "X", Fn: func(t string, d map[string]any) (string, map[string]any, error) { return "Y", d, nil }}
	b := UpcasterFunc{FromType: "X", Fn: func(t string, d map[string]any) (string, map[string]any, error) { return "Z", d, nil }}
	chain := NewUpcasterChain(0, a, b)

	_, err := chain.Apply("X", map[string]any{})
	require.Error(t, err)
}

func TestUpcasterChainDetectsCycle(t *testing.T) {
	aToB := UpcasterFunc{FromType: "A", Fn: func(t string, d map[string]any) (string, map[string]any, error) { return "B", d, nil }}
	bToA := UpcasterFunc{FromType: "B", Fn: func(t string, d map[string]any) (string, map[string]any, error) { return "A", d, nil }}
	chain := NewUpcasterChain(4, aToB, bToA)

	_, err := chain.Apply("A", map[string]any{})
	require.Error(t, err)
}

func TestUpcasterChainSplitsOneEventIntoMany(t *testing.T) {
	split := UpcasterSplitFunc{
		FromType: "CartCheckedOut",
		Fn: func(typeString string, data map[string]any) ([]UpcastResult, error) {
			items := data["payload"].(map[string]any)["items"].([]any)
			out := make([]UpcastResult, len(items))
			for i, item := range items {
				out[i] = UpcastResult{Type: "ItemPurchased", Data: map[string]any{"payload": map[string]any{"item": item}}}
			}
			return out, nil
		},
	}
	chain := NewUpcasterChain(0, split)

	results, err := chain.Apply("CartCheckedOut", map[string]any{"payload": map[string]any{"items": []any{"a", "b", "c"}}})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, "ItemPurchased", r.Type)
	}
}

func TestUpcasterChainDropsEventEntirely(t *testing.T) {
	drop := UpcasterSplitFunc{
		FromType: "Deprecated",
		Fn: func(typeString string, data map[string]any) ([]UpcastResult, error) {
			return nil, nil
		},
	}
	chain := NewUpcasterChain(0, drop)

	results, err := chain.Apply("Deprecated", map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestUpcasterChainUpcastsEachSplitBranchToFixedPoint(t *testing.T) {
	split := UpcasterSplitFunc{
		FromType: "CartCheckedOut",
		Fn: func(typeString string, data map[string]any) ([]UpcastResult, error) {
			return []UpcastResult{
				{Type: "ItemPurchasedV1", Data: map[string]any{"payload": map[string]any{"item": "a"}}},
				{Type: "ItemPurchasedV1", Data: map[string]any{"payload": map[string]any{"item": "b"}}},
			}, nil
		},
	}
	rename := UpcasterFunc{
		FromType: "ItemPurchasedV1",
		Fn: func(typeString string, data map[string]any) (string, map[string]any, error) {
			return "ItemPurchasedV2", data, nil
		},
	}
	chain := NewUpcasterChain(0, split, rename)

	results, err := chain.Apply("CartCheckedOut", map[string]any{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "ItemPurchasedV2", r.Type)
	}
}
