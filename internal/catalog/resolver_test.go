package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveMethod(t *testing.T) {
	cases := []struct {
		name      string
		product   Product
		hasRecipe bool
		want      Method
	}{
		{"tracking disabled", Product{TrackInventory: false, InventoryMethod: MethodRecipe}, true, MethodNone},
		{"explicit quantity", Product{TrackInventory: true, InventoryMethod: MethodQuantity}, false, MethodQuantity},
		{"explicit recipe", Product{TrackInventory: true, InventoryMethod: MethodRecipe}, false, MethodRecipe},
		{"explicit none", Product{TrackInventory: true, InventoryMethod: MethodNone}, true, MethodNone},
		{"legacy with recipe", Product{TrackInventory: true}, true, MethodRecipe},
		{"legacy without recipe", Product{TrackInventory: true}, false, MethodNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ResolveMethod(tc.product, tc.hasRecipe))
		})
	}
}
