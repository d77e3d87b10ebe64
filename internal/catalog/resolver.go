package catalog

// ResolveMethod decides how a product participates in stock tracking.
//
// Products that opted out never touch the ledger, whatever their method field
// says. For tracked products the explicit field wins; rows that predate the
// field fall back to RECIPE when a recipe exists, NONE otherwise. Callers must
// resolve on every sale rather than cache the result, since venue staff can
// reconfigure a product between two orders.
func ResolveMethod(p Product, hasRecipe bool) Method {
	if !p.TrackInventory {
		return MethodNone
	}
	switch p.InventoryMethod {
	case MethodQuantity:
		return MethodQuantity
	case MethodRecipe:
		return MethodRecipe
	case MethodNone:
		return MethodNone
	}
	if hasRecipe {
		return MethodRecipe
	}
	return MethodNone
}
