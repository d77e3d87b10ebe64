package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Joseamica/avoqado-server-sub011/internal/units"
)

// PGRepository persists catalog data in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) GetProduct(ctx context.Context, venueID, productID int64) (Product, error) {
	var p Product
	var method *string
	err := r.pool.QueryRow(ctx, `SELECT id, venue_id, sku, name, price, track_inventory, inventory_method, is_active, created_at, updated_at
FROM products WHERE venue_id=$1 AND id=$2`, venueID, productID).
		Scan(&p.ID, &p.VenueID, &p.SKU, &p.Name, &p.Price, &p.TrackInventory, &method, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	if method != nil {
		p.InventoryMethod = Method(*method)
	}
	return p, nil
}

func (r *PGRepository) ListProducts(ctx context.Context, venueID int64) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, venue_id, sku, name, price, track_inventory, inventory_method, is_active, created_at, updated_at
FROM products WHERE venue_id=$1 ORDER BY name ASC`, venueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		var p Product
		var method *string
		if err := rows.Scan(&p.ID, &p.VenueID, &p.SKU, &p.Name, &p.Price, &p.TrackInventory, &method, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if method != nil {
			p.InventoryMethod = Method(*method)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *PGRepository) CreateProduct(ctx context.Context, p Product) (Product, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO products (venue_id, sku, name, price, track_inventory, inventory_method, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW()) RETURNING id, created_at, updated_at`,
		p.VenueID, p.SKU, p.Name, p.Price, p.TrackInventory, nullMethod(p.InventoryMethod), p.IsActive).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *PGRepository) UpdateProduct(ctx context.Context, p Product) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET sku=$3, name=$4, price=$5, track_inventory=$6, inventory_method=$7, is_active=$8, updated_at=NOW()
WHERE venue_id=$1 AND id=$2`, p.VenueID, p.ID, p.SKU, p.Name, p.Price, p.TrackInventory, nullMethod(p.InventoryMethod), p.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *PGRepository) HasRecipe(ctx context.Context, venueID, productID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM recipes WHERE venue_id=$1 AND product_id=$2)`, venueID, productID).Scan(&exists)
	return exists, err
}

func (r *PGRepository) GetRecipeByProduct(ctx context.Context, venueID, productID int64) (Recipe, error) {
	var recipe Recipe
	err := r.pool.QueryRow(ctx, `SELECT id, venue_id, product_id, created_at, updated_at FROM recipes WHERE venue_id=$1 AND product_id=$2`, venueID, productID).
		Scan(&recipe.ID, &recipe.VenueID, &recipe.ProductID, &recipe.CreatedAt, &recipe.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Recipe{}, ErrRecipeNotFound
		}
		return Recipe{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, recipe_id, raw_material_id, quantity, unit, is_variable, COALESCE(modifier_group_id, 0), is_optional, sort_order
FROM recipe_lines WHERE recipe_id=$1 ORDER BY sort_order ASC, id ASC`, recipe.ID)
	if err != nil {
		return Recipe{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line RecipeLine
		var unit string
		if err := rows.Scan(&line.ID, &line.RecipeID, &line.RawMaterialID, &line.Quantity, &unit, &line.IsVariable, &line.ModifierGroupID, &line.IsOptional, &line.SortOrder); err != nil {
			return Recipe{}, err
		}
		line.Unit = units.Unit(unit)
		recipe.Lines = append(recipe.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return Recipe{}, err
	}
	return recipe, nil
}

// SaveRecipe upserts the recipe header and replaces its lines wholesale.
// Replacing is simpler than diffing and the line count per recipe is tiny.
func (r *PGRepository) SaveRecipe(ctx context.Context, recipe Recipe) (Recipe, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Recipe{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `INSERT INTO recipes (venue_id, product_id, created_at, updated_at)
VALUES ($1,$2,NOW(),NOW())
ON CONFLICT (venue_id, product_id) DO UPDATE SET updated_at=NOW()
RETURNING id, created_at, updated_at`, recipe.VenueID, recipe.ProductID).
		Scan(&recipe.ID, &recipe.CreatedAt, &recipe.UpdatedAt)
	if err != nil {
		return Recipe{}, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM recipe_lines WHERE recipe_id=$1`, recipe.ID); err != nil {
		return Recipe{}, err
	}
	for i := range recipe.Lines {
		line := &recipe.Lines[i]
		line.RecipeID = recipe.ID
		if line.SortOrder == 0 {
			line.SortOrder = i + 1
		}
		err := tx.QueryRow(ctx, `INSERT INTO recipe_lines (recipe_id, raw_material_id, quantity, unit, is_variable, modifier_group_id, is_optional, sort_order)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
			recipe.ID, line.RawMaterialID, line.Quantity, string(line.Unit), line.IsVariable, nullInt(line.ModifierGroupID), line.IsOptional, line.SortOrder).
			Scan(&line.ID)
		if err != nil {
			return Recipe{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Recipe{}, err
	}
	return recipe, nil
}

func (r *PGRepository) GetModifiers(ctx context.Context, venueID int64, ids []int64) ([]Modifier, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id, venue_id, group_id, name, inventory_mode, COALESCE(raw_material_id, 0), COALESCE(quantity_per_unit, 0), COALESCE(unit, ''), is_active
FROM modifiers WHERE venue_id=$1 AND id = ANY($2)`, venueID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	modifiers := []Modifier{}
	for rows.Next() {
		var m Modifier
		var mode, unit string
		if err := rows.Scan(&m.ID, &m.VenueID, &m.GroupID, &m.Name, &mode, &m.RawMaterialID, &m.QuantityPerUnit, &unit, &m.IsActive); err != nil {
			return nil, err
		}
		m.InventoryMode = ModifierMode(mode)
		m.Unit = units.Unit(unit)
		modifiers = append(modifiers, m)
	}
	return modifiers, rows.Err()
}

func (r *PGRepository) SaveModifier(ctx context.Context, m Modifier) (Modifier, error) {
	if m.ID == 0 {
		err := r.pool.QueryRow(ctx, `INSERT INTO modifiers (venue_id, group_id, name, inventory_mode, raw_material_id, quantity_per_unit, unit, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
			m.VenueID, m.GroupID, m.Name, string(m.InventoryMode), nullInt(m.RawMaterialID), nullFloat(m.QuantityPerUnit), nullString(string(m.Unit)), m.IsActive).
			Scan(&m.ID)
		return m, err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE modifiers SET group_id=$3, name=$4, inventory_mode=$5, raw_material_id=$6, quantity_per_unit=$7, unit=$8, is_active=$9
WHERE venue_id=$1 AND id=$2`,
		m.VenueID, m.ID, m.GroupID, m.Name, string(m.InventoryMode), nullInt(m.RawMaterialID), nullFloat(m.QuantityPerUnit), nullString(string(m.Unit)), m.IsActive)
	if err != nil {
		return Modifier{}, err
	}
	if tag.RowsAffected() == 0 {
		return Modifier{}, ErrModifierNotFound
	}
	return m, nil
}

func nullMethod(m Method) any {
	if m == "" {
		return nil
	}
	return string(m)
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullFloat(value float64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
