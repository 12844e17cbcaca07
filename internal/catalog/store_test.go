package catalog

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/matthieukhl/loom/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(database.Wrap(db)), mock
}

var candidateColumns = []string{
	"id", "name", "category", "brand", "keywords", "specs", "occasion", "image_url",
	"variant_id", "sizes", "price", "discount", "quantity",
}

func TestStore_Find(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows(candidateColumns).
		AddRow(1, "Oxford Shirt", "shirt", "Loom", "office,cotton", nil, "office", "/img/1.jpg", 11, `["S","M"]`, "1499.00", "0.00", 5).
		AddRow(2, "Linen Shirt", "shirt", nil, nil, nil, nil, nil, 21, "M, L", "1899.00", "100.00", 2).
		AddRow(3, "Silk Scarf", "accessory", nil, nil, nil, nil, nil, 31, nil, "799.00", "0.00", 9)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY RAND()")).
		WithArgs("%shirt%", "%shirt%", "1500", DefaultLimit).
		WillReturnRows(rows)

	got, err := store.Find(context.Background(), NewFilter(WithCategory("shirt"), WithPriceBand(nil, dec("1500"))))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, []string{"S", "M"}, got[0].Sizes)
	assert.Equal(t, "office", got[0].Occasion)
	assert.Equal(t, []string{"M", "L"}, got[1].Sizes)
	assert.Equal(t, "100", got[1].Discount.String())
	assert.Equal(t, []string{"Universal"}, got[2].Sizes)
	assert.Equal(t, 9, got[2].Quantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FindError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection refused"))

	_, err := store.Find(context.Background(), NewFilter())
	assert.ErrorContains(t, err, "failed to query products")
}

func TestStore_ListGroupsVariants(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{
		"id", "name", "category", "brand", "keywords", "specs", "occasion", "image_url",
		"variant_id", "sizes", "color", "price", "discount", "sku",
	}).
		AddRow(1, "Oxford Shirt", "shirt", "Loom", nil, nil, nil, nil, 11, `["S"]`, "white", "1499", "0", "OX-W-S").
		AddRow(1, "Oxford Shirt", "shirt", "Loom", nil, nil, nil, nil, 12, `["M"]`, "blue", "1499", "0", "OX-B-M").
		AddRow(2, "Silk Scarf", "accessory", nil, nil, nil, nil, nil, 21, "", nil, "799", "0", "SC-1")

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY p.id, v.id")).WillReturnRows(rows)

	products, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Len(t, products[0].Variants, 2)
	assert.Equal(t, "blue", products[0].Variants[1].Color)
	assert.Equal(t, int64(1), products[0].Variants[1].ProductID)
	assert.Equal(t, []string{"Universal"}, products[1].Variants[0].Sizes)
}

func TestStore_LowStock(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE i.quantity < ?")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sku", "name", "quantity"}).
			AddRow(11, "OX-W-S", "Oxford Shirt", 0).
			AddRow(12, "OX-B-M", "Oxford Shirt", 2))

	levels, err := store.LowStock(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, 0, levels[0].Quantity)
}

const seedYAML = `
products:
  - name: Oxford Shirt
    category: shirt
    occasion: office
    variants:
      - sku: OX-W
        sizes: [S, M, L]
        price: "1499"
        stock: 5
  - name: Silk Scarf
    category: accessory
    variants:
      - sku: SC-1
        price: "799.50"
        discount: "50"
        stock: 2
`

func TestStore_Seed(t *testing.T) {
	store, mock := newMockStore(t)
	seed, err := ParseSeed([]byte(seedYAML))
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO products")).
		WithArgs("Oxford Shirt", "shirt", "", "", "", "office", "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO product_variants")).
		WithArgs(int64(1), `["S","M","L"]`, "", "1499", "0", "OX-W").
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO inventory")).
		WithArgs(int64(11), 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO products")).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO product_variants")).
		WithArgs(int64(2), "", "", "799.5", "50", "SC-1").
		WillReturnResult(sqlmock.NewResult(21, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO inventory")).
		WithArgs(int64(21), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := store.Seed(context.Background(), seed)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Products: 2, Variants: 2}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SeedRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	seed, err := ParseSeed([]byte(seedYAML))
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO products")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO product_variants")).WillReturnError(errors.New("Duplicate entry 'OX-W'"))
	mock.ExpectRollback()

	_, err = store.Seed(context.Background(), seed)
	assert.ErrorContains(t, err, "OX-W")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParseSeed_Validation(t *testing.T) {
	_, err := ParseSeed([]byte("products:\n  - name: X\n    category: shirt\n"))
	assert.ErrorContains(t, err, "no variants")

	_, err = ParseSeed([]byte("products:\n  - name: X\n    category: shirt\n    variants:\n      - sku: A\n        price: cheap\n"))
	assert.ErrorContains(t, err, "invalid price")

	_, err = ParseSeed([]byte("products: [oops"))
	assert.Error(t, err)
}
