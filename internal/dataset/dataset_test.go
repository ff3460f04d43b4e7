package dataset

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassista/go_refresh/internal/reader"
	"github.com/bassista/go_refresh/internal/registry"
	"github.com/bassista/go_refresh/internal/repository"
)

func TestRegister(t *testing.T) {
	reg := registry.New()
	require.NoError(t, Register(reg, afero.NewMemMapFs(), nil))

	assert.Equal(t, []string{TypeCountry, TypeCurrency, TypeExchangeRate}, reg.ItemTypes())
	assert.Equal(t, []string{"copy", "download"}, reg.TaskTypes())

	// registering twice reports the duplicate
	assert.Error(t, Register(reg, afero.NewMemMapFs(), nil))
}

func TestExchangeRate_Decodes(t *testing.T) {
	reg := registry.New()
	require.NoError(t, Register(reg, afero.NewMemMapFs(), nil))
	it, err := reg.ItemType(TypeExchangeRate)
	require.NoError(t, err)

	src := "date;base;quote;rate\n2024-05-01;EUR;USD;1.0712\n2024-05-01;EUR;GBP;0.8554\n"
	s, err := it.Open(strings.NewReader(src), "rates.csv", reader.Options{Delimiter: ';'}, nil)
	require.NoError(t, err)

	store := it.NewStore()
	batch, n, err := s.ReadBatch(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.NoError(t, it.Append(store, batch))

	rates := store.(*repository.Repository[ExchangeRate]).Get(func(r ExchangeRate) bool { return r.Quote == "USD" })
	assert.Equal(t, []ExchangeRate{{Date: "2024-05-01", Base: "EUR", Quote: "USD", Rate: 1.0712}}, rates)
}

func TestCountry_OptionalColumns(t *testing.T) {
	reg := registry.New()
	require.NoError(t, Register(reg, afero.NewMemMapFs(), nil))
	it, err := reg.ItemType(TypeCountry)
	require.NoError(t, err)

	s, err := it.Open(strings.NewReader("code,name\nIT,Italy\n"), "countries.csv", reader.Options{}, nil)
	require.NoError(t, err)

	batch, _, err := s.ReadBatch(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []Country{{Code: "IT", Name: "Italy"}}, batch)
}
