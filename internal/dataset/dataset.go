// Package dataset declares the record types served by go_refresh and
// registers them, together with the built-in task types, in a registry.
package dataset

import (
	"net/http"

	"github.com/spf13/afero"

	"github.com/bassista/go_refresh/internal/registry"
	"github.com/bassista/go_refresh/internal/task"
)

const (
	TypeCountry      = "country"
	TypeCurrency     = "currency"
	TypeExchangeRate = "exchange_rate"
)

// Country is an ISO 3166 country.
type Country struct {
	Code     string `csv:"code" json:"code"`
	Alpha3   string `csv:"alpha3,omitempty" json:"alpha3,omitempty"`
	Name     string `csv:"name" json:"name"`
	Region   string `csv:"region,omitempty" json:"region,omitempty"`
	Currency string `csv:"currency,omitempty" json:"currency,omitempty"`
}

// Currency is an ISO 4217 currency.
type Currency struct {
	Code    string `csv:"code" json:"code"`
	Name    string `csv:"name" json:"name"`
	Minor   int    `csv:"minor_units,omitempty" json:"minor_units"`
	Numeric string `csv:"numeric,omitempty" json:"numeric,omitempty"`
}

// ExchangeRate is the value of one unit of Base expressed in Quote.
type ExchangeRate struct {
	Date  string  `csv:"date" json:"date"`
	Base  string  `csv:"base" json:"base"`
	Quote string  `csv:"quote" json:"quote"`
	Rate  float64 `csv:"rate" json:"rate"`
}

// Register adds the item types and the download and copy task types.
// Tasks read and write through fs; download tasks use client.
func Register(reg *registry.Registry, fs afero.Fs, client *http.Client) error {
	if err := registry.RegisterItem[Country](reg, TypeCountry); err != nil {
		return err
	}
	if err := registry.RegisterItem[Currency](reg, TypeCurrency); err != nil {
		return err
	}
	if err := registry.RegisterItem[ExchangeRate](reg, TypeExchangeRate); err != nil {
		return err
	}
	if err := reg.RegisterTask(task.TypeDownload, task.DownloadFactory(fs, client)); err != nil {
		return err
	}
	return reg.RegisterTask(task.TypeCopy, task.CopyFactory(fs))
}
