package novaposhta

import (
	"context"
	"fmt"
	"strings"
)

type City struct {
	Description    string `json:"Description"`
	Ref            string `json:"Ref"`
	Area           string `json:"Area,omitempty"`
	SettlementType string `json:"SettlementTypeDescription,omitempty"`
}

type Street struct {
	Description string `json:"Description"`
	Ref         string `json:"Ref"`
	StreetType  string `json:"StreetsType,omitempty"`
}

type Warehouse struct {
	Description         string `json:"Description"`
	ShortAddress        string `json:"ShortAddress,omitempty"`
	Ref                 string `json:"Ref"`
	Number              string `json:"Number,omitempty"`
	CityRef             string `json:"CityRef,omitempty"`
	CategoryOfWarehouse string `json:"CategoryOfWarehouse,omitempty"`
	WarehouseIndex      string `json:"WarehouseIndex,omitempty"`
}

type WarehouseKind string

const (
	KindBranch   WarehouseKind = "Branch"
	KindPostomat WarehouseKind = "Postomat"
	KindAll      WarehouseKind = "All"
)

// ParseWarehouseKind maps an empty value to KindAll.
func ParseWarehouseKind(s string) (WarehouseKind, error) {
	switch WarehouseKind(s) {
	case "", KindAll:
		return KindAll, nil
	case KindBranch, KindPostomat:
		return WarehouseKind(s), nil
	}
	return "", fmt.Errorf("%w: warehouse type %q", ErrInvalidArgument, s)
}

const postomatKeyword = "поштомат"

// IsPostomat applies the carrier-side heuristic: the category field is not
// always filled, so the description is checked for the keyword as well.
func (w Warehouse) IsPostomat() bool {
	return w.CategoryOfWarehouse == "Postomat" ||
		strings.Contains(strings.ToLower(w.Description), postomatKeyword)
}

// FilterWarehouses keeps the entries of the requested kind. Branch is every
// entry not flagged as a postomat.
func FilterWarehouses(warehouses []Warehouse, kind WarehouseKind) []Warehouse {
	if kind == KindAll || kind == "" {
		return warehouses
	}

	filtered := make([]Warehouse, 0, len(warehouses))
	for _, w := range warehouses {
		if w.IsPostomat() == (kind == KindPostomat) {
			filtered = append(filtered, w)
		}
	}
	return filtered
}

func (c *Client) ListCities(ctx context.Context) ([]City, error) {
	var cities []City
	if err := c.call(ctx, "Address", "getCities", nil, &cities); err != nil {
		return nil, err
	}
	if cities == nil {
		cities = []City{}
	}
	return cities, nil
}

// FindStreets searches the streets of one city. An empty cityRef is rejected
// without calling the carrier.
func (c *Client) FindStreets(ctx context.Context, cityRef, search string) ([]Street, error) {
	if cityRef == "" {
		return nil, fmt.Errorf("%w: city reference is required", ErrInvalidArgument)
	}

	props := map[string]string{
		"CityRef":      cityRef,
		"FindByString": search,
	}

	var streets []Street
	if err := c.call(ctx, "Address", "getStreet", props, &streets); err != nil {
		return nil, err
	}
	if streets == nil {
		streets = []Street{}
	}
	return streets, nil
}

func (c *Client) ListWarehouses(ctx context.Context, cityRef string, kind WarehouseKind) ([]Warehouse, error) {
	if cityRef == "" {
		return nil, fmt.Errorf("%w: city reference is required", ErrInvalidArgument)
	}

	var warehouses []Warehouse
	if err := c.call(ctx, "Address", "getWarehouses", map[string]string{"CityRef": cityRef}, &warehouses); err != nil {
		return nil, err
	}
	if warehouses == nil {
		warehouses = []Warehouse{}
	}
	return FilterWarehouses(warehouses, kind), nil
}
