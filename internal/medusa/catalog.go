package medusa

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// productFields asks the backend for region pricing and stock alongside the defaults.
const productFields = "*variants.calculated_price,+variants.inventory_quantity,*variants.options,*options,*options.values,*images,*collection,*categories,*tags"

// ProductQuery filters GET /store/products.
type ProductQuery struct {
	Limit         int
	Offset        int
	RegionID      string
	CollectionIDs []string
	CategoryIDs   []string
	IDs           []string
	Handle        string
	Q             string
	Order         string // e.g. "-created_at"
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.RegionID != "" {
		v.Set("region_id", q.RegionID)
	}
	for _, id := range q.CollectionIDs {
		v.Add("collection_id[]", id)
	}
	for _, id := range q.CategoryIDs {
		v.Add("category_id[]", id)
	}
	for _, id := range q.IDs {
		v.Add("id[]", id)
	}
	if q.Handle != "" {
		v.Set("handle", q.Handle)
	}
	if q.Q != "" {
		v.Set("q", q.Q)
	}
	if q.Order != "" {
		v.Set("order", q.Order)
	}
	v.Set("fields", productFields)
	return v
}

type ProductList struct {
	Page
	Products []Product `json:"products"`
}

func (c *Client) ListProducts(ctx context.Context, q ProductQuery) (ProductList, error) {
	var out ProductList
	err := c.do(ctx, "products.list", http.MethodGet, "/store/products", q.values(), nil, &out)
	return out, err
}

// ProductByHandle returns the product with the given handle, or a 404 *Error.
func (c *Client) ProductByHandle(ctx context.Context, handle, regionID string) (Product, error) {
	list, err := c.ListProducts(ctx, ProductQuery{Handle: handle, RegionID: regionID, Limit: 1})
	if err != nil {
		return Product{}, err
	}
	if len(list.Products) == 0 {
		return Product{}, &Error{Status: http.StatusNotFound, Type: "not_found", Message: "Product with handle " + handle + " was not found"}
	}
	return list.Products[0], nil
}

type CollectionList struct {
	Page
	Collections []Collection `json:"collections"`
}

func (c *Client) ListCollections(ctx context.Context, limit, offset int) (CollectionList, error) {
	v := url.Values{"limit": {strconv.Itoa(limit)}, "offset": {strconv.Itoa(offset)}}
	var out CollectionList
	err := c.do(ctx, "collections.list", http.MethodGet, "/store/collections", v, nil, &out)
	return out, err
}

func (c *Client) CollectionByHandle(ctx context.Context, handle string) (Collection, error) {
	var out CollectionList
	if err := c.do(ctx, "collections.by_handle", http.MethodGet, "/store/collections", url.Values{"handle": {handle}}, nil, &out); err != nil {
		return Collection{}, err
	}
	if len(out.Collections) == 0 {
		return Collection{}, &Error{Status: http.StatusNotFound, Type: "not_found", Message: "Collection " + handle + " was not found"}
	}
	return out.Collections[0], nil
}

type CategoryList struct {
	Page
	Categories []Category `json:"product_categories"`
}

func (c *Client) ListCategories(ctx context.Context, limit int) (CategoryList, error) {
	v := url.Values{"limit": {strconv.Itoa(limit)}, "fields": {"*category_children"}, "parent_category_id": {"null"}}
	var out CategoryList
	err := c.do(ctx, "categories.list", http.MethodGet, "/store/product-categories", v, nil, &out)
	return out, err
}

func (c *Client) CategoryByHandle(ctx context.Context, handle string) (Category, error) {
	v := url.Values{"handle": {handle}, "fields": {"*category_children"}}
	var out CategoryList
	if err := c.do(ctx, "categories.by_handle", http.MethodGet, "/store/product-categories", v, nil, &out); err != nil {
		return Category{}, err
	}
	if len(out.Categories) == 0 {
		return Category{}, &Error{Status: http.StatusNotFound, Type: "not_found", Message: "Category " + handle + " was not found"}
	}
	return out.Categories[0], nil
}

func (c *Client) ListRegions(ctx context.Context) ([]Region, error) {
	var out struct {
		Regions []Region `json:"regions"`
	}
	err := c.do(ctx, "regions.list", http.MethodGet, "/store/regions", url.Values{"limit": {"100"}}, nil, &out)
	return out.Regions, err
}

