// Package records wraps the PocketBase record CRUD endpoints of a collection.
package records

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/yuanzhaoK/admin-platform-sub000/pkg/connection"
)

var (
	ErrEmptyCollection = errors.New("collection name is empty")
	ErrEmptyID         = errors.New("record id is empty")
	ErrNotFound        = errors.New("record not found")
)

// Executor issues authenticated calls. *pbgateway.Client implements it, both
// directly (Execute) and through its queue (ExecuteQueued).
type Executor interface {
	Execute(ctx context.Context, req connection.Request) (*connection.Response, error)
}

// ExecutorFunc adapts a function, such as Client.ExecuteQueued, to Executor.
type ExecutorFunc func(ctx context.Context, req connection.Request) (*connection.Response, error)

func (f ExecutorFunc) Execute(ctx context.Context, req connection.Request) (*connection.Response, error) {
	return f(ctx, req)
}

// Record is an untyped PocketBase record.
type Record map[string]any

func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

// ListOptions maps onto the list endpoint query parameters.
type ListOptions struct {
	Page      int
	PerPage   int
	Sort      string
	Filter    string
	Expand    string
	Fields    string
	SkipTotal bool
}

func (o ListOptions) values() url.Values {
	q := url.Values{}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.PerPage > 0 {
		q.Set("perPage", strconv.Itoa(o.PerPage))
	}
	if o.Sort != "" {
		q.Set("sort", o.Sort)
	}
	if o.Filter != "" {
		q.Set("filter", o.Filter)
	}
	if o.Expand != "" {
		q.Set("expand", o.Expand)
	}
	if o.Fields != "" {
		q.Set("fields", o.Fields)
	}
	if o.SkipTotal {
		q.Set("skipTotal", "1")
	}
	return q
}

type ListResult[T any] struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
	Items      []T `json:"items"`
}

// Collection is a typed handle on one PocketBase collection. T is usually
// Record or a struct with json tags.
type Collection[T any] struct {
	exec Executor
	name string
}

func NewCollection[T any](exec Executor, name string) *Collection[T] {
	return &Collection[T]{exec: exec, name: name}
}

// Records is a Collection of untyped records.
func Records(exec Executor, name string) *Collection[Record] {
	return NewCollection[Record](exec, name)
}

func (c *Collection[T]) Name() string {
	return c.name
}

func (c *Collection[T]) List(ctx context.Context, opts ListOptions) (*ListResult[T], error) {
	path, err := c.path("")
	if err != nil {
		return nil, err
	}

	res, err := c.exec.Execute(ctx, connection.Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  opts.values(),
	})
	if err != nil {
		return nil, err
	}

	var out ListResult[T]
	if err := res.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s list: %w", c.name, err)
	}
	return &out, nil
}

// FirstListItem returns the first record matching filter, or ErrNotFound.
func (c *Collection[T]) FirstListItem(ctx context.Context, filter string, opts ListOptions) (T, error) {
	var zero T

	opts.Filter = filter
	opts.Page = 1
	opts.PerPage = 1
	opts.SkipTotal = true

	list, err := c.List(ctx, opts)
	if err != nil {
		return zero, err
	}
	if len(list.Items) == 0 {
		return zero, fmt.Errorf("%s where %s: %w", c.name, filter, ErrNotFound)
	}
	return list.Items[0], nil
}

func (c *Collection[T]) View(ctx context.Context, id string) (T, error) {
	return c.one(ctx, http.MethodGet, id, nil)
}

func (c *Collection[T]) Create(ctx context.Context, body any) (T, error) {
	var zero T

	path, err := c.path("")
	if err != nil {
		return zero, err
	}
	return c.send(ctx, http.MethodPost, path, body)
}

func (c *Collection[T]) Update(ctx context.Context, id string, body any) (T, error) {
	return c.one(ctx, http.MethodPatch, id, body)
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}
	path, err := c.path(id)
	if err != nil {
		return err
	}

	_, err = c.exec.Execute(ctx, connection.Request{Method: http.MethodDelete, Path: path})
	return err
}

func (c *Collection[T]) one(ctx context.Context, method, id string, body any) (T, error) {
	var zero T

	if id == "" {
		return zero, ErrEmptyID
	}
	path, err := c.path(id)
	if err != nil {
		return zero, err
	}
	return c.send(ctx, method, path, body)
}

func (c *Collection[T]) send(ctx context.Context, method, path string, body any) (T, error) {
	var out T

	res, err := c.exec.Execute(ctx, connection.Request{Method: method, Path: path, Body: body})
	if err != nil {
		return out, err
	}
	if err := res.Decode(&out); err != nil {
		return out, fmt.Errorf("decode %s record: %w", c.name, err)
	}
	return out, nil
}

func (c *Collection[T]) path(id string) (string, error) {
	if c.name == "" {
		return "", ErrEmptyCollection
	}

	p := "/api/collections/" + url.PathEscape(c.name) + "/records"
	if id != "" {
		p += "/" + url.PathEscape(id)
	}
	return p, nil
}

// IsNotFound reports whether err means the record does not exist, either from
// FirstListItem or a 404 answer.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *connection.APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
