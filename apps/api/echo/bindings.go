package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/jsacademy/console/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind parses `?ordering=-a,b`. Unknown fields are dropped later by each repository's allow-list.
func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

func bindOrdering(ctx echo.Context) []core.DBOrdering {
	ord := new(Ordering)
	ord.Bind(ctx)
	return ord.Orderings
}

var queryBinder = new(echo.DefaultBinder)

// bindQuery binds the query params only, whatever the request method.
func bindQuery(ctx echo.Context, dest interface{}) error {
	return queryBinder.BindQueryParams(ctx, dest)
}

func bindPage(ctx echo.Context) (core.Page, error) {
	var page core.Page
	if err := bindQuery(ctx, &page); err != nil {
		return page, err
	}
	page.Clean()
	return page, nil
}

// bindBody binds the JSON body only, ignoring path and query params.
func bindBody(ctx echo.Context, dest interface{}) error {
	return queryBinder.BindBody(ctx, dest)
}

func paramID(ctx echo.Context, name ...string) (int64, error) {
	param := "id"
	if len(name) > 0 {
		param = name[0]
	}
	id, err := strconv.ParseInt(ctx.Param(param), 10, 64)
	if err != nil || id < 1 {
		return 0, errInvalidID
	}
	return id, nil
}

// queryIDs reads repeated `?id=1&id=2` params.
func queryIDs(ctx echo.Context) ([]int64, error) {
	var ids []int64
	for _, raw := range ctx.QueryParams()["id"] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id < 1 {
				return nil, errInvalidID
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func queryBool(ctx echo.Context, name string) bool {
	b, _ := strconv.ParseBool(ctx.QueryParam(name))
	return b
}
