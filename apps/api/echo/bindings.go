package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ischoolgo/core"
)

const orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads `?ordering=name,-created_at`. A leading "-" sorts descending.
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
		if field != "" {
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
}

// bindQuery binds the query string of the request onto dest, ignoring the body.
func bindQuery(ctx echo.Context, dest interface{}) error {
	if err := (&echo.DefaultBinder{}).BindQueryParams(ctx, dest); err != nil {
		return core.NewValidationError(errors.Wrap(err, "invalid query parameters"))
	}
	return nil
}

// bindPage reads `?page=&limit=`. Bounds and defaults are applied by the services.
func bindPage(ctx echo.Context) (core.Pagination, error) {
	var page core.Pagination
	err := bindQuery(ctx, &page)
	return page, err
}

func bindBody(ctx echo.Context, dest interface{}, what string) error {
	if err := (&echo.DefaultBinder{}).BindBody(ctx, dest); err != nil {
		return core.NewValidationError(errors.Wrap(err, "binding to "+what))
	}
	return nil
}
