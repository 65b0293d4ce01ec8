package extract

import (
	"context"

	"github.com/go-rod/rod"
	"github.com/ysmood/gson"
)

// RodPage adapts a live rod page to the Page interface.
type RodPage struct {
	P *rod.Page
}

func (p RodPage) Eval(ctx context.Context, js string) (gson.JSON, error) {
	res, err := p.P.Context(ctx).Eval(js)
	if err != nil {
		return gson.New(nil), err
	}
	return res.Value, nil
}
