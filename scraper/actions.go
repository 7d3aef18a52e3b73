package scraper

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/use-agent/pagefetch/models"
)

// rodElement adapts a resolved rod element to engine.Element.
type rodElement struct {
	el *rod.Element
}

// Click scrolls the element into view and clicks it once with the left
// button.
func (e *rodElement) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

// SendKeys focuses the element and types text into it.
func (e *rodElement) SendKeys(ctx context.Context, text string) error {
	return e.el.Context(ctx).Input(text)
}

func errUnsupportedSelector(sel models.Selector) error {
	return fmt.Errorf("unsupported selector kind %s", sel.Kind)
}
