package cleaner

import (
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// Converter renders captured pages for text-oriented consumers. It is safe
// for concurrent use.
type Converter struct {
	md *converter.Converter
}

// NewConverter returns a Converter. The markdown pipeline drops script,
// style and head noise, renders CommonMark and keeps tables with minimal
// cell padding.
func NewConverter() *Converter {
	return &Converter{
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(
					table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
				),
			),
		),
	}
}

// ToMarkdown converts a rendered document to Markdown. Relative links and
// images are resolved against pageURL.
func (c *Converter) ToMarkdown(html, pageURL string) (string, error) {
	return c.md.ConvertString(html, converter.WithDomain(pageURL))
}
