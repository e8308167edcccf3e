package docparse

import (
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// NewMarkdownConverter creates a reusable, goroutine-safe Converter for
// rendering widget fragments as Markdown:
//
//   - base plugin: strips script, style, head and friends.
//   - commonmark plugin: standard Markdown rendering.
//   - table plugin: the fragments are almost entirely tables (document
//     listings, action histories), so structure preservation matters;
//     minimal cell padding keeps the output compact.
func NewMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
}

// ToMarkdown converts a fragment to Markdown. The domain parameter
// resolves relative document links into absolute URLs so the output is
// self-contained.
func ToMarkdown(conv *converter.Converter, fragment string, domain string) (string, error) {
	return conv.ConvertString(fragment, converter.WithDomain(domain))
}
