// CLAUDE:SUMMARY Turns a relocated entry node into sanitized markdown for panels and MCP clients.
package jumplog

import (
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/gjump/entrylog"
)

// Excerpt is an entry together with the current rendering of its node.
type Excerpt struct {
	entrylog.Entry
	Markdown string `json:"markdown"`
}

var (
	excerptPolicy     *bluemonday.Policy
	excerptPolicyOnce sync.Once

	mdConverter     *converter.Converter
	mdConverterOnce sync.Once
)

// sanitizeHost strips scripts, handlers and our own data attributes from
// host markup while keeping formatting and tables.
func sanitizeHost(html string) string {
	excerptPolicyOnce.Do(func() {
		excerptPolicy = bluemonday.UGCPolicy()
	})
	return excerptPolicy.Sanitize(html)
}

func toMarkdown(html string) (string, error) {
	mdConverterOnce.Do(func() {
		mdConverter = converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		)
	})
	md, err := mdConverter.ConvertString(sanitizeHost(html))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md), nil
}
