// CLAUDE:SUMMARY Blocks configured resource types (images, fonts, media, stylesheets) on the chat tab.
package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceAliases maps CDP resource types to config names.
var resourceAliases = map[string]string{
	"image":      "images",
	"font":       "fonts",
	"media":      "media",
	"stylesheet": "stylesheets",
}

func applyResourceBlocking(page *rod.Page, types []string) {
	blocked := make(map[string]bool, len(types))
	for _, t := range types {
		blocked[strings.ToLower(t)] = true
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if shouldBlock(blocked, string(h.Request.Type())) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
}

func shouldBlock(blocked map[string]bool, resType string) bool {
	lower := strings.ToLower(resType)
	if alias, ok := resourceAliases[lower]; ok && blocked[alias] {
		return true
	}
	return blocked[lower]
}
