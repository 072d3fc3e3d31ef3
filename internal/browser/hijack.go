package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"plannercolors/internal/intercept"
	"plannercolors/internal/logging"
)

// hijackedTypes are the resource types the host uses for API calls.
var hijackedTypes = []proto.NetworkResourceType{
	proto.NetworkResourceTypeXHR,
	proto.NetworkResourceTypeFetch,
}

// shouldLoad reports whether a paused request is a planner collection
// fetch that must be replayed through the interceptor.
func shouldLoad(u *url.URL) bool {
	_, ok := intercept.Classify(u)
	return ok
}

// stampFor reserves the next stamp of client's interceptor. Stamping when
// the pause arrives rather than in the round trip keeps the slow start of
// rod's replay out of the ordering.
func stampFor(ctx context.Context, client *http.Client) context.Context {
	if s, ok := client.Transport.(interface{ Stamp() uint64 }); ok {
		return intercept.WithSequence(ctx, s.Stamp())
	}
	return ctx
}

// hijackPlanner pauses the page's XHR and fetch requests. Collection
// fetches are performed by client, whose transport is expected to be an
// intercept.Transport, and the response is handed back to the page
// unchanged. Everything else continues untouched.
func hijackPlanner(page *rod.Page, client *http.Client) (*rod.HijackRouter, error) {
	if client == nil {
		client = http.DefaultClient
	}
	router := page.HijackRequests()

	handler := func(h *rod.Hijack) {
		u := h.Request.URL()
		if !shouldLoad(u) {
			h.ContinueRequest(&proto.FetchContinueRequest{})
			return
		}
		h.Request.SetContext(stampFor(h.Request.Req().Context(), client))
		logging.BrowserDebug("loading %s %s through interceptor", h.Request.Method(), u.Path)
		if err := h.LoadResponse(client, true); err != nil {
			logging.BrowserWarn("load %s: %v", u.Path, err)
			h.Response.Fail(proto.NetworkErrorReasonFailed)
		}
	}

	for _, rt := range hijackedTypes {
		if err := router.Add("*", rt, handler); err != nil {
			_ = router.Stop()
			return nil, fmt.Errorf("hijack %s requests: %w", rt, err)
		}
	}
	go router.Run()
	return router, nil
}
