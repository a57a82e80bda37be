package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guidepostlabs/guidepost/internal/adapters/memory"
	"github.com/guidepostlabs/guidepost/internal/advice"
	"github.com/guidepostlabs/guidepost/internal/conversation"
	"github.com/guidepostlabs/guidepost/internal/metrics"
	"github.com/guidepostlabs/guidepost/internal/session"
)

type fakeAdvisor struct {
	outcomes []advice.Outcome
	calls    int
}

func (f *fakeAdvisor) Advise(_ context.Context, _ string) advice.Outcome {
	f.calls++
	if len(f.outcomes) == 0 {
		return advice.Error{Message: "no outcome queued"}
	}
	out := f.outcomes[0]
	if len(f.outcomes) > 1 {
		f.outcomes = f.outcomes[1:]
	}
	return out
}

func newTestServer(t *testing.T, outcomes ...advice.Outcome) (http.Handler, *fakeAdvisor) {
	t.Helper()

	fake := &fakeAdvisor{outcomes: outcomes}
	store := memory.NewStore()
	t.Cleanup(func() { _ = store.Close() })

	srv := New(conversation.NewController(fake, nil), session.NewManager(store))
	return srv.Handler(), fake
}

func get(handler http.Handler, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func postForm(handler http.Handler, path string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestServer_IndexShowsConversationForm(t *testing.T) {
	handler, _ := newTestServer(t)

	rr := get(handler, "/", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Career Advisor")
	assert.Contains(t, body, `name="conversation"`)
	assert.NotContains(t, body, "Analysis Complete")

	cookies := rr.Result().Cookies()
	require.NotEmpty(t, cookies, "the index should establish a session cookie")
	assert.Equal(t, sessionCookie, cookies[0].Name)
}

func TestServer_AdviseShowsClarifyPanel(t *testing.T) {
	handler, fake := newTestServer(t, advice.Clarify{Question: "What subjects do you enjoy?"})

	rr := postForm(handler, "/advise", url.Values{"conversation": {"hello"}}, nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, fake.calls)
	body := rr.Body.String()
	assert.Contains(t, body, "What subjects do you enjoy?")
	assert.Contains(t, body, "Original Conversation:")
	assert.Contains(t, body, ">hello</textarea>")
	assert.Contains(t, body, "Start Over")
}

func TestServer_AdviseShowsResults(t *testing.T) {
	handler, _ := newTestServer(t, advice.Result{
		Interests:    json.RawMessage(`["Art", "Music"]`),
		Mapping:      json.RawMessage(`{"Art": "Designer", "Music": "Audio Engineer"}`),
		Explanations: json.RawMessage(`{"Designer": "Creative fit"}`),
	})

	rr := postForm(handler, "/advise", url.Values{"conversation": {"I like painting and playing piano"}}, nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Analysis Complete!")
	assert.Contains(t, body, "Extracted Interests")
	assert.Contains(t, body, "<li>Art</li>")
	assert.Contains(t, body, "<li>Music</li>")
	assert.Contains(t, body, "Career Path Mapping")
	assert.Contains(t, body, "<strong>Art</strong> &rarr; Designer")
	assert.Contains(t, body, "Why Designer?")
	assert.Contains(t, body, "Start New Analysis")
}

func TestServer_ResultsRenderSortedByKey(t *testing.T) {
	handler, _ := newTestServer(t, advice.Result{
		Mapping: json.RawMessage(`{"Writing": "Journalist", "Art": "Designer", "Math": "Analyst"}`),
	})

	rr := postForm(handler, "/advise", url.Values{"conversation": {"hello"}}, nil)

	body := rr.Body.String()
	art := strings.Index(body, "<strong>Art</strong>")
	math := strings.Index(body, "<strong>Math</strong>")
	writing := strings.Index(body, "<strong>Writing</strong>")
	require.NotEqual(t, -1, art)
	require.NotEqual(t, -1, math)
	require.NotEqual(t, -1, writing)
	assert.Less(t, art, math)
	assert.Less(t, math, writing)
}

func TestServer_NonConformingResultFallsBackToRaw(t *testing.T) {
	handler, _ := newTestServer(t, advice.Result{
		Mapping: json.RawMessage(`"not a map"`),
	})

	rr := postForm(handler, "/advise", url.Values{"conversation": {"hello"}}, nil)

	body := rr.Body.String()
	assert.Contains(t, body, "Career Path Mapping")
	assert.Contains(t, body, "<pre>")
	assert.Contains(t, body, "not a map")
}

func TestServer_AdviseEmptyInputWarns(t *testing.T) {
	handler, fake := newTestServer(t)

	rr := postForm(handler, "/advise", url.Values{"conversation": {"   "}}, nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, fake.calls, "an empty submit must not reach the advisor")
	body := rr.Body.String()
	assert.Contains(t, body, "Please enter your conversation first.")
	assert.Contains(t, body, `name="conversation"`, "the conversation form stays up")
}

func TestServer_AdviseErrorKeepsForm(t *testing.T) {
	handler, _ := newTestServer(t, advice.Error{Message: "Request failed (500): boom"})

	rr := postForm(handler, "/advise", url.Values{"conversation": {"hello"}}, nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Request failed (500): boom")
	assert.Contains(t, body, `name="conversation"`)
}

func TestServer_ClarifyLoopAcrossRequests(t *testing.T) {
	handler, fake := newTestServer(t,
		advice.Clarify{Question: "first question"},
		advice.Clarify{Question: "second question"},
		advice.Result{Interests: json.RawMessage(`["History"]`)},
	)

	rr := postForm(handler, "/advise", url.Values{"conversation": {"hello"}}, nil)
	cookies := rr.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Contains(t, rr.Body.String(), "first question")

	rr = postForm(handler, "/clarify", url.Values{"response": {"still unsure"}}, cookies)
	body := rr.Body.String()
	assert.Contains(t, body, "second question")
	assert.NotContains(t, body, "first question", "a new round replaces the question")
	assert.Contains(t, body, ">hello</textarea>", "the original conversation stays visible")

	rr = postForm(handler, "/clarify", url.Values{"response": {"I read about the Romans"}}, cookies)
	assert.Contains(t, rr.Body.String(), "Analysis Complete!")
	assert.Contains(t, rr.Body.String(), "<li>History</li>")
	assert.Equal(t, 3, fake.calls)
}

func TestServer_ClarifyEmptyResponseWarns(t *testing.T) {
	handler, fake := newTestServer(t, advice.Clarify{Question: "What subjects do you enjoy?"})

	rr := postForm(handler, "/advise", url.Values{"conversation": {"hello"}}, nil)
	cookies := rr.Result().Cookies()

	rr = postForm(handler, "/clarify", url.Values{"response": {""}}, cookies)

	assert.Equal(t, 1, fake.calls, "the empty response must not reach the advisor")
	body := rr.Body.String()
	assert.Contains(t, body, "Please provide your response first.")
	assert.Contains(t, body, "What subjects do you enjoy?", "the pending question stays up")
}

func TestServer_ResetReturnsToInitial(t *testing.T) {
	handler, _ := newTestServer(t, advice.Clarify{Question: "What subjects do you enjoy?"})

	rr := postForm(handler, "/advise", url.Values{"conversation": {"hello"}}, nil)
	cookies := rr.Result().Cookies()

	rr = postForm(handler, "/reset", nil, cookies)
	body := rr.Body.String()
	assert.Contains(t, body, `name="conversation"`)
	assert.NotContains(t, body, "What subjects do you enjoy?")
	assert.NotContains(t, body, ">hello</textarea>", "reset clears the stored conversation")

	// The cleared session is persisted, not just rendered.
	rr = get(handler, "/", cookies)
	assert.Contains(t, rr.Body.String(), `name="conversation"`)
	assert.NotContains(t, rr.Body.String(), "What subjects do you enjoy?")
}

func TestServer_SessionPersistsAcrossGet(t *testing.T) {
	handler, _ := newTestServer(t, advice.Clarify{Question: "What subjects do you enjoy?"})

	rr := postForm(handler, "/advise", url.Values{"conversation": {"hello"}}, nil)
	cookies := rr.Result().Cookies()

	rr = get(handler, "/", cookies)
	assert.Contains(t, rr.Body.String(), "What subjects do you enjoy?",
		"a page reload lands on the same step")
}

func TestServer_UnknownCookieStartsFresh(t *testing.T) {
	handler, _ := newTestServer(t)

	rr := get(handler, "/", []*http.Cookie{{Name: sessionCookie, Value: "not-a-uuid"}})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `name="conversation"`)

	cookies := rr.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.NotEqual(t, "not-a-uuid", cookies[0].Value, "a garbage cookie value must be rotated")
}

func TestServer_Healthz(t *testing.T) {
	handler, _ := newTestServer(t)

	rr := get(handler, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestServer_MetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	fake := &fakeAdvisor{outcomes: []advice.Outcome{advice.Clarify{Question: "q"}}}
	store := memory.NewStore()
	t.Cleanup(func() { _ = store.Close() })

	srv := New(
		conversation.NewController(metrics.InstrumentAdvisor(m, fake), nil),
		session.NewManager(store),
		WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
	)
	handler := srv.Handler()

	postForm(handler, "/advise", url.Values{"conversation": {"hello"}}, nil)

	rr := get(handler, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `guidepost_advice_calls_total{outcome="clarify"} 1`)
}
