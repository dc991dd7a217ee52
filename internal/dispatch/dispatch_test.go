package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"golang.org/x/oauth2"

	"github.com/florianilch/nodio/internal/credentials"
	"github.com/florianilch/nodio/internal/tokensource"
)

// staticTokens always returns the same token.
type staticTokens struct {
	calls atomic.Int32
}

func (s *staticTokens) EnsureToken(context.Context) (*oauth2.Token, error) {
	s.calls.Add(1)
	return &oauth2.Token{AccessToken: "valid-token", TokenType: tokensource.TokenType}, nil
}

// recordedRequest captures what the resource server received.
type recordedRequest struct {
	Method        string
	Path          string
	Query         url.Values
	Authorization string
	ContentType   string
	Body          string
}

func newResourceServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Pointer[recordedRequest], *atomic.Int32) {
	t.Helper()
	var last atomic.Pointer[recordedRequest]
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		data, _ := io.ReadAll(r.Body)
		last.Store(&recordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.Query(),
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
			Body:          string(data),
		})
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server, &last, &hits
}

func TestHandleGetSuccess(t *testing.T) {
	server, last, _ := newResourceServer(t, http.StatusOK, `{"id":42,"title":"Answer"}`)

	d, err := New(&staticTokens{}, WithBaseURL(server.URL+"/"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	data, err := d.Handle(context.Background(), Get, "item/42", nil)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if string(data) != `{"id":42,"title":"Answer"}` {
		t.Errorf("data = %s", data)
	}

	got := last.Load()
	if got.Method != http.MethodGet || got.Path != "/item/42" {
		t.Errorf("request = %s %s, want GET /item/42", got.Method, got.Path)
	}
	if got.Authorization != "OAuth2 valid-token" {
		t.Errorf("Authorization = %q, want %q", got.Authorization, "OAuth2 valid-token")
	}
}

func TestHandleGetWithQueryPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		want    url.Values
	}{
		{
			name:    "url values",
			payload: url.Values{"limit": {"10"}},
			want:    url.Values{"limit": {"10"}},
		},
		{
			name:    "string map",
			payload: map[string]string{"sort_by": "created_on"},
			want:    url.Values{"sort_by": {"created_on"}},
		},
		{
			name:    "struct",
			payload: struct {
				Limit  int      `json:"limit"`
				Fields []string `json:"fields"`
				Desc   bool     `json:"sort_desc"`
			}{Limit: 5, Fields: []string{"a", "b"}, Desc: true},
			want: url.Values{"limit": {"5"}, "fields": {"a", "b"}, "sort_desc": {"true"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, last, _ := newResourceServer(t, http.StatusOK, `[]`)
			d, err := New(&staticTokens{}, WithBaseURL(server.URL))
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			if _, err := d.Handle(context.Background(), Get, "comment/item/1", tt.payload); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			got := last.Load().Query
			for key, want := range tt.want {
				if fmt.Sprint(got[key]) != fmt.Sprint(want) {
					t.Errorf("query[%s] = %v, want %v", key, got[key], want)
				}
			}
		})
	}
}

func TestHandleGetRejectsNonObjectQuery(t *testing.T) {
	server, _, hits := newResourceServer(t, http.StatusOK, `{}`)
	d, err := New(&staticTokens{}, WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := d.Handle(context.Background(), Get, "item/1", []int{1, 2}); err == nil {
		t.Fatal("expected error for array query payload")
	}
	if hits.Load() != 0 {
		t.Error("request sent despite invalid query payload")
	}
}

func TestHandlePostJSONSendsBody(t *testing.T) {
	server, last, _ := newResourceServer(t, http.StatusCreated, `{"item_id":1001}`)
	d, err := New(&staticTokens{}, WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	payload := map[string]any{"fields": map[string]any{"title": "Hello"}}
	data, err := d.Handle(context.Background(), PostJSON, "item/app/7/", payload)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if string(data) != `{"item_id":1001}` {
		t.Errorf("data = %s", data)
	}

	got := last.Load()
	if got.Method != http.MethodPost || got.Path != "/item/app/7/" {
		t.Errorf("request = %s %s, want POST /item/app/7/", got.Method, got.Path)
	}
	if got.ContentType != "application/json" {
		t.Errorf("Content-Type = %q", got.ContentType)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(got.Body), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	fields, _ := body["fields"].(map[string]any)
	if fields["title"] != "Hello" {
		t.Errorf("body = %s", got.Body)
	}
}

func TestHandleErrorStatus(t *testing.T) {
	server, _, _ := newResourceServer(t, http.StatusInternalServerError, `{"error":"boom"}`)
	d, err := New(&staticTokens{}, WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	data, err := d.Handle(context.Background(), Get, "comment/item/99", nil)
	if data != nil {
		t.Errorf("data = %s, want nil", data)
	}

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error = %v, want RequestError", err)
	}
	if reqErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", reqErr.StatusCode)
	}
	if reqErr.Raw != `{"error":"boom"}` {
		t.Errorf("Raw = %q", reqErr.Raw)
	}
}

func TestHandleTransportFailure(t *testing.T) {
	server, _, _ := newResourceServer(t, http.StatusOK, `{}`)
	server.Close()

	d, err := New(&staticTokens{}, WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = d.Handle(context.Background(), Get, "item/1", nil)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error = %v, want RequestError", err)
	}
	if reqErr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", reqErr.StatusCode)
	}
}

func TestHandleInvalidJSONOnSuccess(t *testing.T) {
	server, _, _ := newResourceServer(t, http.StatusOK, `not json`)
	d, err := New(&staticTokens{}, WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = d.Handle(context.Background(), Get, "item/1", nil)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error = %v, want RequestError", err)
	}
	if reqErr.StatusCode != http.StatusOK || reqErr.Raw != "not json" {
		t.Errorf("RequestError = %+v", reqErr)
	}
}

func TestHandleEmptyBody(t *testing.T) {
	server, _, _ := newResourceServer(t, http.StatusOK, ``)
	d, err := New(&staticTokens{}, WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	data, err := d.Handle(context.Background(), PostJSON, "comment/item/1", nil)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if data != nil {
		t.Errorf("data = %s, want nil", data)
	}
}

func TestHandleUnknownVerb(t *testing.T) {
	tokens := &staticTokens{}
	d, err := New(tokens)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := d.Handle(context.Background(), Verb(99), "item/1", nil); !errors.Is(err, ErrUnknownVerb) {
		t.Fatalf("error = %v, want ErrUnknownVerb", err)
	}
	if tokens.calls.Load() != 0 {
		t.Error("token requested for unknown verb")
	}
}

func TestHandleAuthenticationFailureSkipsRequest(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid_grant"}`)
	}))
	defer tokenServer.Close()

	resource, _, hits := newResourceServer(t, http.StatusOK, `{}`)

	creds, err := credentials.New(credentials.Config{
		AppID:        "7",
		AppToken:     "app-token",
		ClientID:     "client",
		ClientSecret: "secret",
	})
	if err != nil {
		t.Fatalf("credentials.New() error = %v", err)
	}
	ts, err := tokensource.New(creds, tokensource.WithTokenURL(tokenServer.URL))
	if err != nil {
		t.Fatalf("tokensource.New() error = %v", err)
	}
	d, err := New(ts, WithBaseURL(resource.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	data, err := d.Handle(context.Background(), PostJSON, "item/app/7/", map[string]any{"fields": map[string]any{}})
	if data != nil {
		t.Errorf("data = %s, want nil", data)
	}

	var authErr *tokensource.AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("error = %v, want AuthenticationError", err)
	}
	if authErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", authErr.StatusCode)
	}
	if authErr.Raw != `{"error":"invalid_grant"}` {
		t.Errorf("Raw = %q", authErr.Raw)
	}
	if hits.Load() != 0 {
		t.Errorf("resource endpoint hit %d times, want 0", hits.Load())
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("expected error for nil token provider")
	}
	if _, err := New(&staticTokens{}, WithBaseURL("not a url")); err == nil {
		t.Error("expected error for base URL without scheme")
	}
}

func TestVerbString(t *testing.T) {
	if Get.String() != "GET" || PostJSON.String() != "POST-JSON" {
		t.Errorf("String() = %s, %s", Get, PostJSON)
	}
}

func TestHandleRecordsStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "ok", status: http.StatusOK},
		{name: "created", status: http.StatusCreated},
		{name: "error status", status: http.StatusNotFound, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _, _ := newResourceServer(t, tt.status, `{"item_id":1}`)
			d, err := New(&staticTokens{}, WithBaseURL(server.URL+"/"))
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			var status int
			ctx := WithStatusRecorder(context.Background(), &status)
			_, err = d.Handle(ctx, PostJSON, "item/app/7/", map[string]string{"title": "x"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Handle() error = %v, wantErr %v", err, tt.wantErr)
			}
			if status != tt.status {
				t.Errorf("recorded status = %d, want %d", status, tt.status)
			}
		})
	}
}

func TestHandleWithoutResponseLeavesStatus(t *testing.T) {
	d, err := New(&staticTokens{}, WithBaseURL("http://127.0.0.1:1/"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	status := -1
	if _, err := d.Handle(WithStatusRecorder(context.Background(), &status), Get, "item/1", nil); err == nil {
		t.Fatal("expected transport error")
	}
	if status != -1 {
		t.Errorf("status = %d, want untouched", status)
	}
}
