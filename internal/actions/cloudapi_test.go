package actions

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudtriage/cloudtriage/internal/auth"
	"github.com/cloudtriage/cloudtriage/internal/dispatch"
)

func TestRESTCloudAPISendsBearerToken(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name": "myapp", "properties": {"state": "Running"}}`))
	}))
	defer srv.Close()

	api := NewRESTCloudAPI(srv.URL, srv.Client())
	id := auth.Identity{Principal: "caller", AccessToken: "tok-123"}

	result, err := api.ResourceStatus(context.Background(), id, validResourceID)
	if err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("expected the caller's token, got %q", gotAuth)
	}
	if gotPath != validResourceID {
		t.Errorf("unexpected path %q", gotPath)
	}
	if result["summary"] != "fetched status of myapp" {
		t.Errorf("unexpected summary: %v", result["summary"])
	}
}

func TestRESTCloudAPIStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		want   dispatch.ErrorKind
	}{
		{http.StatusUnauthorized, dispatch.KindAuth},
		{http.StatusForbidden, dispatch.KindPermission},
		{http.StatusNotFound, dispatch.KindNotFound},
		{http.StatusTooManyRequests, dispatch.KindThrottled},
		{http.StatusBadGateway, dispatch.KindTransient},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"error": "nope"}`))
		}))
		api := NewRESTCloudAPI(srv.URL, srv.Client())

		_, err := api.ResourceStatus(context.Background(), auth.Identity{AccessToken: "t"}, validResourceID)
		srv.Close()

		if err == nil {
			t.Errorf("status %d: expected an error", tc.status)
			continue
		}
		var ae *dispatch.ActionError
		if !errors.As(err, &ae) || ae.Kind != tc.want {
			t.Errorf("status %d: expected kind %s, got %v", tc.status, tc.want, err)
		}
	}
}

func TestRESTCloudAPIQueryLogsTimespan(t *testing.T) {
	var gotTimespan string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTimespan = r.URL.Query().Get("timespan")
		_, _ = w.Write([]byte(`{"value": [{"id": "m1"}, {"id": "m2"}]}`))
	}))
	defer srv.Close()

	api := NewRESTCloudAPI(srv.URL, srv.Client())
	result, err := api.QueryLogs(context.Background(), auth.Identity{AccessToken: "t"}, validResourceID, "24h", "")
	if err != nil {
		t.Fatal(err)
	}
	if gotTimespan != "24h" {
		t.Errorf("expected timespan 24h, got %q", gotTimespan)
	}
	entries, _ := result["entries"].([]any)
	if len(entries) != 2 {
		t.Errorf("expected 2 entries, got %v", result)
	}
}

func TestGroupResourcesReference(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"value": []}`))
	}))
	defer srv.Close()
	api := NewRESTCloudAPI(srv.URL, srv.Client())

	if _, err := api.GroupResources(context.Background(), auth.Identity{AccessToken: "t"}, "sub-1/rg-prod"); err != nil {
		t.Fatal(err)
	}
	want := "/subscriptions/sub-1/resourceGroups/rg-prod/resources"
	if gotPath != want {
		t.Errorf("expected path %q, got %q", want, gotPath)
	}

	if _, err := api.GroupResources(context.Background(), auth.Identity{AccessToken: "t"}, "bare-name"); err == nil {
		t.Error("expected an unqualified group reference to be rejected")
	}
}
