package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloudtriage/cloudtriage/internal/auth"
	"github.com/cloudtriage/cloudtriage/internal/dispatch"
)

const (
	defaultManagementEndpoint = "https://management.azure.com"
	managementAPIVersion      = "2021-04-01"
	logQueryAPIVersion        = "2018-03-01-preview"
	permissionsAPIVersion     = "2022-04-01"
)

// RESTCloudAPI talks to the cloud management plane over its REST API,
// authenticating each request with the caller's own access token. The
// orchestrator never holds credentials of its own.
type RESTCloudAPI struct {
	endpoint string
	client   *http.Client
}

// NewRESTCloudAPI creates a management-plane client. An empty endpoint
// selects the public cloud; client may be nil for defaults.
func NewRESTCloudAPI(endpoint string, client *http.Client) *RESTCloudAPI {
	if endpoint == "" {
		endpoint = defaultManagementEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RESTCloudAPI{endpoint: strings.TrimRight(endpoint, "/"), client: client}
}

// ResourceStatus implements CloudAPI.
func (c *RESTCloudAPI) ResourceStatus(ctx context.Context, id auth.Identity, resourceID string) (map[string]any, error) {
	body, err := c.get(ctx, id, resourceID, managementAPIVersion, nil)
	if err != nil {
		return nil, err
	}
	name, _ := body["name"].(string)
	return map[string]any{
		"resource": body,
		"summary":  fmt.Sprintf("fetched status of %s", name),
	}, nil
}

// QueryLogs implements CloudAPI.
func (c *RESTCloudAPI) QueryLogs(ctx context.Context, id auth.Identity, resourceID, timeRange, query string) (map[string]any, error) {
	params := url.Values{"timespan": {timeRange}}
	if query != "" {
		params.Set("$filter", query)
	}
	body, err := c.get(ctx, id, resourceID+"/providers/Microsoft.Insights/metrics", logQueryAPIVersion, params)
	if err != nil {
		return nil, err
	}
	entries, _ := body["value"].([]any)
	return map[string]any{
		"entries": entries,
		"summary": fmt.Sprintf("log query over %s returned %d series", timeRange, len(entries)),
	}, nil
}

// CheckPermissions implements CloudAPI.
func (c *RESTCloudAPI) CheckPermissions(ctx context.Context, id auth.Identity, resourceID string) (map[string]any, error) {
	body, err := c.get(ctx, id, resourceID+"/providers/Microsoft.Authorization/permissions", permissionsAPIVersion, nil)
	if err != nil {
		return nil, err
	}
	perms, _ := body["value"].([]any)
	return map[string]any{
		"permissions": perms,
		"summary":     fmt.Sprintf("caller holds %d permission sets on the resource", len(perms)),
	}, nil
}

// GroupResources implements CloudAPI.
func (c *RESTCloudAPI) GroupResources(ctx context.Context, id auth.Identity, group string) (map[string]any, error) {
	subscription, err := subscriptionForGroup(group)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/resources", subscription, groupName(group))
	body, err := c.get(ctx, id, path, managementAPIVersion, nil)
	if err != nil {
		return nil, err
	}
	resources, _ := body["value"].([]any)
	return map[string]any{
		"resources": resources,
		"summary":   fmt.Sprintf("resource group contains %d resources", len(resources)),
	}, nil
}

// Subscriptions implements CloudAPI.
func (c *RESTCloudAPI) Subscriptions(ctx context.Context, id auth.Identity) (map[string]any, error) {
	body, err := c.get(ctx, id, "/subscriptions", managementAPIVersion, nil)
	if err != nil {
		return nil, err
	}
	subs, _ := body["value"].([]any)
	return map[string]any{
		"subscriptions": subs,
		"summary":       fmt.Sprintf("caller can see %d subscriptions", len(subs)),
	}, nil
}

// get issues one authenticated GET and decodes the JSON body. Non-2xx
// statuses become plain errors; the dispatcher classifies them by text.
func (c *RESTCloudAPI) get(ctx context.Context, id auth.Identity, path, apiVersion string, params url.Values) (map[string]any, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api-version", apiVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+id.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("management API request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, data)
	}

	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return body, nil
}

// statusError maps an HTTP status onto a classified action error so the
// dispatcher does not have to guess from text.
func statusError(status int, body []byte) error {
	excerpt := string(body)
	if len(excerpt) > 200 {
		excerpt = excerpt[:200]
	}
	err := fmt.Errorf("management API returned %d: %s", status, excerpt)

	switch status {
	case http.StatusUnauthorized:
		return &dispatch.ActionError{Kind: dispatch.KindAuth, Err: err}
	case http.StatusForbidden:
		return &dispatch.ActionError{Kind: dispatch.KindPermission, Err: err}
	case http.StatusNotFound:
		return &dispatch.ActionError{Kind: dispatch.KindNotFound, Err: err}
	case http.StatusTooManyRequests:
		return &dispatch.ActionError{Kind: dispatch.KindThrottled, Err: err}
	}
	if status >= 500 {
		return &dispatch.ActionError{Kind: dispatch.KindTransient, Err: err}
	}
	return err
}

// subscriptionForGroup extracts the subscription from a fully qualified
// group reference of the form <subscription>/<group>.
func subscriptionForGroup(group string) (string, error) {
	parts := strings.SplitN(group, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("resource_group must be given as <subscription-id>/<group-name>")
	}
	return parts[0], nil
}

func groupName(group string) string {
	parts := strings.SplitN(group, "/", 2)
	return parts[len(parts)-1]
}
