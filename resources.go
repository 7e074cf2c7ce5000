package firebolt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// Account inventory API endpoints.
const (
	accountEngineByNameURL = "/core/v1/account/engines:getIdByName"
	accountEngineURL       = "/core/v1/account/engines/%s"
	accountEnginesURL      = "/core/v1/account/engines"
	accountDatabasesURL    = "/core/v1/account/databases"
)

// engineStatusRunning is the inventory status of an engine that is up and
// serving queries.
const engineStatusRunning = "ENGINE_STATUS_RUNNING_REVISION_SERVING"

// engineIDResponse is the engines:getIdByName document.
type engineIDResponse struct {
	EngineID struct {
		EngineID string `json:"engine_id"`
	} `json:"engine_id"`
}

// engineResponse is the single-engine document.
type engineResponse struct {
	Engine struct {
		Endpoint      string `json:"endpoint"`
		CurrentStatus string `json:"current_status"`
	} `json:"engine"`
}

// edgesResponse is the paged list document shared by the databases and
// engines endpoints.
type edgesResponse struct {
	Edges []struct {
		Node struct {
			Name          string `json:"name"`
			Endpoint      string `json:"endpoint"`
			CurrentStatus string `json:"current_status"`
		} `json:"node"`
	} `json:"edges"`
}

// resolveEngineURL looks up an engine endpoint by engine name through the
// account inventory API.
func resolveEngineURL(ctx context.Context, client *Client, apiEndpoint, engineName string) (string, error) {
	var idDoc engineIDResponse
	params := url.Values{"engine_name": {engineName}}
	if err := client.getJSON(ctx, apiEndpoint+accountEngineByNameURL, params, &idDoc); err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			// At this point we are already authenticated, so a 404 can
			// only mean the engine itself is missing.
			return "", &EngineNotFoundError{EngineName: engineName}
		}
		return "", &InterfaceError{Message: fmt.Sprintf("unable to retrieve engine endpoint: %v", err)}
	}

	var engineDoc engineResponse
	engineURL := apiEndpoint + fmt.Sprintf(accountEngineURL, idDoc.EngineID.EngineID)
	if err := client.getJSON(ctx, engineURL, nil, &engineDoc); err != nil {
		return "", &InterfaceError{Message: fmt.Sprintf("unable to retrieve engine endpoint: %v", err)}
	}
	return engineDoc.Engine.Endpoint, nil
}

// isDatabaseAvailable reports whether a database with the given name
// exists in the account.
func (c *Connection) isDatabaseAvailable(ctx context.Context, database string) (bool, error) {
	var doc edgesResponse
	params := url.Values{"filter.name_contains": {database}}
	if err := c.client.getJSON(ctx, c.apiEndpoint+accountDatabasesURL, params, &doc); err != nil {
		return false, err
	}
	return len(doc.Edges) > 0, nil
}

// isEngineRunning reports whether the engine behind engineURL is running.
// Engine names do not always match their endpoints, so the lookup filters
// on the endpoint host.
func (c *Connection) isEngineRunning(ctx context.Context, engineURL string) (bool, error) {
	parsed, err := url.Parse(fixURLScheme(engineURL))
	if err != nil {
		return false, err
	}

	var doc edgesResponse
	params := url.Values{"filter.endpoint_contains": {parsed.Host}}
	if err := c.client.getJSON(ctx, c.apiEndpoint+accountEnginesURL, params, &doc); err != nil {
		return false, err
	}
	for _, edge := range doc.Edges {
		if edge.Node.CurrentStatus == engineStatusRunning {
			return true, nil
		}
	}
	return false, nil
}
