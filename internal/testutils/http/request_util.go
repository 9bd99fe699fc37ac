package testhttp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

/*
DoGet sends GET request to the "url" and decodes JSON response body into
"response". Error is returned when the request fails or the response status
is not 200.
*/
func DoGet(url string, response any) (*http.Response, error) {
	httpRes, err := http.Get(url) // #nosec G107
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = httpRes.Body.Close()
	}()
	resBytes, err := io.ReadAll(httpRes.Body)
	if err != nil {
		return httpRes, fmt.Errorf("reading response body: %w", err)
	}
	if httpRes.StatusCode != http.StatusOK {
		return httpRes, fmt.Errorf("GET %s: status %s: %s", url, httpRes.Status, resBytes)
	}
	if err := json.Unmarshal(resBytes, response); err != nil {
		return httpRes, fmt.Errorf("decoding response: %w", err)
	}
	return httpRes, nil
}
