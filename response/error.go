// response/error.go
// This package decodes HTTP response bodies: successful payloads into caller supplied values
// and error payloads into APIError.
package response

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/deploymenttheory/go-api-http-session/logger"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// APIError represents an api error response.
type APIError struct {
	StatusCode  int      `json:"status_code"` // HTTP status code
	Method      string   `json:"method"`      // HTTP method used for the request
	URL         string   `json:"url"`         // The URL of the HTTP request
	HTTPStatus  int      `json:"httpStatus,omitempty"`
	Errors      []Errors `json:"errors,omitempty"`
	Message     string   `json:"message"`           // Summary of the error
	Details     []string `json:"details,omitempty"` // Detailed error messages, if any
	RawResponse string   `json:"raw_response"`      // Raw response body for debugging
}

// Errors represents individual error details within an API error response.
type Errors struct {
	Code        string  `json:"code,omitempty"`
	Field       string  `json:"field,omitempty"`
	Description string  `json:"description,omitempty"`
	ID          *string `json:"id,omitempty"`
}

// Error returns a string representation of the APIError, making it compatible with the error interface.
func (e *APIError) Error() string {
	message := e.Message
	if message == "" {
		message = http.StatusText(e.StatusCode)
	}
	if e.Method != "" {
		return fmt.Sprintf("API Error: %s %s: StatusCode=%d, Message=%s", e.Method, e.URL, e.StatusCode, message)
	}
	return fmt.Sprintf("API Error: StatusCode=%d, Message=%s", e.StatusCode, message)
}

// HandleAPIErrorResponse reads the body of a non-2xx response into an APIError and logs it.
// The body is consumed but not closed.
func HandleAPIErrorResponse(resp *http.Response, log logger.Logger) *APIError {
	apiError := &APIError{
		StatusCode: resp.StatusCode,
		Message:    "API Error Response",
	}
	if resp.Request != nil {
		apiError.Method = resp.Request.Method
		apiError.URL = resp.Request.URL.String()
	}

	var bodyBytes []byte
	if resp.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(resp.Body)
		if err != nil {
			apiError.RawResponse = "Failed to read response body"
			return apiError
		}
	}

	ParseAPIError(resp.Header.Get("Content-Type"), bodyBytes, apiError)

	if log != nil {
		log.Warn("API error response",
			zap.String("method", apiError.Method),
			zap.String("url", apiError.URL),
			zap.Int("status_code", apiError.StatusCode),
			zap.String("message", apiError.Message),
		)
	}
	return apiError
}

// ParseAPIError fills apiError from an already buffered error body.
func ParseAPIError(contentType string, bodyBytes []byte, apiError *APIError) {
	if len(bodyBytes) == 0 {
		apiError.Message = http.StatusText(apiError.StatusCode)
		return
	}

	mimeType, _ := parseHeader(contentType)
	switch mimeType {
	case "application/json":
		parseJSONResponse(bodyBytes, apiError)
	case "application/xml", "text/xml":
		parseXMLResponse(bodyBytes, apiError)
	case "text/html":
		parseHTMLResponse(bodyBytes, apiError)
	case "text/plain":
		parseTextResponse(bodyBytes, apiError)
	default:
		apiError.RawResponse = string(bodyBytes)
		apiError.Message = "Unknown content type error"
	}
}

// parseJSONResponse attempts to parse the JSON error response and update the APIError structure.
func parseJSONResponse(bodyBytes []byte, apiError *APIError) {
	statusCode, method, url := apiError.StatusCode, apiError.Method, apiError.URL
	apiError.Message = ""
	apiError.RawResponse = string(bodyBytes)

	if err := json.Unmarshal(bodyBytes, apiError); err != nil {
		apiError.Message = "Failed to parse JSON error response"
	} else if apiError.Message == "" {
		apiError.Message = "An unknown error occurred"
	}
	apiError.StatusCode, apiError.Method, apiError.URL = statusCode, method, url
}

// parseXMLResponse dynamically parses XML error responses and accumulates potential error messages.
func parseXMLResponse(bodyBytes []byte, apiError *APIError) {
	apiError.RawResponse = string(bodyBytes)

	doc, err := xmlquery.Parse(bytes.NewReader(bodyBytes))
	if err != nil {
		return
	}

	var messages []string
	var traverse func(*xmlquery.Node)
	traverse = func(n *xmlquery.Node) {
		if n.Type == xmlquery.TextNode && strings.TrimSpace(n.Data) != "" {
			messages = append(messages, strings.TrimSpace(n.Data))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}

	traverse(doc)

	if len(messages) > 0 {
		apiError.Message = strings.Join(messages, "; ")
	} else {
		apiError.Message = "Failed to extract error details from XML response"
	}

}

// parseTextResponse updates the APIError structure based on a plain text error response and logs it.
func parseTextResponse(bodyBytes []byte, apiError *APIError) {
	bodyText := string(bodyBytes)
	apiError.RawResponse = bodyText
	apiError.Message = bodyText
}

// htmlMessageElements are the elements whose text is collected from an HTML error page.
var htmlMessageElements = map[string]bool{"title": true, "h1": true, "p": true}

// parseHTMLResponse collects the text of the page's title, headings and paragraphs, one
// message per element, skipping elements that repeat an earlier message.
func parseHTMLResponse(bodyBytes []byte, apiError *APIError) {
	apiError.RawResponse = string(bodyBytes)

	doc, err := html.Parse(bytes.NewReader(bodyBytes))
	if err != nil {
		return
	}

	var messages []string
	seen := map[string]bool{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && htmlMessageElements[n.Data] {
			if text := strings.Join(strings.Fields(nodeText(n)), " "); text != "" && !seen[text] {
				seen[text] = true
				messages = append(messages, text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if len(messages) > 0 {
		apiError.Message = strings.Join(messages, "; ")
	} else {
		apiError.Message = "HTML Error: See 'Raw' field for details."
	}
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data + " "
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
	}
	return b.String()
}
