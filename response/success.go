// response/success.go
/* Responsible for handling successful API responses. It reads the response body, logs the raw response details,
and unmarshals the response based on the content type (JSON or XML). */
package response

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/deploymenttheory/go-api-http-session/logger"
	"go.uber.org/zap"
)

// contentHandler defines the signature for unmarshaling content from an io.Reader.
type contentHandler func(io.Reader, any, logger.Logger, string) error

// responseUnmarshallers maps MIME types to the corresponding contentHandler functions.
var responseUnmarshallers = map[string]contentHandler{
	"application/json": handlerUnmarshalJSON,
	"application/xml":  handlerUnmarshalXML,
	"text/xml":         handlerUnmarshalXML,
}

// HandleAPISuccessResponse reads the response body and unmarshals it into out based on the
// content type. A nil out, an empty body or a 204 discards the body.
func HandleAPISuccessResponse(resp *http.Response, out any, log logger.Logger) error {
	if resp.Request != nil && resp.Request.Method == http.MethodDelete {
		return successfulDeleteRequest(resp, log)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return log.Error("Failed to read response body", zap.Error(err))
	}

	if out == nil || len(bodyBytes) == 0 || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	log.Debug("Raw HTTP Response", zap.Int("size", len(bodyBytes)))

	bodyReader := bytes.NewReader(bodyBytes)
	contentType := resp.Header.Get("Content-Type")
	contentDisposition := resp.Header.Get("Content-Disposition")

	contentTypeNoParams, _ := parseHeader(contentType)

	if handler, ok := responseUnmarshallers[contentTypeNoParams]; ok {
		return handler(bodyReader, out, log, contentType)
	}

	if isBinaryData(contentType, contentDisposition) {
		return handleBinaryData(bodyReader, log, out, contentDisposition)
	}

	errMsg := fmt.Sprintf("unexpected MIME type: %s", contentType)
	log.Warn("Unmarshal error", zap.String("content type", contentType))
	return errors.New(errMsg)
}

// successfulDeleteRequest handles DELETE requests, where a successful response might not contain a body.
func successfulDeleteRequest(resp *http.Response, log logger.Logger) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		log.Info("Successfully processed DELETE request", zap.String("URL", resp.Request.URL.String()), zap.Int("Status Code", resp.StatusCode))
		return nil
	}
	return fmt.Errorf("DELETE request failed, status code: %d", resp.StatusCode)
}

// handlerUnmarshalJSON unmarshals JSON content from an io.Reader into the provided output structure.
func handlerUnmarshalJSON(reader io.Reader, out any, log logger.Logger, mimeType string) error {
	if err := json.NewDecoder(reader).Decode(out); err != nil {
		return fmt.Errorf("decoding JSON response: %w", err)
	}
	log.Debug("Successfully unmarshalled JSON response", zap.String("content type", mimeType))
	return nil
}

// handlerUnmarshalXML unmarshals XML content from an io.Reader into the provided output structure.
func handlerUnmarshalXML(reader io.Reader, out any, log logger.Logger, mimeType string) error {
	if err := xml.NewDecoder(reader).Decode(out); err != nil {
		return fmt.Errorf("decoding XML response: %w", err)
	}
	log.Debug("Successfully unmarshalled XML response", zap.String("content type", mimeType))
	return nil
}

// isBinaryData checks if the MIME type or Content-Disposition indicates binary data.
func isBinaryData(contentType, contentDisposition string) bool {
	return strings.Contains(contentType, "application/octet-stream") || strings.HasPrefix(contentDisposition, "attachment")
}

// handleBinaryData reads binary data from an io.Reader and stores it in *[]byte or streams it to an io.Writer.
func handleBinaryData(reader io.Reader, log logger.Logger, out any, contentDisposition string) error {
	switch out := out.(type) {
	case *[]byte:
		data, err := io.ReadAll(reader)
		if err != nil {
			return fmt.Errorf("reading binary data: %w", err)
		}
		*out = data

	case io.Writer:
		if _, err := io.Copy(out, reader); err != nil {
			return fmt.Errorf("streaming binary data: %w", err)
		}

	default:
		return errors.New("output parameter is not suitable for binary data (*[]byte or io.Writer)")
	}

	if contentDisposition != "" {
		_, params := parseHeader(contentDisposition)
		if filename, ok := params["filename"]; ok {
			log.Debug("Extracted filename from Content-Disposition", zap.String("filename", filename))
		}
	}

	return nil
}
