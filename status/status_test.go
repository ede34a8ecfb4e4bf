// status/status_test.go
package status

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		code           int
		rejection      bool
		success        bool
		redirect       bool
		permanentRedir bool
	}{
		{http.StatusOK, false, true, false, false},
		{http.StatusNoContent, false, true, false, false},
		{http.StatusMovedPermanently, false, false, true, true},
		{http.StatusFound, false, false, true, false},
		{http.StatusSeeOther, false, false, true, false},
		{http.StatusPermanentRedirect, false, false, true, true},
		{http.StatusUnauthorized, true, false, false, false},
		{http.StatusForbidden, false, false, false, false},
		{http.StatusInternalServerError, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.rejection, IsAuthenticationRejection(tt.code))
			assert.Equal(t, tt.success, IsSuccess(tt.code))
			assert.Equal(t, tt.redirect, IsRedirectStatusCode(tt.code))
			assert.Equal(t, tt.permanentRedir, IsPermanentRedirect(tt.code))
		})
	}
}
